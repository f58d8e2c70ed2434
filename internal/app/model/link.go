package model

import "time"

// Link maps a short identifier to its destination URL. The identifier is the
// primary key, so custom paths and generated ids live in one namespace and
// create-if-absent is enforced by the database itself.
type Link struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	RedirectURL string    `json:"redirect_url" gorm:"type:text;not null"`
	UserID      string    `json:"user_id" gorm:"size:64;not null;index"`
	Custom      bool      `json:"custom" gorm:"not null;default:false"`
	Archived    bool      `json:"archived" gorm:"not null;default:false"`
	Base64      string    `json:"base64" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
