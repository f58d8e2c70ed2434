package model

import "time"

// Roles assigned to users. The service only ever asks "is this caller an
// admin"; everything else about identity lives in the external provider.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User mirrors the identity provider's opaque user id plus the role flag the
// authorization checks need.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Email     string    `json:"email" gorm:"size:255;not null"`
	Name      *string   `json:"name,omitempty" gorm:"size:255"`
	Role      string    `json:"role" gorm:"size:16;not null;default:USER"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
