package model

import "time"

// ScanEvent records one resolution of a short link together with the request
// context derived at redirect time. Events are append-only; they are removed
// only when their link is deleted.
type ScanEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID    string    `json:"link_id" gorm:"size:32;not null;index"`
	Timestamp time.Time `json:"timestamp" gorm:"autoCreateTime;index"`

	IP        string `json:"ip" gorm:"size:64"`
	UserAgent string `json:"user_agent" gorm:"type:text"`

	// Edge-provided geography. Nil when the edge network sent no geo headers;
	// nil and empty string are distinct on purpose.
	Country *string `json:"country,omitempty" gorm:"size:100"`
	Region  *string `json:"region,omitempty" gorm:"size:100"`
	City    *string `json:"city,omitempty" gorm:"size:100"`

	// Traffic classification, e.g. {google, organic} or {direct, none}.
	Source string `json:"source" gorm:"size:100"`
	Medium string `json:"medium" gorm:"size:32"`

	// Parsed from the user agent; nil when parsing yields nothing.
	Device  *string `json:"device,omitempty" gorm:"size:50"`
	Browser *string `json:"browser,omitempty" gorm:"size:100"`

	// Scan-vs-click is deliberately unclassified for now; no reliable
	// detection rule exists upstream.
	Type *string `json:"type,omitempty" gorm:"size:32"`
}

const (
	ScanStreamName     = "SCANS"
	ScanStreamSubject  = "scans.events"
	ScanConsumerName   = "scan-writer"
	ScanStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
