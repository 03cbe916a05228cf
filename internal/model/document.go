package model

import "time"

const (
	DocumentTypeResume = "resume"
	DocumentTypeJD     = "jd"
)

// ValidDocumentType reports whether t is one of the accepted upload types.
func ValidDocumentType(t string) bool {
	return t == DocumentTypeResume || t == DocumentTypeJD
}

type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:16;not null;index" json:"type"`
	Filename  string    `gorm:"size:256;not null" json:"filename"`
	FileURL   string    `gorm:"size:512;not null" json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
}
