package model

import "time"

// Chat is one interview session, tied to a résumé and a job description.
// Filenames are denormalized so history listings avoid a join.
type Chat struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ResumeDocID    uint      `gorm:"not null" json:"resume_doc_id"`
	JDDocID        uint      `gorm:"not null" json:"jd_doc_id"`
	ResumeFilename string    `gorm:"size:256;not null" json:"resume_filename"`
	JDFilename     string    `gorm:"size:256;not null" json:"jd_filename"`
	CreatedAt      time.Time `json:"created_at"`
}
