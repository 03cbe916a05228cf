package model

import "time"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one transcript entry. Seq is 1-based and strictly increasing
// within a chat; entries are never updated or deleted.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	Seq       int       `gorm:"not null" json:"seq"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
