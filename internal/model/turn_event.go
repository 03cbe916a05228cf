package model

import "time"

// TurnEvent is an audit record of one interview exchange, persisted
// asynchronously by the audit worker.
type TurnEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Question  string    `gorm:"type:text" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	Reply     string    `gorm:"type:text" json:"reply"`
	CreatedAt time.Time `json:"created_at"`
}
