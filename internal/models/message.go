package models

import (
	"gorm.io/gorm"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// Message is a chat message inside a match room. Immutable after creation
// except for the Read flag.
type Message struct {
	gorm.Model
	MatchID  uint   `json:"matchId" gorm:"not null;index"`
	Match    *Match `json:"match,omitempty" gorm:"foreignKey:MatchID"`
	SenderID uint   `json:"senderId" gorm:"not null;index"`
	Sender   *User  `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Content  string `json:"content" gorm:"not null"`
	Type     string `json:"type" gorm:"not null;default:'text'"` // text, system
	Metadata string `json:"metadata,omitempty"`                  // opaque JSON, e.g. attachment URL
	Read     bool   `json:"read" gorm:"not null;default:false"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}
