package models

import (
	"time"

	"gorm.io/gorm"
)

// Match lifecycle
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
)

// Match is a join request from a user against a ride. OwnerID is denormalized
// from the ride so authorization checks don't need a join.
type Match struct {
	gorm.Model
	RideID      uint       `json:"rideId" gorm:"not null;index"`
	Ride        *Ride      `json:"ride,omitempty" gorm:"foreignKey:RideID"`
	RequesterID uint       `json:"requesterId" gorm:"not null;index"`
	Requester   *User      `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	OwnerID     uint       `json:"ownerId" gorm:"not null;index"`
	Status      string     `json:"status" gorm:"not null;default:'pending'"`
	ChatRoomID  string     `json:"chatRoomId" gorm:"column:chat_room_id"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// TableName specifies the table name
func (Match) TableName() string {
	return "matches"
}

// IsParticipant reports whether the user is either side of the match
func (m *Match) IsParticipant(userID uint) bool {
	return m.OwnerID == userID || m.RequesterID == userID
}

// OtherParty returns the match participant that is not userID
func (m *Match) OtherParty(userID uint) uint {
	if m.OwnerID == userID {
		return m.RequesterID
	}
	return m.OwnerID
}
