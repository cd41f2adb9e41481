package models

import (
	"gorm.io/gorm"
)

// LocationPing is a user's shared live position. Each new ping supersedes the
// previous one; "stop sharing" and disconnects flip Active to false on all of
// the user's active rows.
type LocationPing struct {
	gorm.Model
	UserID    uint     `json:"userId" gorm:"not null;index"`
	User      *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Latitude  float64  `json:"lat" gorm:"not null"`
	Longitude float64  `json:"lng" gorm:"not null"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Active    bool     `json:"active" gorm:"not null;default:true;index"`
}

// TableName specifies the table name
func (LocationPing) TableName() string {
	return "location_pings"
}
