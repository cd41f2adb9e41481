package models

import (
	"time"

	"gorm.io/gorm"
)

// Vehicle types a ride can be posted with
const (
	VehicleCab  = "cab"
	VehicleBike = "bike"
	VehicleAuto = "auto"
)

// Gender preference values ("any" disables the filter)
const (
	PreferenceAny    = "any"
	PreferenceMale   = "male"
	PreferenceFemale = "female"
)

// Ride lifecycle. A ride stays "pending" (searchable and joinable) until its
// accepted match count reaches Seats, at which point it becomes "matched".
const (
	RideStatusPending   = "pending"
	RideStatusMatched   = "matched"
	RideStatusCompleted = "completed"
	RideStatusCancelled = "cancelled"
)

// Ride represents a trip posting from an owner looking for co-riders
type Ride struct {
	gorm.Model
	OwnerID          uint      `json:"ownerId" gorm:"not null;index"`
	Owner            *User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Origin           string    `json:"origin" gorm:"not null"`
	Destination      string    `json:"destination" gorm:"not null"`
	OriginLat        *float64  `json:"originLat,omitempty"`
	OriginLng        *float64  `json:"originLng,omitempty"`
	DestLat          *float64  `json:"destLat,omitempty"`
	DestLng          *float64  `json:"destLng,omitempty"`
	DepartureTime    time.Time `json:"departureTime" gorm:"not null;index"`
	VehicleType      string    `json:"vehicleType" gorm:"not null"` // cab, bike, auto
	Seats            int       `json:"seats" gorm:"not null;default:1;check:seats >= 1 AND seats <= 4"`
	Fare             *float64  `json:"fare,omitempty"`
	GenderPreference string    `json:"genderPreference" gorm:"not null;default:'any'"`
	Status           string    `json:"status" gorm:"not null;default:'pending';index"`
}

// TableName specifies the table name
func (Ride) TableName() string {
	return "rides"
}

// HasCoordinates reports whether the ride can participate in distance search
func (r *Ride) HasCoordinates() bool {
	return r.DestLat != nil && r.DestLng != nil
}
