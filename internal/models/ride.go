package models

import (
	"time"

	"gorm.io/gorm"
)

type RideStatus string

const (
	RideStatusActive     RideStatus = "active"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

type Ride struct {
	gorm.Model
	DriverID       uint       `json:"driverId" gorm:"not null;index"`
	Driver         User       `json:"driver"`
	Origin         string     `json:"origin" gorm:"not null"`
	Destination    string     `json:"destination" gorm:"not null"`
	DepartureTime  time.Time  `json:"departureTime" gorm:"not null"`
	PricePerSeat   int64      `json:"pricePerSeat" gorm:"not null"` // currency units per seat
	SeatsTotal     int        `json:"seatsTotal" gorm:"not null"`
	SeatsAvailable int        `json:"seatsAvailable" gorm:"not null"`
	Status         RideStatus `json:"status" gorm:"not null;default:'active'"`
	WomenOnly      bool       `json:"womenOnly" gorm:"default:false"`
	VehicleNotes   string     `json:"vehicleNotes"`

	PickupPoints []PickupPoint `json:"pickupPoints,omitempty"`
}

// HasDeparted reports whether the scheduled departure time has passed.
func (r *Ride) HasDeparted() bool {
	return !time.Now().Before(r.DepartureTime)
}
