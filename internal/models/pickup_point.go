package models

import (
	"gorm.io/gorm"
)

// PickupPoint is an optional boarding spot a driver offers along a ride.
type PickupPoint struct {
	gorm.Model
	RideID uint    `json:"rideId" gorm:"not null;index"`
	Label  string  `json:"label" gorm:"not null"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}
