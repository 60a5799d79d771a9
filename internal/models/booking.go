package models

import (
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	gorm.Model
	Reference     string        `json:"reference" gorm:"uniqueIndex;not null"`
	RideID        uint          `json:"rideId" gorm:"not null;index"`
	Ride          Ride          `json:"ride"`
	PassengerID   uint          `json:"passengerId" gorm:"not null;index"`
	Passenger     User          `json:"passenger"`
	PickupPointID *uint         `json:"pickupPointId,omitempty"`
	SeatsBooked   int           `json:"seatsBooked" gorm:"not null"`
	TotalPrice    int64         `json:"totalPrice" gorm:"not null"`
	PlatformFee   int64         `json:"platformFee" gorm:"not null"`
	Status        BookingStatus `json:"status" gorm:"not null;default:'pending'"`
}

// IsActive reports whether the booking still holds seats on its ride.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}
