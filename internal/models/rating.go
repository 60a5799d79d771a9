package models

import (
	"gorm.io/gorm"
)

// Rating is created once per completed booking per direction: the driver
// rates the passenger and the passenger rates the driver. The pair
// (booking_id, rater_id) is unique.
type Rating struct {
	gorm.Model
	BookingID uint    `json:"bookingId" gorm:"not null;uniqueIndex:idx_ratings_booking_rater"`
	Booking   Booking `json:"-"`
	RaterID   uint    `json:"raterId" gorm:"not null;uniqueIndex:idx_ratings_booking_rater"`
	RatedID   uint    `json:"ratedId" gorm:"not null;index"`
	Score     int     `json:"score" gorm:"not null"`
	Comment   string  `json:"comment"`
}
