package booking

import (
	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
)

// Legal booking status transitions. There is no way out of cancelled and no
// way back from confirmed to pending.
var bookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:   {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusCancelled},
	models.BookingStatusCancelled: {},
}

// Legal ride status transitions: forward-only towards completed, with
// cancellation possible at any point before completion.
var rideTransitions = map[models.RideStatus][]models.RideStatus{
	models.RideStatusActive:     {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress: {models.RideStatusCompleted, models.RideStatusCancelled},
	models.RideStatusCompleted:  {},
	models.RideStatusCancelled:  {},
}

// CanTransitionBooking reports whether a booking may move from one status
// to another.
func CanTransitionBooking(from, to models.BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionRide reports whether a ride may move from one status to
// another.
func CanTransitionRide(from, to models.RideStatus) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
