package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ridantG/trapy-ride-together-sub000/internal/booking"
	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
	"github.com/ridantG/trapy-ride-together-sub000/internal/services"
	"github.com/ridantG/trapy-ride-together-sub000/pkg/utils"
)

// BookingService is the transactional booking lifecycle the handlers drive.
// Implemented by booking.Service.
type BookingService interface {
	Reserve(ctx context.Context, in booking.ReserveInput) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID, driverID uint) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uint) (*booking.CancelResult, error)
	CancelRide(ctx context.Context, rideID, driverID uint) ([]models.Booking, error)
	SeatsAvailable(ctx context.Context, rideID uint) (int, error)
}

// bookingErrorStatus maps booking domain errors to HTTP statuses.
func bookingErrorStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrRideNotFound), errors.Is(err, booking.ErrBookingNotFound):
		return 404
	case errors.Is(err, booking.ErrNotAuthorized),
		errors.Is(err, booking.ErrSelfBookingNotAllowed),
		errors.Is(err, booking.ErrGenderRestricted):
		return 403
	case errors.Is(err, booking.ErrInsufficientSeats),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrRideNotActive),
		errors.Is(err, booking.ErrRideDeparted),
		errors.Is(err, booking.ErrInvalidTransition):
		return 409
	case errors.Is(err, booking.ErrInvalidSeats):
		return 400
	default:
		return 500
	}
}

type CreateBookingInput struct {
	RideID        uint  `json:"rideId" binding:"required"`
	Seats         int   `json:"seats" binding:"required,min=1"`
	PickupPointID *uint `json:"pickupPointId"`
}

// CreateBooking reserves seats on a ride for the authenticated passenger.
// The reservation is atomic: the pending booking and the seat decrement
// either both happen or neither does.
func CreateBooking(svc BookingService, db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input CreateBookingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.Reserve(c.Request.Context(), booking.ReserveInput{
			RideID:        input.RideID,
			PassengerID:   userId,
			Seats:         input.Seats,
			PickupPointID: input.PickupPointID,
		})
		if err != nil {
			status := bookingErrorStatus(err)
			if status == 500 {
				c.JSON(500, gin.H{"error": "Failed to create booking"})
				return
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		// Post-commit notifications, never inside the transaction
		go notifyBookingReceived(db, hub, b)

		c.JSON(201, gin.H{"booking": b})
	}
}

// ConfirmBooking lets the ride's driver confirm a pending booking
func ConfirmBooking(svc BookingService, db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		b, err := svc.Confirm(c.Request.Context(), uint(bookingId), userId)
		if err != nil {
			status := bookingErrorStatus(err)
			if status == 500 {
				c.JSON(500, gin.H{"error": "Failed to confirm booking"})
				return
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		go notifyBookingConfirmed(db, hub, b)

		c.JSON(200, gin.H{"booking": b})
	}
}

// CancelBooking cancels a booking and releases its seats. Repeating the call
// on an already cancelled booking succeeds without changing anything.
func CancelBooking(svc BookingService, db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		result, err := svc.Cancel(c.Request.Context(), uint(bookingId), userId)
		if err != nil {
			status := bookingErrorStatus(err)
			if status == 500 {
				c.JSON(500, gin.H{"error": "Failed to cancel booking"})
				return
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		if !result.AlreadyCancelled {
			go notifyBookingCancelled(db, hub, result.Booking, userId)
		}

		c.JSON(200, gin.H{
			"booking":          result.Booking,
			"alreadyCancelled": result.AlreadyCancelled,
		})
	}
}

// GetBookingStatus returns a single booking for its passenger or driver
func GetBookingStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		var b models.Booking
		if err := db.Preload("Ride").Preload("Ride.Driver").First(&b, bookingId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if b.PassengerID != userId && b.Ride.DriverID != userId {
			c.JSON(403, gin.H{"error": "Not authorized to view this booking"})
			return
		}

		c.JSON(200, gin.H{"booking": b})
	}
}

// GetClientBookings returns all bookings of the authenticated passenger
func GetClientBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		err := booking.Reads.Do(func() error {
			return db.Preload("Ride").Preload("Ride.Driver").
				Where("passenger_id = ?", userId).
				Order("created_at DESC").
				Find(&bookings).Error
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, gin.H{"bookings": bookings})
	}
}

// GetDriverBookings returns all bookings on the driver's rides
func GetDriverBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can view ride bookings"})
			return
		}

		var bookings []models.Booking
		err := booking.Reads.Do(func() error {
			return db.Preload("Ride").Preload("Passenger").
				Joins("JOIN rides ON rides.id = bookings.ride_id").
				Where("rides.driver_id = ?", userId).
				Order("bookings.created_at DESC").
				Find(&bookings).Error
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, gin.H{"bookings": bookings})
	}
}

// notifyBookingReceived alerts the driver that seats were booked on their
// ride. All delivery is best-effort.
func notifyBookingReceived(db *gorm.DB, hub *services.Hub, b *models.Booking) {
	ctx := context.Background()

	var ride models.Ride
	if err := db.Preload("Driver").First(&ride, b.RideID).Error; err != nil {
		log.Printf("booking notification: failed to load ride %d: %v", b.RideID, err)
		return
	}
	var passenger models.User
	if err := db.First(&passenger, b.PassengerID).Error; err != nil {
		log.Printf("booking notification: failed to load passenger %d: %v", b.PassengerID, err)
		return
	}

	hub.SendBookingEvent(ride.DriverID, "booking_received", services.BookingEvent{
		BookingID: b.ID,
		RideID:    b.RideID,
		Status:    string(b.Status),
		Seats:     b.SeatsBooked,
	})

	if err := services.PublishBookingUpdate(ctx, b.RideID, b.ID, string(b.Status)); err != nil {
		log.Printf("booking notification: redis publish failed: %v", err)
	}
	if seats, err := booking.NewService(db).SeatsAvailable(ctx, b.RideID); err == nil {
		if err := services.CacheSeatCount(ctx, b.RideID, seats); err != nil {
			log.Printf("booking notification: seat cache refresh failed: %v", err)
		}
	}

	if ride.Driver.FCMToken != "" && prefersBookingAlerts(db, ride.DriverID) {
		if err := services.SendBookingReceivedNotification(ctx, ride.Driver.FCMToken,
			b.ID, b.RideID, passenger.Username, b.SeatsBooked); err != nil {
			log.Printf("booking notification: push failed: %v", err)
		}
	}
}

// notifyBookingConfirmed alerts the passenger that the driver confirmed
func notifyBookingConfirmed(db *gorm.DB, hub *services.Hub, b *models.Booking) {
	ctx := context.Background()

	var passenger models.User
	if err := db.First(&passenger, b.PassengerID).Error; err != nil {
		log.Printf("booking notification: failed to load passenger %d: %v", b.PassengerID, err)
		return
	}
	var ride models.Ride
	if err := db.Preload("Driver").First(&ride, b.RideID).Error; err != nil {
		log.Printf("booking notification: failed to load ride %d: %v", b.RideID, err)
		return
	}

	hub.SendBookingEvent(b.PassengerID, "booking_confirmed", services.BookingEvent{
		BookingID: b.ID,
		RideID:    b.RideID,
		Status:    string(b.Status),
		Seats:     b.SeatsBooked,
	})

	if err := services.PublishBookingUpdate(ctx, b.RideID, b.ID, string(b.Status)); err != nil {
		log.Printf("booking notification: redis publish failed: %v", err)
	}

	if passenger.FCMToken != "" && prefersBookingAlerts(db, b.PassengerID) {
		if err := services.SendBookingConfirmedNotification(ctx, passenger.FCMToken,
			b.ID, ride.Driver.Username); err != nil {
			log.Printf("booking notification: push failed: %v", err)
		}
	}
}

// notifyBookingCancelled alerts whichever party did not initiate the
// cancellation, over websocket, push and email.
func notifyBookingCancelled(db *gorm.DB, hub *services.Hub, b *models.Booking, actorID uint) {
	ctx := context.Background()

	var ride models.Ride
	if err := db.Preload("Driver").First(&ride, b.RideID).Error; err != nil {
		log.Printf("booking notification: failed to load ride %d: %v", b.RideID, err)
		return
	}

	recipientID := ride.DriverID
	if actorID == ride.DriverID {
		recipientID = b.PassengerID
	}

	hub.SendBookingEvent(recipientID, "booking_cancelled", services.BookingEvent{
		BookingID: b.ID,
		RideID:    b.RideID,
		Status:    string(b.Status),
		Seats:     b.SeatsBooked,
	})

	if err := services.PublishBookingUpdate(ctx, b.RideID, b.ID, string(b.Status)); err != nil {
		log.Printf("booking notification: redis publish failed: %v", err)
	}
	if seats, err := booking.NewService(db).SeatsAvailable(ctx, b.RideID); err == nil {
		if err := services.CacheSeatCount(ctx, b.RideID, seats); err != nil {
			log.Printf("booking notification: seat cache refresh failed: %v", err)
		}
	}

	var recipient models.User
	if err := db.First(&recipient, recipientID).Error; err != nil {
		log.Printf("booking notification: failed to load user %d: %v", recipientID, err)
		return
	}

	if recipient.FCMToken != "" && prefersBookingAlerts(db, recipientID) {
		if err := services.SendBookingCancelledNotification(ctx, recipient.FCMToken,
			b.ID, ride.Origin, ride.Destination); err != nil {
			log.Printf("booking notification: push failed: %v", err)
		}
	}

	// Email only the passenger, and only when a driver cancelled on them
	if recipientID == b.PassengerID && prefersEmail(db, recipientID) {
		if err := utils.SendBookingCancelledEmail(recipient.Email,
			ride.Origin, ride.Destination, ride.DepartureTime); err != nil {
			log.Printf("booking notification: email failed: %v", err)
		}
	}
}

func prefersBookingAlerts(db *gorm.DB, userID uint) bool {
	var prefs models.NotificationPreference
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return true
	}
	return prefs.PushEnabled && prefs.BookingAlerts
}

func prefersEmail(db *gorm.DB, userID uint) bool {
	var prefs models.NotificationPreference
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return true
	}
	return prefs.EmailEnabled
}
