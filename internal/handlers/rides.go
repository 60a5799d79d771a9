package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ridantG/trapy-ride-together-sub000/internal/booking"
	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
	"github.com/ridantG/trapy-ride-together-sub000/internal/services"
	"github.com/ridantG/trapy-ride-together-sub000/pkg/utils"
)

type PickupPointInput struct {
	Label string  `json:"label" binding:"required"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type CreateRideInput struct {
	Origin        string             `json:"origin" binding:"required"`
	Destination   string             `json:"destination" binding:"required"`
	DepartureTime time.Time          `json:"departureTime" binding:"required"`
	PricePerSeat  int64              `json:"pricePerSeat" binding:"required,min=1"`
	SeatsTotal    int                `json:"seatsTotal" binding:"required,min=1,max=8"`
	WomenOnly     bool               `json:"womenOnly"`
	VehicleNotes  string             `json:"vehicleNotes"`
	PickupPoints  []PickupPointInput `json:"pickupPoints"`
}

// CreateRide publishes a new ride. Only drivers can create rides, and every
// seat starts available.
func CreateRide(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can create rides"})
			return
		}

		var input CreateRideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if !input.DepartureTime.After(time.Now()) {
			c.JSON(400, gin.H{"error": "Departure time must be in the future"})
			return
		}

		ride := models.Ride{
			DriverID:       userId,
			Origin:         input.Origin,
			Destination:    input.Destination,
			DepartureTime:  input.DepartureTime,
			PricePerSeat:   input.PricePerSeat,
			SeatsTotal:     input.SeatsTotal,
			SeatsAvailable: input.SeatsTotal,
			Status:         models.RideStatusActive,
			WomenOnly:      input.WomenOnly,
			VehicleNotes:   input.VehicleNotes,
		}
		for _, p := range input.PickupPoints {
			ride.PickupPoints = append(ride.PickupPoints, models.PickupPoint{
				Label: p.Label,
				Lat:   p.Lat,
				Lng:   p.Lng,
			})
		}

		if err := db.Create(&ride).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create ride: " + err.Error()})
			return
		}

		// Fire-and-forget announcement to subscribed passengers
		go func() {
			if err := services.SendTopicNotification(context.Background(), "new_rides", services.NotificationPayload{
				Title:     "New Ride Available",
				Body:      ride.Origin + " → " + ride.Destination,
				Data:      map[string]interface{}{"type": "new_ride", "rideId": ride.ID},
				ChannelID: "trapy_rides",
			}); err != nil {
				log.Printf("ride notification: topic push failed: %v", err)
			}
		}()

		c.JSON(201, gin.H{"ride": ride})
	}
}

// GetAvailableRides lists bookable rides, optionally filtered by origin,
// destination and date. Results only include rides that are active, not yet
// departed and have seats left.
func GetAvailableRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Preload("Driver").Preload("PickupPoints").
			Where("status = ? AND departure_time > ? AND seats_available > 0",
				models.RideStatusActive, time.Now())

		if origin := c.Query("origin"); origin != "" {
			query = query.Where("origin ILIKE ?", "%"+origin+"%")
		}
		if destination := c.Query("destination"); destination != "" {
			query = query.Where("destination ILIKE ?", "%"+destination+"%")
		}
		if date := c.Query("date"); date != "" {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				c.JSON(400, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
				return
			}
			query = query.Where("departure_time >= ? AND departure_time < ?", day, day.AddDate(0, 0, 1))
		}
		if c.Query("womenOnly") == "true" {
			query = query.Where("women_only = ?", true)
		}

		var rides []models.Ride
		err := booking.Reads.Do(func() error {
			return query.Order("departure_time ASC").Find(&rides).Error
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch rides"})
			return
		}

		c.JSON(200, gin.H{"rides": rides})
	}
}

// GetRide returns a single ride with driver and pickup points
func GetRide(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var ride models.Ride
		if err := db.Preload("Driver").Preload("PickupPoints").First(&ride, rideId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		c.JSON(200, gin.H{"ride": ride})
	}
}

// GetDriverRides returns the authenticated driver's rides
func GetDriverRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can view their rides"})
			return
		}

		var rides []models.Ride
		err := booking.Reads.Do(func() error {
			return db.Preload("PickupPoints").
				Where("driver_id = ?", userId).
				Order("departure_time DESC").
				Find(&rides).Error
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch rides"})
			return
		}

		c.JSON(200, gin.H{"rides": rides})
	}
}

// GetRideSeats returns the seat count for a ride. The cached copy serves
// display polling; on a miss the database is read and the cache refreshed.
// Reservation decisions never depend on this endpoint — the booking service
// re-checks availability inside its own transaction.
func GetRideSeats(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		if seats, err := services.GetCachedSeatCount(c.Request.Context(), uint(rideId)); err == nil {
			c.JSON(200, gin.H{"rideId": rideId, "seatsAvailable": seats, "cached": true})
			return
		}

		seats, err := svc.SeatsAvailable(c.Request.Context(), uint(rideId))
		if err != nil {
			if errors.Is(err, booking.ErrRideNotFound) {
				c.JSON(404, gin.H{"error": "Ride not found"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to fetch seat count"})
			return
		}

		go func(rideID uint, seats int) {
			if err := services.CacheSeatCount(context.Background(), rideID, seats); err != nil {
				log.Printf("seat cache refresh failed for ride %d: %v", rideID, err)
			}
		}(uint(rideId), seats)

		c.JSON(200, gin.H{"rideId": rideId, "seatsAvailable": seats, "cached": false})
	}
}

// StartRide moves an active ride to in_progress at departure
func StartRide(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return updateRideStatus(db, hub, models.RideStatusInProgress, "ride_started")
}

// CompleteRide marks an in_progress ride as completed, unlocking ratings
func CompleteRide(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return updateRideStatus(db, hub, models.RideStatusCompleted, "ride_completed")
}

func updateRideStatus(db *gorm.DB, hub *services.Hub, target models.RideStatus, eventType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		rideId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var ride models.Ride
		if err := db.First(&ride, rideId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if ride.DriverID != userId {
			c.JSON(403, gin.H{"error": "Only the ride's driver can update its status"})
			return
		}
		if !booking.CanTransitionRide(ride.Status, target) {
			c.JSON(409, gin.H{"error": "Ride cannot move from " + string(ride.Status) + " to " + string(target)})
			return
		}

		// Status-keyed update so two racing requests cannot both win
		res := db.Model(&models.Ride{}).
			Where("id = ? AND status = ?", ride.ID, ride.Status).
			Update("status", target)
		if res.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update ride status"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(409, gin.H{"error": "Ride status changed concurrently, retry"})
			return
		}
		ride.Status = target

		go notifyRideStatus(db, hub, &ride, eventType)

		c.JSON(200, gin.H{"ride": ride})
	}
}

// CancelRide cancels a ride and every active booking on it in one
// transaction, then notifies each affected passenger.
func CancelRide(svc BookingService, db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		rideId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		cascaded, err := svc.CancelRide(c.Request.Context(), uint(rideId), userId)
		if err != nil {
			status := bookingErrorStatus(err)
			if status == 500 {
				c.JSON(500, gin.H{"error": "Failed to cancel ride"})
				return
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		go notifyRideCancelled(db, hub, uint(rideId), cascaded)

		c.JSON(200, gin.H{
			"message":           "Ride cancelled",
			"cancelledBookings": len(cascaded),
		})
	}
}

// notifyRideStatus tells passengers with active bookings about a ride
// status change. Delivery is best-effort.
func notifyRideStatus(db *gorm.DB, hub *services.Hub, ride *models.Ride, eventType string) {
	ctx := context.Background()

	if err := services.PublishRideUpdate(ctx, ride.ID, string(ride.Status), nil); err != nil {
		log.Printf("ride notification: redis publish failed: %v", err)
	}

	var bookings []models.Booking
	if err := db.Where("ride_id = ? AND status IN ?", ride.ID,
		[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
		Find(&bookings).Error; err != nil {
		log.Printf("ride notification: failed to load bookings for ride %d: %v", ride.ID, err)
		return
	}

	for _, b := range bookings {
		hub.SendRideEvent(b.PassengerID, eventType, services.RideEvent{
			RideID: ride.ID,
			Status: string(ride.Status),
		})
	}
}

// notifyRideCancelled fans out websocket, push and email notifications to
// every passenger whose booking was cascade-cancelled.
func notifyRideCancelled(db *gorm.DB, hub *services.Hub, rideID uint, cascaded []models.Booking) {
	ctx := context.Background()

	var ride models.Ride
	if err := db.First(&ride, rideID).Error; err != nil {
		log.Printf("ride notification: failed to load ride %d: %v", rideID, err)
		return
	}

	if err := services.PublishRideUpdate(ctx, rideID, string(models.RideStatusCancelled), nil); err != nil {
		log.Printf("ride notification: redis publish failed: %v", err)
	}

	for _, b := range cascaded {
		hub.SendRideEvent(b.PassengerID, "ride_cancelled", services.RideEvent{
			RideID: rideID,
			Status: string(models.RideStatusCancelled),
			Reason: "driver_cancelled",
		})

		if b.Passenger.FCMToken != "" && prefersRideAlerts(db, b.PassengerID) {
			if err := services.SendRideCancelledNotification(ctx, b.Passenger.FCMToken,
				rideID, ride.Origin, ride.Destination); err != nil {
				log.Printf("ride notification: push to passenger %d failed: %v", b.PassengerID, err)
			}
		}

		if b.Passenger.Email != "" && prefersEmail(db, b.PassengerID) {
			if err := utils.SendRideCancelledEmail(b.Passenger.Email,
				ride.Origin, ride.Destination, ride.DepartureTime); err != nil {
				log.Printf("ride notification: email to passenger %d failed: %v", b.PassengerID, err)
			}
		}
	}
}

func prefersRideAlerts(db *gorm.DB, userID uint) bool {
	var prefs models.NotificationPreference
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return true
	}
	return prefs.PushEnabled && prefs.RideStatusAlerts
}
