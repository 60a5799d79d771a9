package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
)

var errAlreadyRated = errors.New("booking already rated by this user")

type RateBookingInput struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// RateBooking records a rating for the other party on a completed ride. Each
// side of a booking can rate once; the rated user's aggregate is maintained
// in the same transaction as the rating row.
func RateBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		var input RateBookingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var b models.Booking
		if err := db.Preload("Ride").First(&b, bookingId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if b.PassengerID != userId && b.Ride.DriverID != userId {
			c.JSON(403, gin.H{"error": "Not authorized to rate this booking"})
			return
		}
		if b.Ride.Status != models.RideStatusCompleted {
			c.JSON(409, gin.H{"error": "Ratings open once the ride is completed"})
			return
		}
		if b.Status != models.BookingStatusConfirmed {
			c.JSON(409, gin.H{"error": "Only confirmed bookings can be rated"})
			return
		}

		ratedID := b.Ride.DriverID
		if userId == b.Ride.DriverID {
			ratedID = b.PassengerID
		}

		rating := models.Rating{
			BookingID: b.ID,
			RaterID:   userId,
			RatedID:   ratedID,
			Score:     input.Score,
			Comment:   input.Comment,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			var existing int64
			if err := tx.Model(&models.Rating{}).
				Where("booking_id = ? AND rater_id = ?", b.ID, userId).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return errAlreadyRated
			}

			if err := tx.Create(&rating).Error; err != nil {
				return err
			}

			// Recompute the aggregate from existing values in one statement
			return tx.Model(&models.User{}).Where("id = ?", ratedID).
				Updates(map[string]interface{}{
					"rating_average": gorm.Expr(
						"(rating_average * rating_count + ?) / (rating_count + 1)", input.Score),
					"rating_count": gorm.Expr("rating_count + 1"),
				}).Error
		})
		if errors.Is(err, errAlreadyRated) {
			c.JSON(409, gin.H{"error": "You already rated this booking"})
			return
		}
		if err != nil {
			// A concurrent duplicate slips past the in-transaction count and
			// trips the unique index instead; report it the same way.
			var existing int64
			db.Model(&models.Rating{}).
				Where("booking_id = ? AND rater_id = ?", b.ID, userId).
				Count(&existing)
			if existing > 0 {
				c.JSON(409, gin.H{"error": "You already rated this booking"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to save rating"})
			return
		}

		c.JSON(201, gin.H{"rating": rating})
	}
}

// GetUserRatings returns the ratings received by a user
func GetUserRatings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid user ID"})
			return
		}

		var ratings []models.Rating
		if err := db.Where("rated_id = ?", targetId).
			Order("created_at DESC").Limit(50).
			Find(&ratings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch ratings"})
			return
		}

		var user models.User
		if err := db.Select("id", "rating_average", "rating_count").
			First(&user, targetId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"ratings":       ratings,
			"ratingAverage": user.RatingAverage,
			"ratingCount":   user.RatingCount,
		})
	}
}
