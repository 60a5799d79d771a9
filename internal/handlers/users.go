package handlers

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
	"github.com/ridantG/trapy-ride-together-sub000/internal/services"
)

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"id":            user.ID,
			"email":         user.Email,
			"username":      user.Username,
			"phoneNumber":   user.PhoneNumber,
			"userType":      user.UserType,
			"gender":        user.Gender,
			"avatarUrl":     user.AvatarURL,
			"carPlate":      user.CarPlate,
			"carMake":       user.CarMake,
			"carColor":      user.CarColor,
			"ratingAverage": user.RatingAverage,
			"ratingCount":   user.RatingCount,
		})
	}
}

// UpdateProfile updates the user's profile information
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Username    *string `json:"username"`
			PhoneNumber *string `json:"phoneNumber"`
			CarPlate    *string `json:"carPlate"`
			CarMake     *string `json:"carMake"`
			CarColor    *string `json:"carColor"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		// Update fields individually to handle empty strings properly
		if input.Username != nil {
			user.Username = *input.Username
		}
		if input.PhoneNumber != nil {
			user.PhoneNumber = *input.PhoneNumber
		}
		if input.CarPlate != nil {
			user.CarPlate = *input.CarPlate
		}
		if input.CarMake != nil {
			user.CarMake = *input.CarMake
		}
		if input.CarColor != nil {
			user.CarColor = *input.CarColor
		}

		// Use Save() instead of Updates() to persist all fields including empty strings
		if err := db.Save(&user).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update profile"})
			return
		}

		c.JSON(200, gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"username":    user.Username,
			"phoneNumber": user.PhoneNumber,
			"userType":    user.UserType,
			"gender":      user.Gender,
			"avatarUrl":   user.AvatarURL,
			"carPlate":    user.CarPlate,
			"carMake":     user.CarMake,
			"carColor":    user.CarColor,
		})
	}
}

// UploadAvatar stores a profile picture and updates the user's avatar URL.
// The old image is removed on a best-effort basis.
func UploadAvatar(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		file, err := c.FormFile("avatar")
		if err != nil {
			c.JSON(400, gin.H{"error": "Avatar file is required"})
			return
		}

		if file.Size > 5*1024*1024 {
			c.JSON(400, gin.H{"error": "Avatar must be smaller than 5MB"})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		url, err := services.UploadImage(file, "avatars")
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload avatar: " + err.Error()})
			return
		}

		oldURL := user.AvatarURL
		if err := db.Model(&user).Update("avatar_url", url).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update avatar"})
			return
		}

		if oldURL != "" {
			go services.DeleteImage(oldURL)
		}

		c.JSON(200, gin.H{"avatarUrl": url})
	}
}

// UpdateFCMToken registers a device token for push notifications
func UpdateFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := db.Model(&models.User{}).Where("id = ?", userId).
			Update("fcm_token", input.Token).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update FCM token"})
			return
		}

		// Passengers who want new-ride announcements follow the topic that
		// CreateRide publishes to. Fire-and-forget.
		if c.GetString("userType") == string(models.UserTypePassenger) {
			go func(token string, userID uint) {
				if !prefersNewRidesPush(db, userID) {
					return
				}
				if err := services.SubscribeToTopic(context.Background(), []string{token}, "new_rides"); err != nil {
					log.Printf("fcm topic subscription failed for user %d: %v", userID, err)
				}
			}(input.Token, userId)
		}

		c.JSON(200, gin.H{"message": "FCM token updated"})
	}
}

func prefersNewRidesPush(db *gorm.DB, userID uint) bool {
	var prefs models.NotificationPreference
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return true
	}
	return prefs.PushEnabled && prefs.NewRidesPush
}

// GetNotificationPreferences returns the user's notification settings,
// creating defaults if none exist yet.
func GetNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var prefs models.NotificationPreference
		if err := db.Where("user_id = ?", userId).First(&prefs).Error; err != nil {
			prefs = *models.DefaultPreferences(userId)
			if err := db.Create(&prefs).Error; err != nil {
				c.JSON(500, gin.H{"error": "Failed to load notification preferences"})
				return
			}
		}

		c.JSON(200, prefs)
	}
}

// UpdateNotificationPreferences updates the user's notification settings
func UpdateNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			PushEnabled      *bool `json:"pushEnabled"`
			BookingAlerts    *bool `json:"bookingAlerts"`
			RideStatusAlerts *bool `json:"rideStatusAlerts"`
			NewRidesPush     *bool `json:"newRidesPush"`
			EmailEnabled     *bool `json:"emailEnabled"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var prefs models.NotificationPreference
		if err := db.Where("user_id = ?", userId).First(&prefs).Error; err != nil {
			prefs = *models.DefaultPreferences(userId)
			if err := db.Create(&prefs).Error; err != nil {
				c.JSON(500, gin.H{"error": "Failed to load notification preferences"})
				return
			}
		}

		if input.PushEnabled != nil {
			prefs.PushEnabled = *input.PushEnabled
		}
		if input.BookingAlerts != nil {
			prefs.BookingAlerts = *input.BookingAlerts
		}
		if input.RideStatusAlerts != nil {
			prefs.RideStatusAlerts = *input.RideStatusAlerts
		}
		if input.NewRidesPush != nil {
			prefs.NewRidesPush = *input.NewRidesPush
		}
		if input.EmailEnabled != nil {
			prefs.EmailEnabled = *input.EmailEnabled
		}

		if err := db.Save(&prefs).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update notification preferences"})
			return
		}

		c.JSON(200, prefs)
	}
}
