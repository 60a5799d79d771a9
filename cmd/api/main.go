package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ridantG/trapy-ride-together-sub000/internal/booking"
	"github.com/ridantG/trapy-ride-together-sub000/internal/database"
	"github.com/ridantG/trapy-ride-together-sub000/internal/handlers"
	"github.com/ridantG/trapy-ride-together-sub000/internal/middleware"
	"github.com/ridantG/trapy-ride-together-sub000/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Firebase (optional - will log warning if not configured)
	if err := services.InitFirebase(); err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Booking lifecycle service
	bookingSvc := booking.NewService(db)

	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve locally stored uploads (avatars)
	r.Static("/uploads", "/app/uploads")

	r.GET("/health", handlers.HealthCheck(hub))

	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.HandleWebSocket(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
				users.POST("/avatar", handlers.UploadAvatar(db))
				users.POST("/fcm-token", handlers.UpdateFCMToken(db))
				users.GET("/:id/ratings", handlers.GetUserRatings(db))
			}

			rides := protected.Group("/rides")
			{
				rides.GET("", handlers.GetAvailableRides(db))
				rides.POST("", handlers.CreateRide(db))
				rides.GET("/driver", handlers.GetDriverRides(db))
				rides.GET("/:id", handlers.GetRide(db))
				rides.GET("/:id/seats", handlers.GetRideSeats(bookingSvc))
				rides.POST("/:id/start", handlers.StartRide(db, hub))
				rides.POST("/:id/complete", handlers.CompleteRide(db, hub))
				rides.POST("/:id/cancel", handlers.CancelRide(bookingSvc, db, hub))
			}

			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(bookingSvc, db, hub))
				bookings.GET("/client", handlers.GetClientBookings(db))
				bookings.GET("/driver", handlers.GetDriverBookings(db))
				bookings.GET("/:id/status", handlers.GetBookingStatus(db))
				bookings.POST("/:id/confirm", handlers.ConfirmBooking(bookingSvc, db, hub))
				bookings.POST("/:id/cancel", handlers.CancelBooking(bookingSvc, db, hub))
				bookings.POST("/:id/rate", handlers.RateBooking(db))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("/preferences", handlers.GetNotificationPreferences(db))
				notifications.PUT("/preferences", handlers.UpdateNotificationPreferences(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
