package database

import (
	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.PickupPoint{},
		&models.Booking{},
		&models.Rating{},
		&models.NotificationPreference{},
	)
	if err != nil {
		return err
	}

	// Seat ledger bounds: seats_available stays within [0, seats_total] and
	// published prices are positive. The guarded updates in the booking
	// service already maintain these; the constraints make violations fail
	// loudly instead of silently corrupting the ledger.
	if db.Migrator().HasTable(&models.Ride{}) {
		constraints := map[string]string{
			"rides_seats_available_non_negative": "CHECK (seats_available >= 0)",
			"rides_seats_available_capped":       "CHECK (seats_available <= seats_total)",
			"rides_price_per_seat_positive":      "CHECK (price_per_seat > 0)",
			"rides_seats_total_positive":         "CHECK (seats_total > 0)",
		}
		for name, check := range constraints {
			db.Exec("ALTER TABLE rides DROP CONSTRAINT IF EXISTS " + name)
			if err := db.Exec("ALTER TABLE rides ADD CONSTRAINT " + name + " " + check).Error; err != nil {
				return err
			}
		}
	}

	if db.Migrator().HasTable(&models.Booking{}) {
		db.Exec("ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_seats_booked_positive")
		if err := db.Exec("ALTER TABLE bookings ADD CONSTRAINT bookings_seats_booked_positive CHECK (seats_booked > 0)").Error; err != nil {
			return err
		}

		// A passenger holds at most one active booking per ride. The service
		// pre-checks this inside the reservation transaction; the partial
		// unique index is the hard backstop.
		if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_one_active_per_passenger
			ON bookings (ride_id, passenger_id)
			WHERE status IN ('pending', 'confirmed') AND deleted_at IS NULL`).Error; err != nil {
			return err
		}
	}

	if db.Migrator().HasTable(&models.Rating{}) {
		db.Exec("ALTER TABLE ratings DROP CONSTRAINT IF EXISTS ratings_score_range")
		if err := db.Exec("ALTER TABLE ratings ADD CONSTRAINT ratings_score_range CHECK (score BETWEEN 1 AND 5)").Error; err != nil {
			return err
		}
	}

	return nil
}
