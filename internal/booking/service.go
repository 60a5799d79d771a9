package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
	"github.com/ridantG/trapy-ride-together-sub000/pkg/utils"
)

// errConflict signals that another transaction changed a row between our
// read and write. It is transient: the retry policy re-runs the operation,
// which then observes the committed state.
var errConflict = errors.New("concurrent update conflict")

// Service owns the transactional booking lifecycle: atomic seat
// reservation, confirmation, cancellation and driver-side ride cancellation
// with booking cascade. Every seat-count mutation happens in the same
// transaction as the booking-status mutation it belongs to, and the
// decrement/increment is done in SQL so no caller ever writes back a
// client-computed seat count.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ReserveInput describes a passenger's reservation request. Price is
// deliberately absent: it is computed from the ride row at transaction time.
type ReserveInput struct {
	RideID        uint
	PassengerID   uint
	Seats         int
	PickupPointID *uint
}

// Reserve books seats on a ride. It creates a pending booking and decrements
// seats_available in one all-or-nothing transaction. Transient store
// failures are retried once after a short delay; a failed attempt leaves no
// partial state behind.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*models.Booking, error) {
	if in.Seats < 1 {
		return nil, ErrInvalidSeats
	}

	var booking *models.Booking
	err := Writes.Do(func() error {
		b, err := s.reserveOnce(ctx, in)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Service) reserveOnce(ctx context.Context, in ReserveInput) (*models.Booking, error) {
	var created models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ride models.Ride
		if err := tx.First(&ride, in.RideID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRideNotFound
			}
			return err
		}

		if ride.Status != models.RideStatusActive {
			return ErrRideNotActive
		}
		if ride.HasDeparted() {
			return ErrRideDeparted
		}
		if ride.DriverID == in.PassengerID {
			return ErrSelfBookingNotAllowed
		}
		if ride.WomenOnly {
			var passenger models.User
			if err := tx.First(&passenger, in.PassengerID).Error; err != nil {
				return err
			}
			if passenger.Gender != models.GenderFemale {
				return ErrGenderRestricted
			}
		}

		var active int64
		if err := tx.Model(&models.Booking{}).
			Where("ride_id = ? AND passenger_id = ? AND status IN ?",
				in.RideID, in.PassengerID,
				[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrDuplicateBooking
		}

		// Guarded decrement: the seat condition re-evaluates under the row
		// lock at write time, so concurrent reservations cannot oversell no
		// matter what the earlier read saw.
		res := tx.Model(&models.Ride{}).
			Where("id = ? AND status = ? AND seats_available >= ?",
				in.RideID, models.RideStatusActive, in.Seats).
			UpdateColumn("seats_available", gorm.Expr("seats_available - ?", in.Seats))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientSeats
		}

		// Price comes from the ride row, never from the caller.
		quote := utils.QuoteFare(ride.PricePerSeat, in.Seats)

		created = models.Booking{
			Reference:     uuid.NewString(),
			RideID:        ride.ID,
			PassengerID:   in.PassengerID,
			PickupPointID: in.PickupPointID,
			SeatsBooked:   in.Seats,
			TotalPrice:    quote.Total,
			PlatformFee:   quote.PlatformFee,
			Status:        models.BookingStatusPending,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Confirm moves a pending booking to confirmed. Only the ride's driver may
// confirm, and only before departure.
func (s *Service) Confirm(ctx context.Context, bookingID, driverID uint) (*models.Booking, error) {
	var out models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.Preload("Ride").First(&b, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if b.Ride.DriverID != driverID {
			return ErrNotAuthorized
		}
		if !CanTransitionBooking(b.Status, models.BookingStatusConfirmed) {
			return ErrInvalidTransition
		}
		if b.Ride.HasDeparted() {
			return ErrInvalidTransition
		}

		if err := tx.Model(&models.Booking{}).Where("id = ?", b.ID).
			Update("status", models.BookingStatusConfirmed).Error; err != nil {
			return err
		}
		b.Status = models.BookingStatusConfirmed
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelResult reports the outcome of a cancellation. AlreadyCancelled is
// true when the booking was cancelled before the call; the call is then a
// no-op so retried client requests stay safe.
type CancelResult struct {
	Booking          *models.Booking
	AlreadyCancelled bool
}

// Cancel marks a booking cancelled and restores its seats to the ride, both
// in one transaction. The restore is keyed to the booking's own status flip,
// so seats come back exactly once however often the call is repeated. The
// acting user must be the booking's passenger or the ride's driver.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID uint) (*CancelResult, error) {
	var result CancelResult

	err := Writes.Do(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var b models.Booking
			if err := tx.Preload("Ride").First(&b, bookingID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrBookingNotFound
				}
				return err
			}

			if b.PassengerID != actorID && b.Ride.DriverID != actorID {
				return ErrNotAuthorized
			}

			if !b.IsActive() {
				result = CancelResult{Booking: &b, AlreadyCancelled: true}
				return nil
			}
			if !CanTransitionBooking(b.Status, models.BookingStatusCancelled) {
				return ErrInvalidTransition
			}

			// Flip the status keyed on the status we read. Zero rows means a
			// racing transaction got there first; retry and observe it.
			res := tx.Model(&models.Booking{}).
				Where("id = ? AND status = ?", b.ID, b.Status).
				Update("status", models.BookingStatusCancelled)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errConflict
			}

			// Restore the seats, capped at the published seat count.
			if err := tx.Model(&models.Ride{}).Where("id = ?", b.RideID).
				UpdateColumn("seats_available", gorm.Expr(
					"CASE WHEN seats_available + ? > seats_total THEN seats_total ELSE seats_available + ? END",
					b.SeatsBooked, b.SeatsBooked)).Error; err != nil {
				return err
			}

			b.Status = models.BookingStatusCancelled
			result = CancelResult{Booking: &b}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelRide cancels a ride and cascade-cancels every pending or confirmed
// booking on it, all inside a single transaction: either the ride and all
// its bookings end up cancelled together or nothing changes. Seats are not
// restored since the ride itself becomes unbookable. The cancelled bookings
// are returned, with passengers preloaded, so callers can notify each one
// after commit.
func (s *Service) CancelRide(ctx context.Context, rideID, driverID uint) ([]models.Booking, error) {
	var cascaded []models.Booking

	err := Writes.Do(func() error {
		cascaded = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var ride models.Ride
			if err := tx.First(&ride, rideID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRideNotFound
				}
				return err
			}

			if ride.DriverID != driverID {
				return ErrNotAuthorized
			}
			if ride.Status == models.RideStatusCancelled {
				return nil
			}
			if !CanTransitionRide(ride.Status, models.RideStatusCancelled) {
				return ErrInvalidTransition
			}

			activeStatuses := []models.BookingStatus{
				models.BookingStatusPending, models.BookingStatusConfirmed,
			}

			var bookings []models.Booking
			if err := tx.Preload("Passenger").
				Where("ride_id = ? AND status IN ?", rideID, activeStatuses).
				Find(&bookings).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.Booking{}).
				Where("ride_id = ? AND status IN ?", rideID, activeStatuses).
				Update("status", models.BookingStatusCancelled).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.Ride{}).Where("id = ?", rideID).
				Update("status", models.RideStatusCancelled).Error; err != nil {
				return err
			}

			for i := range bookings {
				bookings[i].Status = models.BookingStatusCancelled
			}
			cascaded = bookings
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cascaded, nil
}

// SeatsAvailable returns the authoritative unsold seat count for a ride.
// Cached copies of this number are advisory only; callers deciding whether a
// reservation can proceed must use this, never a previously fetched value.
func (s *Service) SeatsAvailable(ctx context.Context, rideID uint) (int, error) {
	var ride models.Ride
	if err := s.db.WithContext(ctx).Select("id", "seats_available").First(&ride, rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRideNotFound
		}
		return 0, err
	}
	return ride.SeatsAvailable, nil
}
