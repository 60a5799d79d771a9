package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ridantG/trapy-ride-together-sub000/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and serializes
	// concurrent transactions the way row locks would in Postgres.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.PickupPoint{},
		&models.Booking{},
		&models.Rating{},
		&models.NotificationPreference{},
	))

	return db
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, userType models.UserType, gender models.Gender) *models.User {
	t.Helper()
	userSeq++

	user := models.User{
		Username:     fmt.Sprintf("user%d", userSeq),
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash: "x",
		UserType:     userType,
		Gender:       gender,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createRide(t *testing.T, db *gorm.DB, driverID uint, seats int, price int64) *models.Ride {
	t.Helper()

	ride := models.Ride{
		DriverID:       driverID,
		Origin:         "Kampala",
		Destination:    "Entebbe",
		DepartureTime:  time.Now().Add(24 * time.Hour),
		PricePerSeat:   price,
		SeatsTotal:     seats,
		SeatsAvailable: seats,
		Status:         models.RideStatusActive,
	}
	require.NoError(t, db.Create(&ride).Error)
	return &ride
}

func TestReserveCreatesPendingBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	b, err := svc.Reserve(context.Background(), ReserveInput{
		RideID:      ride.ID,
		PassengerID: passenger.ID,
		Seats:       2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, 2, b.SeatsBooked)
	assert.NotEmpty(t, b.Reference)

	// Price is computed from the ride row: 400 * 2 plus the 10% fee
	assert.Equal(t, int64(80), b.PlatformFee)
	assert.Equal(t, int64(880), b.TotalPrice)

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 2, fresh.SeatsAvailable)
}

func TestReserveConcurrentRequestsNeverOversell(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	ride := createRide(t, db, driver.ID, 3, 500)

	passengers := make([]*models.User, 5)
	for i := range passengers {
		passengers[i] = createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(passengers))
	for i, p := range passengers {
		wg.Add(1)
		go func(i int, passengerID uint) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), ReserveInput{
				RideID:      ride.ID,
				PassengerID: passengerID,
				Seats:       1,
			})
		}(i, p.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientSeats)
		}
	}
	assert.Equal(t, 3, succeeded)

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 0, fresh.SeatsAvailable)

	var active int64
	require.NoError(t, db.Model(&models.Booking{}).
		Where("ride_id = ? AND status = ?", ride.ID, models.BookingStatusPending).
		Count(&active).Error)
	assert.Equal(t, int64(3), active)
}

func TestReserveFailureLeavesNoPartialState(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 2, 300)

	_, err := svc.Reserve(context.Background(), ReserveInput{
		RideID:      ride.ID,
		PassengerID: passenger.ID,
		Seats:       3,
	})
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 2, fresh.SeatsAvailable)

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Where("ride_id = ?", ride.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReserveValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	_, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 0})
	assert.ErrorIs(t, err, ErrInvalidSeats)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: 9999, PassengerID: passenger.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrRideNotFound)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: driver.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrSelfBookingNotAllowed)
}

func TestReserveRejectsInactiveAndDepartedRides(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)

	cancelled := createRide(t, db, driver.ID, 4, 400)
	require.NoError(t, db.Model(cancelled).Update("status", models.RideStatusCancelled).Error)

	_, err := svc.Reserve(ctx, ReserveInput{RideID: cancelled.ID, PassengerID: passenger.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrRideNotActive)

	departed := createRide(t, db, driver.ID, 4, 400)
	require.NoError(t, db.Model(departed).Update("departure_time", time.Now().Add(-time.Hour)).Error)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: departed.ID, PassengerID: passenger.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrRideDeparted)
}

func TestReserveWomenOnlyGate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderFemale)
	male := createUser(t, db, models.UserTypePassenger, models.GenderMale)
	female := createUser(t, db, models.UserTypePassenger, models.GenderFemale)

	ride := createRide(t, db, driver.ID, 4, 400)
	require.NoError(t, db.Model(ride).Update("women_only", true).Error)

	_, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: male.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrGenderRestricted)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: female.ID, Seats: 1})
	assert.NoError(t, err)
}

func TestReserveRejectsSecondActiveBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	_, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestReserveAllowedAgainAfterCancellation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	first, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, first.ID, passenger.ID)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	assert.NoError(t, err)
}

func TestConfirmBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	other := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	ride := createRide(t, db, driver.ID, 4, 400)

	b, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, b.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	confirmed, err := svc.Confirm(ctx, b.ID, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)

	// Confirming twice is an invalid transition
	_, err = svc.Confirm(ctx, b.ID, driver.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRestoresSeatsExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	b, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 2})
	require.NoError(t, err)

	result, err := svc.Cancel(ctx, b.ID, passenger.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyCancelled)
	assert.Equal(t, models.BookingStatusCancelled, result.Booking.Status)

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 4, fresh.SeatsAvailable)

	// Repeating the cancellation is a no-op, seats stay untouched
	result, err = svc.Cancel(ctx, b.ID, passenger.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyCancelled)

	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 4, fresh.SeatsAvailable)
}

func TestCancelAuthorization(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	stranger := createUser(t, db, models.UserTypePassenger, models.GenderMale)
	ride := createRide(t, db, driver.ID, 4, 400)

	b, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 1})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// The ride's driver may cancel a passenger's booking
	result, err := svc.Cancel(ctx, b.ID, driver.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyCancelled)

	_, err = svc.Cancel(ctx, 9999, passenger.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelRestoreIsCappedAtSeatsTotal(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 5, 400)

	b, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 2})
	require.NoError(t, err)

	// Simulate drift: something already put the seats back
	require.NoError(t, db.Model(&models.Ride{}).Where("id = ?", ride.ID).
		UpdateColumn("seats_available", 5).Error)

	_, err = svc.Cancel(ctx, b.ID, passenger.ID)
	require.NoError(t, err)

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, 5, fresh.SeatsAvailable)
}

func TestCancelRideCascadesInOneTransaction(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	p1 := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	p2 := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	p3 := createUser(t, db, models.UserTypePassenger, models.GenderMale)
	ride := createRide(t, db, driver.ID, 6, 400)

	b1, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: p1.ID, Seats: 1})
	require.NoError(t, err)
	b2, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: p2.ID, Seats: 2})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b2.ID, driver.ID)
	require.NoError(t, err)

	// A booking cancelled before the cascade stays out of it
	b3, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: p3.ID, Seats: 1})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b3.ID, p3.ID)
	require.NoError(t, err)

	cascaded, err := svc.CancelRide(ctx, ride.ID, driver.ID)
	require.NoError(t, err)
	require.Len(t, cascaded, 2)

	for _, b := range cascaded {
		assert.Equal(t, models.BookingStatusCancelled, b.Status)
		assert.NotEmpty(t, b.Passenger.Email)
	}

	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, models.RideStatusCancelled, fresh.Status)

	var stillActive int64
	require.NoError(t, db.Model(&models.Booking{}).
		Where("ride_id = ? AND status IN ?", ride.ID,
			[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
		Count(&stillActive).Error)
	assert.Zero(t, stillActive)

	var db1 models.Booking
	require.NoError(t, db.First(&db1, b1.ID).Error)
	assert.Equal(t, models.BookingStatusCancelled, db1.Status)

	// Repeating the cancellation is a no-op with nothing left to cascade
	cascaded, err = svc.CancelRide(ctx, ride.ID, driver.ID)
	require.NoError(t, err)
	assert.Empty(t, cascaded)
}

func TestCancelRideRollsBackBookingsWhenRideUpdateFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	p1 := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	p2 := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 6, 400)

	b1, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: p1.ID, Seats: 1})
	require.NoError(t, err)
	b2, err := svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: p2.ID, Seats: 2})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b2.ID, driver.ID)
	require.NoError(t, err)

	// Fail the ride-status write after the bookings were already flipped,
	// as if the store died halfway through the cascade.
	failRideUpdate := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("fail_ride_update", func(tx *gorm.DB) {
			if failRideUpdate {
				if _, ok := tx.Statement.Model.(*models.Ride); ok {
					tx.AddError(errors.New("simulated store failure"))
				}
			}
		}))

	failRideUpdate = true
	_, err = svc.CancelRide(ctx, ride.ID, driver.ID)
	failRideUpdate = false
	require.Error(t, err)

	// Nothing moved: the ride is still active and both bookings kept their
	// statuses, so no passenger was cancelled on a ride that kept running.
	var fresh models.Ride
	require.NoError(t, db.First(&fresh, ride.ID).Error)
	assert.Equal(t, models.RideStatusActive, fresh.Status)
	assert.Equal(t, 3, fresh.SeatsAvailable)

	var db1, db2 models.Booking
	require.NoError(t, db.First(&db1, b1.ID).Error)
	require.NoError(t, db.First(&db2, b2.ID).Error)
	assert.Equal(t, models.BookingStatusPending, db1.Status)
	assert.Equal(t, models.BookingStatusConfirmed, db2.Status)

	// With the failure gone the cascade completes whole
	cascaded, err := svc.CancelRide(ctx, ride.ID, driver.ID)
	require.NoError(t, err)
	assert.Len(t, cascaded, 2)
}

func TestCancelRideAuthorizationAndTransitions(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	other := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	ride := createRide(t, db, driver.ID, 4, 400)

	_, err := svc.CancelRide(ctx, ride.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.CancelRide(ctx, 9999, driver.ID)
	assert.ErrorIs(t, err, ErrRideNotFound)

	completed := createRide(t, db, driver.ID, 4, 400)
	require.NoError(t, db.Model(completed).Update("status", models.RideStatusCompleted).Error)

	_, err = svc.CancelRide(ctx, completed.ID, driver.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSeatsAvailableReadsTheLedger(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	driver := createUser(t, db, models.UserTypeDriver, models.GenderMale)
	passenger := createUser(t, db, models.UserTypePassenger, models.GenderFemale)
	ride := createRide(t, db, driver.ID, 4, 400)

	seats, err := svc.SeatsAvailable(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, seats)

	_, err = svc.Reserve(ctx, ReserveInput{RideID: ride.ID, PassengerID: passenger.ID, Seats: 3})
	require.NoError(t, err)

	seats, err = svc.SeatsAvailable(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seats)

	_, err = svc.SeatsAvailable(ctx, 9999)
	assert.ErrorIs(t, err, ErrRideNotFound)
}
