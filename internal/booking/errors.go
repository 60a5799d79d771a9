package booking

import "errors"

// Domain errors returned by the booking service. Handlers map these to HTTP
// statuses; none of them is retryable.
var (
	ErrInsufficientSeats     = errors.New("not enough seats available")
	ErrRideNotFound          = errors.New("ride not found")
	ErrRideNotActive         = errors.New("ride is not open for booking")
	ErrRideDeparted          = errors.New("ride has already departed")
	ErrSelfBookingNotAllowed = errors.New("drivers cannot book their own ride")
	ErrGenderRestricted      = errors.New("ride is restricted to women")
	ErrDuplicateBooking      = errors.New("passenger already holds an active booking on this ride")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrNotAuthorized         = errors.New("not authorized for this booking")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvalidSeats          = errors.New("seats requested must be at least 1")
)

// IsDomainError reports whether err is one of the booking domain errors.
// Domain errors are deterministic rejections and must never be retried;
// anything else is treated as a transient store failure.
func IsDomainError(err error) bool {
	for _, domain := range []error{
		ErrInsufficientSeats,
		ErrRideNotFound,
		ErrRideNotActive,
		ErrRideDeparted,
		ErrSelfBookingNotAllowed,
		ErrGenderRestricted,
		ErrDuplicateBooking,
		ErrBookingNotFound,
		ErrNotAuthorized,
		ErrInvalidTransition,
		ErrInvalidSeats,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
