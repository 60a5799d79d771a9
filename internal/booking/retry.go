package booking

import (
	"log"
	"time"
)

// RetryPolicy retries an operation a fixed number of times with a fixed
// delay. Only transient store failures are retried; domain errors are
// deterministic and returned immediately.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration

	// sleep is replaceable in tests
	sleep func(time.Duration)
}

// Writes is the policy for reservation and cancellation calls: at most one
// retry after a one second delay. A failed attempt leaves no partial state
// behind, so a single re-run is safe.
var Writes = RetryPolicy{MaxRetries: 1, Delay: time.Second}

// Reads is the policy for list fetches: up to two retries with a one second
// delay.
var Reads = RetryPolicy{MaxRetries: 2, Delay: time.Second}

// Do runs fn, retrying on transient errors per the policy. The last error
// is returned when all attempts fail.
func (p RetryPolicy) Do(fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || IsDomainError(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return err
		}
		log.Printf("transient booking store error (attempt %d): %v", attempt+1, err)
		sleep(p.Delay)
	}
}
