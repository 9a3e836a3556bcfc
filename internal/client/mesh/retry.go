package mesh

import "time"

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// RetryPolicy bounds connection attempts per remote. MaxAttempts counts the
// first attempt too.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// Next reports whether another attempt is allowed after failures consecutive
// failures, and how long to wait before it.
func (p RetryPolicy) Next(failures int) (time.Duration, bool) {
	if failures >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}
