package workflow

import (
	"fmt"
	"time"
)

// Policy bounds how a stage is retried.
type Policy struct {
	Retries  int           // attempts after the first
	Delay    time.Duration // initial backoff
	MaxDelay time.Duration // 0 means uncapped
	Timeout  time.Duration // per attempt, 0 means none
}

// DefaultPolicy mirrors the hosting platform defaults the pipeline was tuned for.
func DefaultPolicy() Policy {
	return Policy{
		Retries: 5,
		Delay:   10 * time.Second,
		Timeout: 3 * time.Minute,
	}
}

// WithTimeout returns a copy with a different attempt timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Delay <= 0 {
		return 0
	}
	d := p.Delay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// StageError is returned once a stage has exhausted its retries.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
