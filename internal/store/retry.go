package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/valetops/tagtrack/internal/apperr"
)

const (
	retryAttempts = 4
	retryBaseWait = 50 * time.Millisecond
)

// withRetry runs fn, retrying with doubling backoff while the failure is
// transient lock contention (another process holds the file). Exhausted
// retries surface as apperr.ErrPersistence so the caller can roll the
// in-memory mutation back.
func withRetry(fn func() error) error {
	wait := retryBaseWait
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !busy(err) {
			break
		}
		time.Sleep(wait)
		wait *= 2
	}
	return fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
}

func busy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
