package filesystem

import (
	"os"
	"time"

	"desktop-video-compress/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// RemoveWithRetry performs os.Remove with the same retry policy. A path that
// does not exist is not an error.
func RemoveWithRetry(path string, config RetryConfig) error {
	err := withRetry("remove", path, config, func() error {
		return os.Remove(path)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// withRetry runs fn until it succeeds, fails with a non-stale error, or the
// retry budget is spent.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	obs := observe()
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op)
			}
			obs.ObserveRetryDuration(op, time.Since(start).Seconds())
			return nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !IsStale(err) {
			obs.ObserveRetryDuration(op, time.Since(start).Seconds())
			return err
		}

		obs.ObserveStaleError(op)

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			obs.ObserveRetryAttempt(op)
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	obs.ObserveRetryFailure(op)
	obs.ObserveRetryDuration(op, time.Since(start).Seconds())
	return lastErr
}
