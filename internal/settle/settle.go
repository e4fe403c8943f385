// Package settle waits for a freshly created file to stop growing before it
// is handed to the transcoder.
package settle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"desktop-video-compress/internal/filesystem"
	"desktop-video-compress/internal/logging"
)

// Errors returned by Wait.
var (
	// ErrVanished means the file disappeared before it settled.
	ErrVanished = errors.New("file vanished before settling")
	// ErrTimeout means the size kept changing (or stayed empty) for the whole wait budget.
	ErrTimeout = errors.New("file did not settle in time")
	// ErrNotRegular means the path is a directory or another non-regular file.
	ErrNotRegular = errors.New("not a regular file")
)

const (
	// DefaultInterval is the pause between two size samples.
	DefaultInterval = time.Second
	// DefaultRequiredSamples is how many consecutive identical samples count as settled.
	DefaultRequiredSamples = 3
	// DefaultTimeout bounds the whole wait.
	DefaultTimeout = 10 * time.Minute
)

// StatFunc returns file metadata for a path.
type StatFunc func(path string) (os.FileInfo, error)

// PendingFile tracks one file under observation.
type PendingFile struct {
	Path        string
	LastSize    int64
	StableCount int
	SawNonZero  bool
	Samples     int
}

// Observe records a size sample and reports whether the file is now settled:
// the last required samples are identical, and the size is non-zero.
func (p *PendingFile) Observe(size int64, required int) bool {
	if p.Samples > 0 && size == p.LastSize {
		p.StableCount++
	} else {
		p.StableCount = 1
	}
	p.LastSize = size
	p.Samples++
	if size > 0 {
		p.SawNonZero = true
	}

	return p.SawNonZero && size > 0 && p.StableCount >= required
}

// Detector polls file sizes.
type Detector struct {
	Interval        time.Duration
	RequiredSamples int
	Timeout         time.Duration
	Stat            StatFunc
}

// New creates a Detector. Zero or negative values fall back to the defaults.
func New(interval time.Duration, requiredSamples int, timeout time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if requiredSamples < 2 {
		requiredSamples = DefaultRequiredSamples
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retry := filesystem.DefaultRetryConfig()
	return &Detector{
		Interval:        interval,
		RequiredSamples: requiredSamples,
		Timeout:         timeout,
		Stat: func(path string) (os.FileInfo, error) {
			return filesystem.StatWithRetry(path, retry)
		},
	}
}

// Wait blocks until path is settled and returns its final size. It returns
// ErrVanished, ErrNotRegular, ErrTimeout, or the context error when ctx is
// cancelled.
func (d *Detector) Wait(ctx context.Context, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	pending := &PendingFile{Path: path}

	for {
		info, err := d.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				logging.Debug("Settle: %s vanished after %d samples", path, pending.Samples)
				return 0, ErrVanished
			}
			return 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return 0, ErrNotRegular
		}

		if pending.Observe(info.Size(), d.RequiredSamples) {
			logging.Debug("Settle: %s settled at %d bytes after %d samples", path, info.Size(), pending.Samples)
			return info.Size(), nil
		}
		logging.Debug("Settle: %s sample %d size=%d stable=%d/%d",
			path, pending.Samples, info.Size(), pending.StableCount, d.RequiredSamples)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, fmt.Errorf("%w: %s still changing after %v (last size %d)",
					ErrTimeout, path, d.Timeout, pending.LastSize)
			}
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
