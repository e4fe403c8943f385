package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that overrides the computed
// worker count.
const EnvOverride = "COMPRESS_WORKERS"

// MinTranscodeSlots is the floor for concurrent transcodes so that a long
// job never blocks every other file dropped onto the desktop.
const MinTranscodeSlots = 2

// Count returns the optimal number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - below 1.0 for tasks that are themselves multi-threaded
//
// The limit parameter caps the worker count to prevent resource exhaustion.
// Use 0 for no limit.
//
// Can be overridden with the COMPRESS_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	// Check for manual override first
	if count, ok := Requested(); ok {
		if limit > 0 && count > limit {
			return limit
		}
		return count
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// Requested returns the positive worker count set in COMPRESS_WORKERS, if any.
func Requested() (int, bool) {
	override := os.Getenv(EnvOverride)
	if override == "" {
		return 0, false
	}
	count, err := strconv.Atoi(override)
	if err != nil || count <= 0 {
		return 0, false
	}
	return count, true
}

// ForTranscode returns the number of HandBrakeCLI processes allowed to run
// at once. HandBrake already spreads one encode across every core, so this
// uses one slot per four CPUs, never fewer than MinTranscodeSlots.
func ForTranscode(limit int) int {
	if limit > 0 && limit < MinTranscodeSlots {
		limit = MinTranscodeSlots
	}
	n := Count(0.25, limit)
	if n < MinTranscodeSlots {
		n = MinTranscodeSlots
	}
	return n
}

// Slots is a counting semaphore bounding concurrent work.
type Slots struct {
	ch chan struct{}
}

// NewSlots creates a semaphore with n slots. n below 1 is treated as 1.
func NewSlots(n int) *Slots {
	if n < 1 {
		n = 1
	}
	return &Slots{ch: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Slots) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (s *Slots) Release() {
	<-s.ch
}

// Cap returns the total number of slots.
func (s *Slots) Cap() int {
	return cap(s.ch)
}

// InUse returns the number of slots currently held.
func (s *Slots) InUse() int {
	return len(s.ch)
}
