// Package notify delivers user-facing status messages through the native
// desktop notification facility. Delivery is best-effort: failures are
// logged and never returned to the caller.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/metrics"
	"desktop-video-compress/internal/transcoder"
)

// Title is the notification title for every message.
const Title = "Desktop Video Compress"

// deliveryTimeout bounds a single notification command.
const deliveryTimeout = 5 * time.Second

// Notifier emits pipeline status messages.
type Notifier interface {
	Started(name string)
	Succeeded(name string, original, compressed int64, savings float64)
	Failed(name, reason string)
	Notify(title, message string)
}

// StartedMessage is the text for a job that just started.
func StartedMessage(name string) string {
	return fmt.Sprintf("Starting compression of %s", name)
}

// SucceededMessage is the text for a successful job.
func SucceededMessage(name string, original, compressed int64, savings float64) string {
	return fmt.Sprintf("Compressed %s\nOriginal: %s → Compressed: %s (%s savings)",
		name, transcoder.FormatMB(original), transcoder.FormatMB(compressed), transcoder.FormatPercent(savings))
}

// FailedMessage is the text for a failed job.
func FailedMessage(name, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Failed to compress %s", name)
	}
	return fmt.Sprintf("Failed to compress %s: %s", name, reason)
}

// Runner executes a notification command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop sends notifications with osascript on macOS and notify-send on
// other unix desktops. Each message is delivered on its own goroutine.
type Desktop struct {
	goos string
	run  Runner
	wg   sync.WaitGroup
}

// NewDesktop creates a Desktop notifier for goos.
func NewDesktop(goos string) *Desktop {
	return &Desktop{goos: goos, run: execRunner}
}

// Started announces that name is being compressed.
func (d *Desktop) Started(name string) {
	d.Notify(Title, StartedMessage(name))
}

// Succeeded announces a finished compression with its statistics.
func (d *Desktop) Succeeded(name string, original, compressed int64, savings float64) {
	d.Notify(Title+" - Complete", SucceededMessage(name, original, compressed, savings))
}

// Failed announces a failed compression.
func (d *Desktop) Failed(name, reason string) {
	d.Notify(Title+" - Error", FailedMessage(name, reason))
}

// Notify delivers an arbitrary message without blocking.
func (d *Desktop) Notify(title, message string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(title, message)
	}()
}

// Wait blocks until every pending delivery has finished.
func (d *Desktop) Wait() {
	d.wg.Wait()
}

func (d *Desktop) deliver(title, message string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Notification panic: %v", r)
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
		}
	}()

	name, args, ok := Command(d.goos, title, message)
	if !ok {
		logging.Debug("Notification (no desktop facility): %s - %s", title, message)
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := d.run(ctx, name, args...); err != nil {
		logging.Warn("Failed to send notification %q: %v", title, err)
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return
	}

	logging.Info("Notification sent: %s - %s", title, strings.ReplaceAll(message, "\n", " | "))
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// Command returns the command line that shows a notification on goos.
// ok is false when goos has no supported facility.
func Command(goos, title, message string) (name string, args []string, ok bool) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(message), appleScriptString(title))
		return "osascript", []string{"-e", script}, true
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send", []string{"--app-name", Title, title, message}, true
	default:
		return "", nil, false
	}
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
