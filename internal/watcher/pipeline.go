package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"desktop-video-compress/internal/disposal"
	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/metrics"
	"desktop-video-compress/internal/settle"
	"desktop-video-compress/internal/transcoder"
)

// process runs Settling → Transcoding → Disposing for one path.
func (o *Orchestrator) process(ctx context.Context, path string) {
	name := filepath.Base(path)

	if !o.settle(ctx, path) {
		return
	}

	compressor := o.compressorOrNil()
	job, err := compressor.NewJob(path)
	if err != nil {
		if errors.Is(err, transcoder.ErrOutputExists) {
			logging.Info("Skipping %s: %v", name, err)
			metrics.TranscoderJobsTotal.WithLabelValues("skipped").Inc()
			return
		}
		logging.Error("Cannot compress %s: %v", name, err)
		return
	}

	// Waiting for a slot is still abandonable; once HandBrakeCLI starts the
	// job always runs to completion.
	if err := o.opts.Slots.Acquire(ctx); err != nil {
		logging.Info("Shutdown before %s started compressing", name)
		return
	}

	o.setStage(path, StateTranscoding)
	logging.Info("Starting compression: %s -> %s (preset %s)", path, job.OutputPath, job.Preset)
	o.opts.Notifier.Started(name)

	result := compressor.Run(ctx, job)
	o.opts.Slots.Release()

	// Everything after the transcode must complete even during shutdown.
	ctx = context.WithoutCancel(ctx)
	observeResult(result)

	if !result.Success {
		logging.Error("Compression of %s failed: %s (exit code %d, %v)", name, result.Reason, result.ExitCode, result.Elapsed.Round(time.Millisecond))
		if result.ErrorDetail != "" {
			logging.Error("HandBrakeCLI output for %s:\n%s", name, result.ErrorDetail)
		}
		o.opts.Notifier.Failed(name, result.Reason)
		o.record(ctx, result, history.DisposalNone, "")
		return
	}

	logging.Info("Compressed %s: %s -> %s (%s savings) in %v",
		name,
		transcoder.FormatMB(result.OriginalSize),
		transcoder.FormatMB(result.CompressedSize),
		transcoder.FormatPercent(result.Savings()),
		result.Elapsed.Round(time.Second))
	o.opts.Notifier.Succeeded(name, result.OriginalSize, result.CompressedSize, result.Savings())

	o.setStage(path, StateDisposing)
	outcome, trashPath := o.dispose(path)
	o.record(ctx, result, outcome, trashPath)
}

// settle waits for path to stop changing and reports whether the pipeline
// should continue.
func (o *Orchestrator) settle(ctx context.Context, path string) bool {
	start := time.Now()
	size, err := o.opts.Settler.Wait(ctx, path)
	metrics.SettleDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.SettleOutcomesTotal.WithLabelValues("settled").Inc()
		logging.Debug("%s settled at %s", path, transcoder.FormatMB(size))
		return true
	case errors.Is(err, settle.ErrVanished), errors.Is(err, settle.ErrNotRegular):
		metrics.SettleOutcomesTotal.WithLabelValues("vanished").Inc()
		logging.Debug("Dropping %s: %v", path, err)
	case errors.Is(err, settle.ErrTimeout):
		metrics.SettleOutcomesTotal.WithLabelValues("timeout").Inc()
		logging.Warn("Giving up on %s: %v", path, err)
	case errors.Is(err, context.Canceled):
		metrics.SettleOutcomesTotal.WithLabelValues("cancelled").Inc()
		logging.Debug("Abandoning %s: shutting down", path)
	default:
		metrics.SettleOutcomesTotal.WithLabelValues("error").Inc()
		logging.Warn("Cannot watch %s settle: %v", path, err)
	}
	return false
}

// dispose moves the original to the trash. Failures are logged; they never
// change the outcome of the compression.
func (o *Orchestrator) dispose(path string) (string, string) {
	dest, err := o.opts.Disposer.Dispose(path)
	switch {
	case err == nil:
		metrics.DisposalsTotal.WithLabelValues("trashed").Inc()
		logging.Info("Moved original %s to %s", path, dest)
		return history.DisposalTrashed, dest
	case errors.Is(err, disposal.ErrPermission):
		metrics.DisposalsTotal.WithLabelValues("permission_denied").Inc()
		logging.Warn("Could not move %s to the trash: %v", path, err)
		return history.DisposalPermissionDenied, ""
	case errors.Is(err, disposal.ErrUnsupported):
		metrics.DisposalsTotal.WithLabelValues("unsupported").Inc()
		logging.Info("Leaving original %s in place: %v", path, err)
		return history.DisposalUnsupported, ""
	default:
		metrics.DisposalsTotal.WithLabelValues("error").Inc()
		logging.Warn("Could not move %s to the trash: %v", path, err)
		return history.DisposalError, ""
	}
}

func (o *Orchestrator) record(ctx context.Context, result transcoder.Result, outcome, trashPath string) {
	if o.opts.History == nil {
		return
	}
	rec := history.FromResult(result, outcome, trashPath)
	if err := o.opts.History.Record(ctx, &rec); err != nil {
		logging.Warn("Failed to record history for %s: %v", result.Job.InputPath, err)
	}
}

func observeResult(result transcoder.Result) {
	metrics.TranscoderJobDuration.WithLabelValues(result.Job.Preset).Observe(result.Elapsed.Seconds())
	if !result.Success {
		metrics.TranscoderJobsTotal.WithLabelValues("failure").Inc()
		return
	}
	metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
	metrics.TranscoderInputBytesTotal.Add(float64(result.OriginalSize))
	metrics.TranscoderOutputBytesTotal.Add(float64(result.CompressedSize))
}
