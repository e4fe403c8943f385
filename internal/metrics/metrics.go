package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics for the status server
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_http_requests_total",
			Help: "Total number of HTTP requests to the status server",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desktop_video_compress_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_watcher_events_total",
			Help: "Filesystem events received from the watched directory",
		},
		[]string{"kind"}, // "created", "modified"
	)

	WatcherErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
	)

	FilterDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_filter_decisions_total",
			Help: "Event filter decisions by reason",
		},
		[]string{"reason"},
	)

	PipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_pipelines_active",
			Help: "Paths currently settling, transcoding or disposing",
		},
	)

	AgentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_state",
			Help: "Current lifecycle state of the agent (1 = current)",
		},
		[]string{"state"},
	)
)

// Settlement metrics
var (
	SettleOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_settle_outcomes_total",
			Help: "Settlement waits by outcome",
		},
		[]string{"outcome"}, // "settled", "vanished", "timeout", "cancelled", "error"
	)

	SettleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "desktop_video_compress_settle_duration_seconds",
			Help:    "Time spent waiting for a file to stop changing",
			Buckets: []float64{1, 2, 3, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_transcoder_jobs_total",
			Help: "Compression jobs by status",
		},
		[]string{"status"}, // "success", "failure", "skipped"
	)

	TranscoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desktop_video_compress_transcoder_job_duration_seconds",
			Help:    "Wall-clock duration of HandBrakeCLI invocations",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		},
		[]string{"preset"},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_transcoder_jobs_in_progress",
			Help: "Number of HandBrakeCLI invocations currently running",
		},
	)

	TranscodeSlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_transcode_slots_in_use",
			Help: "Transcode slots currently held",
		},
	)

	TranscodeSlotsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_transcode_slots_total",
			Help: "Configured number of concurrent transcode slots",
		},
	)

	TranscoderInputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_transcoder_input_bytes_total",
			Help: "Total size of successfully compressed originals",
		},
	)

	TranscoderOutputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_transcoder_output_bytes_total",
			Help: "Total size of compressed outputs",
		},
	)
)

// Disposal and notification metrics
var (
	DisposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_disposals_total",
			Help: "Moves of originals to the trash by status",
		},
		[]string{"status"}, // "trashed", "permission_denied", "error"
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_notifications_total",
			Help: "Desktop notifications by delivery status",
		},
		[]string{"status"}, // "sent", "error", "skipped"
	)

	HistoryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_history_queries_total",
			Help: "Queries against the job history ledger by operation and status",
		},
		[]string{"operation", "status"},
	)

	HistoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desktop_video_compress_history_query_duration_seconds",
			Help:    "Job history ledger query duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desktop_video_compress_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desktop_video_compress_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by filesystem operations",
		},
		[]string{"operation"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "desktop_video_compress_app_info",
			Help: "Application build and configuration information",
		},
		[]string{"version", "commit", "go_version", "preset"},
	)
)
