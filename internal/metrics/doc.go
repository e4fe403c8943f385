// Package metrics provides Prometheus instrumentation for the desktop video
// compressor. All metrics are prefixed with "desktop_video_compress_".
//
// # Metric Categories
//
//   - HTTP: requests, latency and in-flight count of the optional status server
//   - Watcher: raw events, watcher errors, filter decisions by reason, active pipelines
//     and the current lifecycle state
//   - Settlement: outcomes (settled, vanished, timeout, cancelled) and wait duration
//   - Transcoder: jobs by status, duration per preset, in-progress jobs, bytes in and out
//   - Disposal and notifications: trash moves and notification deliveries by status
//   - Filesystem: ESTALE retries for network-mounted watch directories
//
// # Usage
//
// Metrics are registered on the default registry through promauto at package
// init. Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape, and start a Collector to sample gauges that
// are derived from pipeline state:
//
//	metrics.InitializeMetrics(reasons, states)
//	collector := metrics.NewCollector(orchestrator, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// The metrics endpoint is served by the handlers package when METRICS_ENABLED=true.
package metrics
