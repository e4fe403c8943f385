// Package startup handles agent initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - WATCH_DIR: Directory to watch for new videos (default: ~/Desktop)
//   - COMPRESS_PRESET: Preset name, 4K or 1080p (default: 4K)
//   - VIDEO_EXTENSIONS: Comma separated list of recognized extensions
//   - OUTPUT_CONTAINER: Extension for compressed files (default: same as input)
//   - HANDBRAKE_PATH: Explicit HandBrakeCLI path (default: search known locations and PATH)
//   - SETTLE_INTERVAL: Time between size samples as Go duration (default: 1s)
//   - SETTLE_SAMPLES: Consecutive identical samples required (default: 3)
//   - SETTLE_TIMEOUT: Maximum time to wait for a file to settle (default: 10m)
//   - COMPRESS_WORKERS: Concurrent HandBrakeCLI processes (default: computed, minimum 2)
//   - LOG_FILE: Append-only log file (default: platform log directory)
//   - HISTORY_DB: SQLite ledger of finished jobs (default: user config directory)
//   - HISTORY_ENABLED: Record finished jobs (default: true)
//   - METRICS_ENABLED: Serve the local status and metrics endpoints (default: false)
//   - METRICS_PORT: Port for the status server (default: 9091)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - LOG_LEVEL / DEBUG: Logging level
//
// Invalid values are logged as warnings and replaced by their defaults.
// A leading "~/" in any path is expanded to the user's home directory.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X desktop-video-compress/internal/startup.Version=1.2.0"
//
// # Lifecycle Logging
//
// The package provides section logging for consistent output:
//   - [LogPreflight] and [LogPreflightFailed]: HandBrakeCLI resolution
//   - [LogHistoryInit]: History ledger initialization timing
//   - [LogHTTPRoutes]: Registered status routes (debug level)
//   - [LogWatcherStarted]: Watched directory, slots and endpoints
//   - [LogShutdownInitiated], [LogShutdownStepComplete], [LogShutdownComplete]
//
// # Example Usage
//
//	if err := logging.SetOutputFile(startup.ResolveLogFile()); err != nil {
//	    logging.Warn("Log file unavailable: %v", err)
//	}
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
package startup
