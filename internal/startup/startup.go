package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/mediatypes"
	"desktop-video-compress/internal/settle"
	"desktop-video-compress/internal/transcoder"
	"desktop-video-compress/internal/workers"

	"github.com/gorilla/mux"
	"golang.org/x/term"
)

// AppName is used for the log file, history directory and notification title.
const AppName = "desktop-video-compress"

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	WatchDir        string
	Preset          transcoder.Preset
	Extensions      mediatypes.ExtensionSet
	OutputContainer string
	HandBrakePath   string

	SettleInterval time.Duration
	SettleSamples  int
	SettleTimeout  time.Duration
	Workers        int

	LogFile         string
	HistoryPath     string
	HistoryEnabled  bool
	MetricsEnabled  bool
	MetricsPort     string
	LogHealthChecks bool
}

// ResolveLogFile returns the log file path from LOG_FILE or the platform
// default. It is separate from LoadConfig so the file sink can be attached
// before the banner is written.
func ResolveLogFile() string {
	if path := getEnv("LOG_FILE", ""); path != "" {
		return expandHome(path)
	}
	return defaultLogFile(runtime.GOOS, userHome(), os.Getenv("XDG_STATE_HOME"))
}

func defaultLogFile(goos, home, stateHome string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Logs", AppName+".log")
	}
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, AppName, AppName+".log")
}

// DefaultHistoryPath returns the platform default location of the history ledger.
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(userHome(), ".config")
	}
	return filepath.Join(dir, AppName, "history.db")
}

// maxTranscodeSlots caps COMPRESS_WORKERS.
const maxTranscodeSlots = 4

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	home := userHome()
	watchDir := expandHome(getEnv("WATCH_DIR", filepath.Join(home, "Desktop")))
	presetName := getEnv("COMPRESS_PRESET", transcoder.DefaultPresetName)
	extensionList := getEnv("VIDEO_EXTENSIONS", strings.Join(mediatypes.DefaultVideoExtensions, ","))
	container := strings.TrimPrefix(strings.ToLower(getEnv("OUTPUT_CONTAINER", "")), ".")
	handBrakePath := expandHome(getEnv("HANDBRAKE_PATH", ""))
	settleIntervalStr := getEnv("SETTLE_INTERVAL", settle.DefaultInterval.String())
	settleTimeoutStr := getEnv("SETTLE_TIMEOUT", settle.DefaultTimeout.String())
	settleSamples := getEnvInt("SETTLE_SAMPLES", settle.DefaultRequiredSamples)
	historyPath := expandHome(getEnv("HISTORY_DB", DefaultHistoryPath()))
	historyEnabled := getEnvBool("HISTORY_ENABLED", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", false)
	metricsPort := getEnv("METRICS_PORT", "9091")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	workerCount := workers.ForTranscode(maxTranscodeSlots)

	preset, known := transcoder.ResolvePreset(presetName)
	extensions := mediatypes.ParseExtensions(extensionList)

	logging.Info("  WATCH_DIR:           %s", watchDir)
	logging.Info("  COMPRESS_PRESET:     %s", preset.Name)
	logging.Info("  VIDEO_EXTENSIONS:    %s", strings.Join(extensions.Sorted(), ","))
	logging.Info("  OUTPUT_CONTAINER:    %s", valueOr(container, "(same as input)"))
	logging.Info("  HANDBRAKE_PATH:      %s", valueOr(handBrakePath, "(auto-detect)"))
	logging.Info("  SETTLE_INTERVAL:     %s", settleIntervalStr)
	logging.Info("  SETTLE_SAMPLES:      %d", settleSamples)
	logging.Info("  SETTLE_TIMEOUT:      %s", settleTimeoutStr)
	logging.Info("  COMPRESS_WORKERS:    %d", workerCount)
	logging.Info("  HISTORY_ENABLED:     %v", historyEnabled)
	logging.Info("  HISTORY_DB:          %s", historyPath)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if !known {
		logging.Warn("  Unknown COMPRESS_PRESET %q, using %s (available: %s)",
			presetName, preset.Name, strings.Join(transcoder.PresetNames(), ", "))
	}

	settleInterval, err := time.ParseDuration(settleIntervalStr)
	if err != nil || settleInterval <= 0 {
		logging.Warn("  Invalid SETTLE_INTERVAL, using default: %s", settle.DefaultInterval)
		settleInterval = settle.DefaultInterval
	}

	settleTimeout, err := time.ParseDuration(settleTimeoutStr)
	if err != nil || settleTimeout <= 0 {
		logging.Warn("  Invalid SETTLE_TIMEOUT, using default: %s", settle.DefaultTimeout)
		settleTimeout = settle.DefaultTimeout
	}

	if requested, ok := workers.Requested(); ok && requested != workerCount {
		logging.Warn("  COMPRESS_WORKERS=%d adjusted to %d (allowed range %d-%d)",
			requested, workerCount, workers.MinTranscodeSlots, maxTranscodeSlots)
	}

	if settleSamples < 2 {
		logging.Warn("  SETTLE_SAMPLES must be at least 2, using default: %d", settle.DefaultRequiredSamples)
		settleSamples = settle.DefaultRequiredSamples
	}

	watchDir, err = filepath.Abs(watchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch directory path: %w", err)
	}

	config := &Config{
		WatchDir:        watchDir,
		Preset:          preset,
		Extensions:      extensions,
		OutputContainer: container,
		HandBrakePath:   handBrakePath,
		SettleInterval:  settleInterval,
		SettleSamples:   settleSamples,
		SettleTimeout:   settleTimeout,
		Workers:         workerCount,
		LogFile:         ResolveLogFile(),
		HistoryPath:     historyPath,
		HistoryEnabled:  historyEnabled,
		MetricsEnabled:  metricsEnabled,
		MetricsPort:     metricsPort,
		LogHealthChecks: logHealthChecks,
	}

	if config.HistoryEnabled {
		logging.Info("")
		config.HistoryEnabled = setupOptionalDir(filepath.Dir(historyPath), "history")
	}

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    History:     %s", enabledString(config.HistoryEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// LogPreflight logs the transcoder resolved during preflight.
func LogPreflight(binary, version string, preset transcoder.Preset) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PREFLIGHT")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] HandBrakeCLI: %s", binary)
	if version != "" {
		logging.Info("  Version: %s", version)
	}
	logging.Info("  Preset:  %s (%s)", preset.Name, strings.Join(preset.Args, " "))
}

// LogPreflightFailed logs why the agent cannot start.
func LogPreflightFailed(err error) {
	logging.Error("")
	logging.Error("------------------------------------------------------------")
	logging.Error("PREFLIGHT FAILED")
	logging.Error("------------------------------------------------------------")
	logging.Error("  %v", err)
}

// LogHistoryInit logs history ledger initialization
func LogHistoryInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HISTORY INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] History ledger %s opened in %v", path, duration)
}

// WatcherConfig holds configuration for the watcher startup log
type WatcherConfig struct {
	WatchDir        string
	TrashDir        string
	Workers         int
	MetricsEnabled  bool
	MetricsPort     string
	StartupDuration time.Duration
}

// LogWatcherStarted logs that the agent is watching for videos
func LogWatcherStarted(config WatcherConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WATCHER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Watching:        %s", config.WatchDir)
	if config.TrashDir != "" {
		logging.Info("  Trash:           %s", config.TrashDir)
	} else {
		logging.Info("  Trash:           UNSUPPORTED (originals are kept)")
	}
	logging.Info("  Transcode slots: %d", config.Workers)
	if config.MetricsEnabled {
		logging.Info("  Status:          http://localhost:%s/api/jobs", config.MetricsPort)
		logging.Info("  Metrics:         http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Status/Metrics:  DISABLED (set METRICS_ENABLED=true to enable)")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the status server routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STATUS SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	// Skip the ASCII art when running under a LaunchAgent or systemd unit.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(`
------------------------------------------------------------
     ____            __   __                _   ___     __
    / __ \___  _____/ /__/ /_____  ____    | | / (_)___/ /__  ____
   / / / / _ \/ ___/ //_/ __/ __ \/ __ \   | |/ / / __  / _ \/ __ \
  / /_/ /  __(__  ) ,< / /_/ /_/ / /_/ /   |   / / /_/ /  __/ /_/ /
 /_____/\___/____/_/|_|\__/\____/ .___/    |__/_/\__,_/\___/\____/
                               /_/          compress
------------------------------------------------------------`)
	}
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path == "~" {
		return userHome()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(userHome(), path[2:])
	}
	return path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
