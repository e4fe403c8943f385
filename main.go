package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"desktop-video-compress/internal/disposal"
	"desktop-video-compress/internal/filesystem"
	"desktop-video-compress/internal/filter"
	"desktop-video-compress/internal/handlers"
	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/metrics"
	"desktop-video-compress/internal/middleware"
	"desktop-video-compress/internal/notify"
	"desktop-video-compress/internal/settle"
	"desktop-video-compress/internal/startup"
	"desktop-video-compress/internal/transcoder"
	"desktop-video-compress/internal/watcher"
	"desktop-video-compress/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// The file sink goes first so the banner and configuration land in it.
	if err := logging.SetOutputFile(startup.ResolveLogFile()); err != nil {
		logging.Warn("Logging to stderr only: %v", err)
	}
	defer logging.Close()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics(filterReasons(), watcher.AgentStates())
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion, config.Preset.Name).Set(1)

	notifier := notify.NewDesktop(runtime.GOOS)

	home, _ := os.UserHomeDir()
	disposer := disposal.New(disposal.Options{
		GOOS:     runtime.GOOS,
		Home:     home,
		DataHome: os.Getenv("XDG_DATA_HOME"),
		Advisory: func(err error) {
			logging.Warn("%s (%v)", disposal.PermissionAdvice, err)
			notifier.Notify(notify.Title+" - Error", disposal.PermissionAdvice)
		},
	})

	var store *history.Store
	if config.HistoryEnabled {
		historyStart := time.Now()
		store, err = history.New(context.Background(), config.HistoryPath)
		if err != nil {
			logging.Warn("History disabled: %v", err)
			store = nil
		} else {
			startup.LogHistoryInit(store.Path(), time.Since(historyStart))
		}
	}

	opts := watcher.Options{
		Dir:        config.WatchDir,
		Extensions: config.Extensions,
		Settler:    settle.New(config.SettleInterval, config.SettleSamples, config.SettleTimeout),
		Resolve: func(ctx context.Context) (watcher.Compressor, error) {
			bin, err := transcoder.Locate(runtime.GOOS, config.HandBrakePath)
			if err != nil {
				return nil, err
			}
			trans := transcoder.New(bin, config.Preset, config.OutputContainer)
			version, err := trans.Version(ctx)
			if err != nil {
				logging.Warn("Could not read HandBrakeCLI version: %v", err)
			}
			startup.LogPreflight(trans.Binary(), version, trans.Preset())
			return trans, nil
		},
		Disposer: disposer,
		Notifier: notifier,
		Slots:    workers.NewSlots(config.Workers),
	}
	// A nil *history.Store must not become a non-nil Recorder.
	if store != nil {
		opts.History = store
	}
	agent := watcher.New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := agent.Preflight(ctx); err != nil {
		startup.LogPreflightFailed(err)
		notifier.Wait()
		if store != nil {
			_ = store.Close()
		}
		_ = logging.Close()
		os.Exit(1)
	}

	var srv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		var reader handlers.HistoryReader
		if store != nil {
			reader = store
		}
		h := handlers.New(agent, reader)
		router := setupRouter(h)
		startup.LogHTTPRoutes(router, config.LogHealthChecks)

		loggingConfig := middleware.DefaultLoggingConfig()
		loggingConfig.LogHealthChecks = config.LogHealthChecks
		router.Use(middleware.Metrics(middleware.MetricsConfig{}))
		router.Use(middleware.Logger(loggingConfig))

		srv = &http.Server{
			Addr:              "127.0.0.1:" + config.MetricsPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Status server error: %v", err)
			}
		}()

		collector = metrics.NewCollector(agent, 5*time.Second)
		collector.Start()
	}

	go handleShutdown(cancel)

	startup.LogWatcherStarted(startup.WatcherConfig{
		WatchDir:        config.WatchDir,
		TrashDir:        disposer.TrashDir(),
		Workers:         config.Workers,
		MetricsEnabled:  config.MetricsEnabled,
		MetricsPort:     config.MetricsPort,
		StartupDuration: time.Since(startTime),
	})

	runErr := agent.Run(ctx)

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	if srv != nil {
		startup.LogShutdownStep("Shutting down status server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Status server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Status server stopped")
		}
		shutdownCancel()
	}

	if store != nil {
		startup.LogShutdownStep("Closing history ledger")
		if err := store.Close(); err != nil {
			logging.Warn("History close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("History ledger closed")
		}
	}

	startup.LogShutdownStep("Delivering pending notifications")
	notifier.Wait()
	startup.LogShutdownStepComplete("Notifications delivered")

	if runErr != nil {
		startup.LogPreflightFailed(runErr)
		_ = logging.Close()
		os.Exit(1)
	}
	startup.LogShutdownComplete()
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.Jobs).Methods("GET")
	api.HandleFunc("/history", h.History).Methods("GET")

	return r
}

// handleShutdown cancels the agent on SIGINT or SIGTERM. Running
// transcodes still finish before Run returns.
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	startup.LogShutdownStep("Stopping watcher and waiting for running transcodes")
	cancel()
}

func filterReasons() []string {
	reasons := make([]string, 0, len(filter.AllReasons))
	for _, r := range filter.AllReasons {
		reasons = append(reasons, string(r))
	}
	return reasons
}
