package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"desktop-video-compress/internal/filter"
	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/mediatypes"
	"desktop-video-compress/internal/metrics"
	"desktop-video-compress/internal/notify"
	"desktop-video-compress/internal/registry"
	"desktop-video-compress/internal/transcoder"
	"desktop-video-compress/internal/workers"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchDir means the watched directory is missing, not a directory, or unreadable.
var ErrWatchDir = errors.New("watch directory unavailable")

// ErrNotReady is returned by Run when Preflight has not succeeded.
var ErrNotReady = errors.New("preflight has not completed")

// Settler waits for a file to stop changing.
type Settler interface {
	Wait(ctx context.Context, path string) (int64, error)
}

// Compressor builds and runs transcoder jobs.
type Compressor interface {
	NewJob(input string) (transcoder.Job, error)
	Run(ctx context.Context, job transcoder.Job) transcoder.Result
	Active() []transcoder.Job
}

// Disposer moves an original out of the way after a successful compression.
type Disposer interface {
	Dispose(path string) (string, error)
}

// Recorder persists finished jobs.
type Recorder interface {
	Record(ctx context.Context, rec *history.Record) error
}

// Options configures an Orchestrator.
type Options struct {
	Dir        string
	Extensions mediatypes.ExtensionSet
	Settler    Settler
	// Resolve locates the transcoder during Preflight.
	Resolve  func(ctx context.Context) (Compressor, error)
	Disposer Disposer
	Notifier notify.Notifier
	// History is optional.
	History Recorder
	Slots   *workers.Slots
	// Registry is optional; a fresh one is created when nil.
	Registry *registry.Registry
}

// Pipeline describes one path currently in flight.
type Pipeline struct {
	Path  string    `json:"path"`
	Stage string    `json:"stage"`
	Since time.Time `json:"since"`
}

// Status is a point-in-time view of the agent.
type Status struct {
	State     string           `json:"state"`
	Ready     bool             `json:"ready"`
	Terminal  bool             `json:"terminal"`
	WatchDir  string           `json:"watchDir"`
	StartedAt time.Time        `json:"startedAt"`
	Pipelines []Pipeline       `json:"pipelines"`
	Jobs      []transcoder.Job `json:"jobs"`
}

// Orchestrator owns the watch loop and one pipeline goroutine per accepted path.
type Orchestrator struct {
	opts     Options
	dir      string
	filter   *filter.Filter
	registry *registry.Registry

	compressor Compressor

	mu        sync.RWMutex
	state     State
	stages    map[string]State
	startedAt time.Time

	wg sync.WaitGroup
}

// New creates an Orchestrator in the Starting state.
func New(opts Options) *Orchestrator {
	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}
	if opts.Slots == nil {
		opts.Slots = workers.NewSlots(workers.MinTranscodeSlots)
	}

	o := &Orchestrator{
		opts:      opts,
		dir:       opts.Dir,
		filter:    filter.New(opts.Dir, opts.Extensions, reg),
		registry:  reg,
		stages:    make(map[string]State),
		startedAt: time.Now(),
	}
	o.setState(StateStarting)
	return o
}

// State returns the agent's lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()

	if prev != s {
		logging.Debug("State: %s -> %s", prev, s)
	}
	metrics.SetState(s.String(), AgentStates())
}

// Preflight resolves the transcoder and checks the watched directory.
// On failure the agent moves to FailedStartup and the user is notified once.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	o.setState(StatePreflight)

	err := o.preflight(ctx)
	if err != nil {
		o.setState(StateFailedStartup)
		o.opts.Notifier.Notify(notify.Title+" - Error", fmt.Sprintf("Cannot start: %v", err))
		return err
	}
	return nil
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	compressor, err := o.opts.Resolve(ctx)
	if err != nil {
		return err
	}

	if err := checkDir(o.dir); err != nil {
		return err
	}

	o.mu.Lock()
	o.compressor = compressor
	o.mu.Unlock()
	return nil
}

// checkDir verifies dir is a readable directory. Reading one entry catches
// privacy restrictions (macOS TCC) that a plain stat does not.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWatchDir, dir)
	}

	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchDir, err)
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrWatchDir, err)
	}
	return nil
}

// Run watches the directory until ctx is cancelled, then waits for every
// in-flight pipeline. Settling waits are abandoned on shutdown; running
// transcodes are allowed to finish.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.State() != StatePreflight || o.compressorOrNil() == nil {
		return ErrNotReady
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		o.setState(StateFailedStartup)
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			logging.Warn("Failed to close filesystem watcher: %v", err)
		}
	}()

	if err := fsw.Add(o.dir); err != nil {
		o.setState(StateFailedStartup)
		o.opts.Notifier.Notify(notify.Title+" - Error", fmt.Sprintf("Cannot watch %s: %v", o.dir, err))
		return fmt.Errorf("%w: failed to watch %s: %v", ErrWatchDir, o.dir, err)
	}

	o.setState(StateWatching)
	logging.Info("Watching %s for videos (%s)", o.dir, joinExts(o.opts.Extensions))
	o.opts.Notifier.Notify(notify.Title, fmt.Sprintf("Now watching %s for videos", o.dir))

	o.loop(ctx, fsw)

	logging.Info("Watcher stopped, waiting for %d in-flight file(s)", o.registry.Len())
	o.wg.Wait()

	o.setState(StateStopped)
	o.opts.Notifier.Notify(notify.Title, "Stopped watching")
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			kind, ok := eventKind(ev.Op)
			if !ok {
				continue
			}
			o.Dispatch(ctx, filter.Event{Path: ev.Name, Kind: kind, Time: time.Now()})
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrorsTotal.Inc()
			logging.Warn("Filesystem watcher error: %v", err)
		}
	}
}

// eventKind maps an fsnotify operation onto a filter kind. A rename into
// the directory arrives as Create for the new name. Writes are passed on
// so they are logged and counted, but only a Create starts a pipeline.
func eventKind(op fsnotify.Op) (filter.Kind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return filter.KindCreated, true
	case op.Has(fsnotify.Write):
		return filter.KindModified, true
	default:
		return "", false
	}
}

// Dispatch filters ev and, when accepted, starts a pipeline for its path.
// It never blocks on the pipeline itself.
func (o *Orchestrator) Dispatch(ctx context.Context, ev filter.Event) bool {
	metrics.WatcherEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	ev.Path = filepath.Clean(ev.Path)

	if o.compressorOrNil() == nil {
		logging.Debug("Ignoring %s before preflight", ev.Path)
		return false
	}

	decision := o.filter.Check(ev)
	if decision.Accept && !o.registry.TryAcquire(ev.Path) {
		decision = filter.Decision{Reason: filter.ReasonDuplicate}
	}
	metrics.FilterDecisionsTotal.WithLabelValues(string(decision.Reason)).Inc()

	if !decision.Accept {
		logging.Debug("Ignoring %s event for %s: %s", ev.Kind, ev.Path, decision.Reason)
		return false
	}

	logging.Info("Detected new video: %s", ev.Path)
	o.setStage(ev.Path, StateSettling)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.finish(ev.Path)
		o.process(ctx, ev.Path)
	}()
	return true
}

func (o *Orchestrator) finish(path string) {
	o.mu.Lock()
	delete(o.stages, path)
	o.mu.Unlock()
	o.registry.Release(path)
}

func (o *Orchestrator) setStage(path string, s State) {
	o.mu.Lock()
	o.stages[path] = s
	o.mu.Unlock()
}

// Stage returns the pipeline stage of path, if it is in flight.
func (o *Orchestrator) Stage(path string) (State, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.stages[path]
	return s, ok
}

func (o *Orchestrator) compressorOrNil() Compressor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.compressor
}

// Wait blocks until every in-flight pipeline has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Status returns a snapshot of the agent for the status endpoints.
func (o *Orchestrator) Status() Status {
	paths := o.registry.Paths()

	o.mu.RLock()
	status := Status{
		State:     o.state.String(),
		Ready:     o.state == StateWatching,
		Terminal:  o.state.Terminal(),
		WatchDir:  o.dir,
		StartedAt: o.startedAt,
		Pipelines: make([]Pipeline, 0, len(paths)),
	}
	for _, path := range paths {
		// A path is registered just before its stage is set.
		stage, ok := o.stages[path]
		if !ok {
			stage = StateSettling
		}
		p := Pipeline{Path: path, Stage: stage.String()}
		if since, ok := o.registry.Since(path); ok {
			p.Since = since
		}
		status.Pipelines = append(status.Pipelines, p)
	}
	compressor := o.compressor
	o.mu.RUnlock()

	status.Jobs = []transcoder.Job{}
	if compressor != nil {
		status.Jobs = compressor.Active()
	}
	return status
}

// GetStats implements metrics.StatsProvider.
func (o *Orchestrator) GetStats() metrics.Stats {
	stats := metrics.Stats{
		ActivePipelines: o.registry.Len(),
		SlotsInUse:      o.opts.Slots.InUse(),
		SlotsTotal:      o.opts.Slots.Cap(),
	}
	if c := o.compressorOrNil(); c != nil {
		stats.ActiveJobs = len(c.Active())
	}
	return stats
}

func joinExts(set mediatypes.ExtensionSet) string {
	return strings.Join(set.Sorted(), " ")
}
