package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"desktop-video-compress/internal/disposal"
	"desktop-video-compress/internal/filter"
	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/mediatypes"
	"desktop-video-compress/internal/notify"
	"desktop-video-compress/internal/settle"
	"desktop-video-compress/internal/transcoder"
	"desktop-video-compress/internal/workers"

	"github.com/fsnotify/fsnotify"
)

// fakeNotifier records every message in delivery order.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) add(msg string) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) Started(name string) { f.add(notify.StartedMessage(name)) }

func (f *fakeNotifier) Succeeded(name string, original, compressed int64, savings float64) {
	f.add(notify.SucceededMessage(name, original, compressed, savings))
}

func (f *fakeNotifier) Failed(name, reason string) { f.add(notify.FailedMessage(name, reason)) }

func (f *fakeNotifier) Notify(title, message string) { f.add(title + ": " + message) }

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func (f *fakeNotifier) find(substr string) (string, bool) {
	for _, msg := range f.all() {
		if strings.Contains(msg, substr) {
			return msg, true
		}
	}
	return "", false
}

// fakeSettler returns immediately unless block is set, in which case it
// waits for block to close or ctx to end.
type fakeSettler struct {
	err   error
	block chan struct{}
}

func (f *fakeSettler) Wait(ctx context.Context, path string) (int64, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, settle.ErrVanished
	}
	return info.Size(), nil
}

// fakeCompressor produces results without running anything.
type fakeCompressor struct {
	mu        sync.Mutex
	newJobs   int
	runs      int
	newJobErr error
	success   bool
	release   chan struct{}
	running   chan struct{}
}

func (f *fakeCompressor) NewJob(input string) (transcoder.Job, error) {
	f.mu.Lock()
	f.newJobs++
	f.mu.Unlock()
	if f.newJobErr != nil {
		return transcoder.Job{}, f.newJobErr
	}
	return transcoder.Job{InputPath: input, OutputPath: mediatypes.CompressedPath(input, ""), Preset: "4K"}, nil
}

func (f *fakeCompressor) Run(_ context.Context, job transcoder.Job) transcoder.Result {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.running != nil {
		close(f.running)
	}
	if f.release != nil {
		<-f.release
	}
	res := transcoder.Result{Job: job, OriginalSize: 100, ExitCode: 0}
	if f.success {
		res.Success = true
		res.CompressedSize = 40
	} else {
		res.ExitCode = 3
		res.Reason = "HandBrakeCLI exited with status 3"
	}
	return res
}

func (f *fakeCompressor) Active() []transcoder.Job { return nil }

func (f *fakeCompressor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newJobs, f.runs
}

type fakeDisposer struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (f *fakeDisposer) Dispose(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	return "/trash/" + filepath.Base(path), nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (f *fakeRecorder) Record(_ context.Context, rec *history.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeRecorder) all() []history.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Record(nil), f.records...)
}

type harness struct {
	dir        string
	orch       *Orchestrator
	notifier   *fakeNotifier
	settler    *fakeSettler
	compressor *fakeCompressor
	disposer   *fakeDisposer
	recorder   *fakeRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dir:        t.TempDir(),
		notifier:   &fakeNotifier{},
		settler:    &fakeSettler{},
		compressor: &fakeCompressor{success: true},
		disposer:   &fakeDisposer{},
		recorder:   &fakeRecorder{},
	}
	h.orch = New(Options{
		Dir:        h.dir,
		Extensions: mediatypes.NewExtensionSet(mediatypes.DefaultVideoExtensions),
		Settler:    h.settler,
		Resolve:    func(context.Context) (Compressor, error) { return h.compressor, nil },
		Disposer:   h.disposer,
		Notifier:   h.notifier,
		History:    h.recorder,
		Slots:      workers.NewSlots(2),
	})
	if err := h.orch.Preflight(context.Background()); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	return h
}

func (h *harness) touch(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (h *harness) created(path string) filter.Event {
	return filter.Event{Path: path, Kind: filter.KindCreated, Time: time.Now()}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "starting"},
		{StatePreflight, "preflight"},
		{StateWatching, "watching"},
		{StateSettling, "settling"},
		{StateTranscoding, "transcoding"},
		{StateDisposing, "disposing"},
		{StateStopped, "stopped"},
		{StateFailedStartup, "failed_startup"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}

	if !StateStopped.Terminal() || !StateFailedStartup.Terminal() || StateWatching.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		op     fsnotify.Op
		want   filter.Kind
		wantOK bool
	}{
		{fsnotify.Create, filter.KindCreated, true},
		{fsnotify.Write, filter.KindModified, true},
		{fsnotify.Create | fsnotify.Write, filter.KindCreated, true},
		{fsnotify.Rename, "", false},
		{fsnotify.Remove, "", false},
		{fsnotify.Chmod, "", false},
	}

	for _, tt := range tests {
		got, ok := eventKind(tt.op)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("eventKind(%v) = (%q, %v), want (%q, %v)", tt.op, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPreflightFailures(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		dir     string
		resolve func(context.Context) (Compressor, error)
		wantErr error
	}{
		{
			name:    "transcoder missing",
			dir:     t.TempDir(),
			resolve: func(context.Context) (Compressor, error) { return nil, transcoder.ErrNotFound },
			wantErr: transcoder.ErrNotFound,
		},
		{
			name:    "watch dir missing",
			dir:     filepath.Join(t.TempDir(), "missing"),
			resolve: func(context.Context) (Compressor, error) { return &fakeCompressor{}, nil },
			wantErr: ErrWatchDir,
		},
		{
			name:    "watch dir is a file",
			dir:     file,
			resolve: func(context.Context) (Compressor, error) { return &fakeCompressor{}, nil },
			wantErr: ErrWatchDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			o := New(Options{Dir: tt.dir, Resolve: tt.resolve, Notifier: notifier})

			err := o.Preflight(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Preflight() error = %v, want %v", err, tt.wantErr)
			}
			if o.State() != StateFailedStartup {
				t.Errorf("State() = %s, want failed_startup", o.State())
			}
			if status := o.Status(); !status.Terminal || status.Ready {
				t.Errorf("Status() terminal/ready = %v/%v, want true/false", status.Terminal, status.Ready)
			}
			if msgs := notifier.all(); len(msgs) != 1 || !strings.Contains(msgs[0], "Cannot start") {
				t.Errorf("notifications = %q, want exactly one startup failure", msgs)
			}
			if err := o.Run(context.Background()); !errors.Is(err, ErrNotReady) {
				t.Errorf("Run() after failed preflight = %v, want ErrNotReady", err)
			}
		})
	}
}

func TestRunRequiresPreflight(t *testing.T) {
	o := New(Options{Dir: t.TempDir(), Notifier: &fakeNotifier{}})

	if err := o.Run(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Run() = %v, want ErrNotReady", err)
	}
	if o.Dispatch(context.Background(), filter.Event{Path: filepath.Join(o.dir, "a.mov"), Kind: filter.KindCreated}) {
		t.Error("Dispatch() before preflight should not start a pipeline")
	}
}

func TestDispatchRejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		path string
	}{
		{"compressed marker", filepath.Join(h.dir, "clip_compressed.mov")},
		{"unrecognized extension", filepath.Join(h.dir, "notes.txt")},
		{"hidden temp file", filepath.Join(h.dir, ".clip.mov")},
		{"nested directory", filepath.Join(h.dir, "sub", "clip.mov")},
		{"other directory", filepath.Join(t.TempDir(), "clip.mov")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h.orch.Dispatch(context.Background(), h.created(tt.path)) {
				t.Errorf("Dispatch(%s) accepted", tt.path)
			}
		})
	}

	h.orch.Wait()
	if newJobs, _ := h.compressor.counts(); newJobs != 0 {
		t.Errorf("NewJob called %d times, want 0", newJobs)
	}
	if msgs := h.notifier.all(); len(msgs) != 0 {
		t.Errorf("unexpected notifications: %q", msgs)
	}
}

func TestDispatchReentryYieldsOneJob(t *testing.T) {
	h := newHarness(t)
	h.settler.block = make(chan struct{})
	path := h.touch(t, "clip.mov", 10)

	accepted := 0
	events := []filter.Event{
		h.created(path),
		{Path: path, Kind: filter.KindModified, Time: time.Now()},
		{Path: path, Kind: filter.KindModified, Time: time.Now()},
		h.created(path),
	}
	for _, ev := range events {
		if h.orch.Dispatch(context.Background(), ev) {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted %d events, want 1", accepted)
	}

	if stage, ok := h.orch.Stage(path); !ok || stage != StateSettling {
		t.Errorf("Stage() = %s, %v, want settling", stage, ok)
	}
	status := h.orch.Status()
	if len(status.Pipelines) != 1 || status.Pipelines[0].Stage != "settling" {
		t.Errorf("Status().Pipelines = %+v", status.Pipelines)
	}
	if stats := h.orch.GetStats(); stats.ActivePipelines != 1 || stats.SlotsTotal != 2 || stats.SlotsInUse != 0 {
		t.Errorf("GetStats() = %+v, want 1 pipeline and 0/2 slots", stats)
	}

	close(h.settler.block)
	h.orch.Wait()

	if newJobs, runs := h.compressor.counts(); newJobs != 1 || runs != 1 {
		t.Errorf("NewJob/Run = %d/%d, want 1/1", newJobs, runs)
	}
	if _, ok := h.orch.Stage(path); ok {
		t.Error("path should leave the registry after its pipeline ends")
	}

	// A later event for the same path starts a fresh attempt.
	if !h.orch.Dispatch(context.Background(), h.created(path)) {
		t.Error("path should be accepted again after release")
	}
	h.orch.Wait()
}

func TestDispatchIgnoresWritesToIdleFiles(t *testing.T) {
	h := newHarness(t)
	path := h.touch(t, "holiday.mov", 10)

	if h.orch.Dispatch(context.Background(), filter.Event{Path: path, Kind: filter.KindModified, Time: time.Now()}) {
		t.Error("a write to a file that is not in flight should not start a pipeline")
	}
	h.orch.Wait()

	if newJobs, _ := h.compressor.counts(); newJobs != 0 {
		t.Errorf("NewJob called %d times, want 0", newJobs)
	}
	if len(h.disposer.paths) != 0 {
		t.Errorf("nothing should be disposed: %v", h.disposer.paths)
	}
}

func TestDistinctFilesRunConcurrently(t *testing.T) {
	h := newHarness(t)
	h.settler.block = make(chan struct{})

	a := h.touch(t, "a.mov", 10)
	b := h.touch(t, "b.mp4", 10)
	if !h.orch.Dispatch(context.Background(), h.created(a)) || !h.orch.Dispatch(context.Background(), h.created(b)) {
		t.Fatal("distinct files should both be accepted")
	}
	if got := len(h.orch.Status().Pipelines); got != 2 {
		t.Errorf("in-flight pipelines = %d, want 2", got)
	}

	close(h.settler.block)
	h.orch.Wait()
	if _, runs := h.compressor.counts(); runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestPipelineSuccess(t *testing.T) {
	h := newHarness(t)
	path := h.touch(t, "clip.mov", 10)

	h.orch.Dispatch(context.Background(), h.created(path))
	h.orch.Wait()

	want := []string{
		notify.StartedMessage("clip.mov"),
		notify.SucceededMessage("clip.mov", 100, 40, 60),
	}
	if got := h.notifier.all(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("notifications = %q, want %q", got, want)
	}
	if len(h.disposer.paths) != 1 || h.disposer.paths[0] != path {
		t.Errorf("disposed = %v, want [%s]", h.disposer.paths, path)
	}

	records := h.recorder.all()
	if len(records) != 1 || !records[0].Success || records[0].Disposal != history.DisposalTrashed {
		t.Errorf("history = %+v", records)
	}
}

func TestPipelineFailureLeavesOriginal(t *testing.T) {
	h := newHarness(t)
	h.compressor.success = false
	path := h.touch(t, "clip.mov", 10)

	h.orch.Dispatch(context.Background(), h.created(path))
	h.orch.Wait()

	if msg, ok := h.notifier.find("Failed to compress clip.mov"); !ok || !strings.Contains(msg, "status 3") {
		t.Errorf("failure notification missing, got %q", h.notifier.all())
	}
	if len(h.disposer.paths) != 0 {
		t.Errorf("original should not be disposed after failure: %v", h.disposer.paths)
	}
	records := h.recorder.all()
	if len(records) != 1 || records[0].Success || records[0].Disposal != history.DisposalNone {
		t.Errorf("history = %+v", records)
	}
}

func TestPipelineDisposalErrorKeepsSuccess(t *testing.T) {
	h := newHarness(t)
	h.disposer.err = fmt.Errorf("%w: EPERM", disposal.ErrPermission)
	path := h.touch(t, "clip.mov", 10)

	h.orch.Dispatch(context.Background(), h.created(path))
	h.orch.Wait()

	if _, ok := h.notifier.find("Compressed clip.mov"); !ok {
		t.Errorf("success notification missing: %q", h.notifier.all())
	}
	if _, ok := h.notifier.find("Failed"); ok {
		t.Errorf("disposal error must not produce a failure notification: %q", h.notifier.all())
	}
	records := h.recorder.all()
	if len(records) != 1 || !records[0].Success || records[0].Disposal != history.DisposalPermissionDenied {
		t.Errorf("history = %+v", records)
	}
}

func TestPipelineUnsupportedTrashKeepsOriginal(t *testing.T) {
	h := newHarness(t)
	h.disposer.err = disposal.ErrUnsupported
	path := h.touch(t, "clip.mov", 10)

	h.orch.Dispatch(context.Background(), h.created(path))
	h.orch.Wait()

	if _, ok := h.notifier.find("Compressed clip.mov"); !ok {
		t.Errorf("success notification missing: %q", h.notifier.all())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original should stay in place: %v", err)
	}
	records := h.recorder.all()
	if len(records) != 1 || !records[0].Success || records[0].Disposal != history.DisposalUnsupported {
		t.Errorf("history = %+v", records)
	}
}

func TestPipelineSkipsWhenOutputExists(t *testing.T) {
	h := newHarness(t)
	h.compressor.newJobErr = fmt.Errorf("%w: clip_compressed.mov", transcoder.ErrOutputExists)
	path := h.touch(t, "clip.mov", 10)

	h.orch.Dispatch(context.Background(), h.created(path))
	h.orch.Wait()

	if _, runs := h.compressor.counts(); runs != 0 {
		t.Errorf("Run called %d times, want 0", runs)
	}
	if msgs := h.notifier.all(); len(msgs) != 0 {
		t.Errorf("unexpected notifications: %q", msgs)
	}
}

func TestPipelineSettleFailuresAreSilent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"vanished", settle.ErrVanished},
		{"timeout", fmt.Errorf("%w: still growing", settle.ErrTimeout)},
		{"not regular", settle.ErrNotRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.settler.err = tt.err
			path := h.touch(t, "clip.mov", 10)

			h.orch.Dispatch(context.Background(), h.created(path))
			h.orch.Wait()

			if newJobs, _ := h.compressor.counts(); newJobs != 0 {
				t.Errorf("NewJob called %d times, want 0", newJobs)
			}
			if msgs := h.notifier.all(); len(msgs) != 0 {
				t.Errorf("unexpected notifications: %q", msgs)
			}
		})
	}
}

func TestShutdownAbandonsSettling(t *testing.T) {
	h := newHarness(t)
	h.settler.block = make(chan struct{})
	path := h.touch(t, "clip.mov", 10)

	ctx, cancel := context.WithCancel(context.Background())
	h.orch.Dispatch(ctx, h.created(path))
	cancel()
	h.orch.Wait()

	if newJobs, _ := h.compressor.counts(); newJobs != 0 {
		t.Errorf("NewJob called %d times after shutdown, want 0", newJobs)
	}
}

func TestShutdownWaitsForTranscode(t *testing.T) {
	h := newHarness(t)
	h.compressor.running = make(chan struct{})
	h.compressor.release = make(chan struct{})
	path := h.touch(t, "clip.mov", 10)

	ctx, cancel := context.WithCancel(context.Background())
	h.orch.Dispatch(ctx, h.created(path))
	<-h.compressor.running
	cancel()

	done := make(chan struct{})
	go func() {
		h.orch.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait() returned while a transcode was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.compressor.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait() did not return after the transcode finished")
	}

	if len(h.recorder.all()) != 1 {
		t.Error("history should be recorded even after shutdown began")
	}
	if len(h.disposer.paths) != 1 {
		t.Error("original should still be disposed after shutdown began")
	}
}

func writeFakeHandBrake(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake HandBrakeCLI needs a POSIX shell")
	}

	script := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
` + body
	path := filepath.Join(t.TempDir(), "HandBrakeCLI")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake HandBrakeCLI: %v", err)
	}
	return path
}

type endToEnd struct {
	dir      string
	home     string
	orch     *Orchestrator
	notifier *fakeNotifier
	store    *history.Store
}

func newEndToEnd(t *testing.T, scriptBody string) *endToEnd {
	t.Helper()
	bin := writeFakeHandBrake(t, scriptBody)

	e := &endToEnd{dir: t.TempDir(), home: t.TempDir(), notifier: &fakeNotifier{}}

	store, err := history.New(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	e.store = store

	e.orch = New(Options{
		Dir:        e.dir,
		Extensions: mediatypes.NewExtensionSet(mediatypes.DefaultVideoExtensions),
		Settler:    settle.New(10*time.Millisecond, 2, 5*time.Second),
		Resolve: func(context.Context) (Compressor, error) {
			return transcoder.New(bin, transcoder.Presets[transcoder.DefaultPresetName], ""), nil
		},
		Disposer: disposal.New(disposal.Options{GOOS: "darwin", Home: e.home}),
		Notifier: e.notifier,
		History:  store,
		Slots:    workers.NewSlots(2),
	})
	if err := e.orch.Preflight(context.Background()); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	return e
}

func writeSparse(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEndToEndSuccess(t *testing.T) {
	e := newEndToEnd(t, `dd if=/dev/zero of="$out" bs=1 count=0 seek=26214400 2>/dev/null
exit 0
`)
	input := filepath.Join(e.dir, "clip.mov")
	writeSparse(t, input, 100*1024*1024)

	e.orch.Dispatch(context.Background(), filter.Event{Path: input, Kind: filter.KindCreated})
	e.orch.Wait()

	msg, ok := e.notifier.find("Compressed clip.mov")
	if !ok {
		t.Fatalf("success notification missing: %q", e.notifier.all())
	}
	for _, want := range []string{"100.0MB", "25.0MB", "75.0%"} {
		if !strings.Contains(msg, want) {
			t.Errorf("success text %q missing %q", msg, want)
		}
	}

	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Errorf("original should be gone from the watched directory, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.home, ".Trash", "clip.mov")); err != nil {
		t.Errorf("original not found in trash: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "clip_compressed.mov")); err != nil {
		t.Errorf("compressed output missing: %v", err)
	}

	records, err := e.store.Recent(context.Background(), history.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || !records[0].Success || records[0].Disposal != history.DisposalTrashed {
		t.Errorf("history = %+v", records)
	}
}

func TestEndToEndFailure(t *testing.T) {
	e := newEndToEnd(t, `echo "x265 [error]: encoder failed" >&2
exit 1
`)
	input := filepath.Join(e.dir, "clip.mov")
	writeSparse(t, input, 1024*1024)

	e.orch.Dispatch(context.Background(), filter.Event{Path: input, Kind: filter.KindCreated})
	e.orch.Wait()

	if _, ok := e.notifier.find("Failed to compress clip.mov"); !ok {
		t.Errorf("failure notification missing: %q", e.notifier.all())
	}
	if _, err := os.Stat(input); err != nil {
		t.Errorf("original should be untouched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "clip_compressed.mov")); !os.IsNotExist(err) {
		t.Errorf("no output should remain, stat err = %v", err)
	}

	records, err := e.store.Recent(context.Background(), history.Filter{Status: history.StatusFailure})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ExitCode != 1 || !strings.Contains(records[0].ErrorDetail, "encoder failed") {
		t.Errorf("failure history = %+v", records)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestRunWatchesDirectory(t *testing.T) {
	e := newEndToEnd(t, `dd if=/dev/zero of="$out" bs=1 count=0 seek=262144 2>/dev/null
exit 0
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.orch.Run(ctx) }()

	if !waitFor(t, 5*time.Second, func() bool { return e.orch.State() == StateWatching }) {
		cancel()
		t.Fatalf("agent never reached watching, state = %s", e.orch.State())
	}

	writeSparse(t, filepath.Join(e.dir, "clip_compressed.mov"+".tmp"), 10)
	writeSparse(t, filepath.Join(e.dir, "notes.txt"), 10)
	writeSparse(t, filepath.Join(e.dir, "clip.mov"), 1024*1024)

	if !waitFor(t, 10*time.Second, func() bool {
		_, ok := e.notifier.find("Compressed clip.mov")
		return ok
	}) {
		cancel()
		t.Fatalf("clip.mov was never compressed: %q", e.notifier.all())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if e.orch.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", e.orch.State())
	}

	msgs := e.notifier.all()
	if !strings.Contains(msgs[0], "Now watching "+e.dir+" for videos") {
		t.Errorf("first notification = %q", msgs[0])
	}
	if !strings.HasSuffix(msgs[len(msgs)-1], "Stopped watching") {
		t.Errorf("last notification = %q", msgs[len(msgs)-1])
	}
	if n := strings.Count(strings.Join(msgs, "\n"), "Starting compression"); n != 1 {
		t.Errorf("started %d compressions, want 1: %q", n, msgs)
	}
}

func TestRunIgnoresWritesToExistingFiles(t *testing.T) {
	e := newEndToEnd(t, `dd if=/dev/zero of="$out" bs=1 count=0 seek=262144 2>/dev/null
exit 0
`)
	existing := filepath.Join(e.dir, "holiday.mov")
	writeSparse(t, existing, 1024*1024)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if !waitFor(t, 5*time.Second, func() bool { return e.orch.State() == StateWatching }) {
		t.Fatalf("agent never reached watching, state = %s", e.orch.State())
	}

	f, err := os.OpenFile(existing, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("appended")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	// A new file queued behind the write shows the loop has handled it.
	writeSparse(t, filepath.Join(e.dir, "new.mov"), 1024*1024)
	if !waitFor(t, 10*time.Second, func() bool {
		_, ok := e.notifier.find("Compressed new.mov")
		return ok
	}) {
		t.Fatalf("new.mov was never compressed: %q", e.notifier.all())
	}
	e.orch.Wait()

	if _, err := os.Stat(existing); err != nil {
		t.Errorf("existing file should stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "holiday_compressed.mov")); !os.IsNotExist(err) {
		t.Errorf("existing file should not be compressed, stat err = %v", err)
	}
	if msg, ok := e.notifier.find("holiday.mov"); ok {
		t.Errorf("unexpected notification for existing file: %q", msg)
	}
}
