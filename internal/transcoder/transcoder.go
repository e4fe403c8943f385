package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"desktop-video-compress/internal/filesystem"
	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/mediatypes"
)

// ErrOutputExists means the compressed output for an input is already on disk.
var ErrOutputExists = errors.New("compressed output already exists")

// stderrTailBytes bounds the diagnostic text kept from a failed run.
const stderrTailBytes = 4096

// Job is one invocation of HandBrakeCLI.
type Job struct {
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath"`
	Preset     string    `json:"preset"`
	StartedAt  time.Time `json:"startedAt"`
}

// Result is the outcome of a Job.
type Result struct {
	Job            Job
	Success        bool
	OriginalSize   int64
	CompressedSize int64
	ExitCode       int
	Elapsed        time.Duration
	// Reason is a short, user-facing failure cause.
	Reason string
	// ErrorDetail holds the tail of the tool's diagnostic output.
	ErrorDetail string
}

// Savings returns the percentage saved by the job.
func (r Result) Savings() float64 {
	return Savings(r.OriginalSize, r.CompressedSize)
}

// Transcoder runs HandBrakeCLI with a fixed preset.
type Transcoder struct {
	binary    string
	preset    Preset
	container string
	retry     filesystem.RetryConfig

	jobs  map[string]Job
	jobMu sync.Mutex
}

// New creates a Transcoder for the resolved binary. container, when set,
// overrides the output extension.
func New(binary string, preset Preset, container string) *Transcoder {
	return &Transcoder{
		binary:    binary,
		preset:    preset,
		container: container,
		retry:     filesystem.DefaultRetryConfig(),
		jobs:      make(map[string]Job),
	}
}

// Binary returns the resolved executable path.
func (t *Transcoder) Binary() string {
	return t.binary
}

// Preset returns the configured preset.
func (t *Transcoder) Preset() Preset {
	return t.preset
}

// Version returns the first line of "HandBrakeCLI --version".
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get HandBrakeCLI version: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}

// NewJob builds the job for input. It returns ErrOutputExists when the
// output file is already present.
func (t *Transcoder) NewJob(input string) (Job, error) {
	output := mediatypes.CompressedPath(input, t.container)
	if _, err := os.Stat(output); err == nil {
		return Job{}, fmt.Errorf("%w: %s", ErrOutputExists, output)
	}

	return Job{
		InputPath:  input,
		OutputPath: output,
		Preset:     t.preset.Name,
	}, nil
}

// Args returns the full HandBrakeCLI argument list for job.
func (t *Transcoder) Args(job Job) []string {
	args := []string{"-i", job.InputPath, "-o", job.OutputPath}
	return append(args, t.preset.Args...)
}

// Run executes job synchronously. Cancelling ctx does not stop the tool;
// the invocation always runs to completion.
func (t *Transcoder) Run(ctx context.Context, job Job) Result {
	job.StartedAt = time.Now()

	t.jobMu.Lock()
	t.jobs[job.InputPath] = job
	t.jobMu.Unlock()

	defer func() {
		t.jobMu.Lock()
		delete(t.jobs, job.InputPath)
		t.jobMu.Unlock()
	}()

	cmd := exec.CommandContext(context.WithoutCancel(ctx), t.binary, t.Args(job)...)
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr

	logging.Debug("Running: %s %s", t.binary, strings.Join(t.Args(job), " "))
	runErr := cmd.Run()

	result := Result{
		Job:      job,
		Elapsed:  time.Since(job.StartedAt),
		ExitCode: exitCode(cmd, runErr),
	}
	if info, err := os.Stat(job.InputPath); err == nil {
		result.OriginalSize = info.Size()
	}

	switch {
	case runErr != nil:
		result.Reason = describeRunError(runErr, result.ExitCode)
	default:
		info, err := os.Stat(job.OutputPath)
		switch {
		case err != nil:
			result.Reason = "no output file produced"
		case info.Size() == 0:
			result.Reason = "output file is empty"
		default:
			result.Success = true
			result.CompressedSize = info.Size()
		}
	}

	if !result.Success {
		result.ErrorDetail = stderr.String()
		if err := filesystem.RemoveWithRetry(job.OutputPath, t.retry); err != nil {
			logging.Warn("Failed to remove partial output %s: %v", job.OutputPath, err)
		}
	}

	return result
}

// Active returns the jobs currently running, oldest first.
func (t *Transcoder) Active() []Job {
	t.jobMu.Lock()
	jobs := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	t.jobMu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func describeRunError(err error, code int) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("HandBrakeCLI exited with status %d", code)
	}
	return fmt.Sprintf("failed to run HandBrakeCLI: %v", err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
