package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/metrics"
	"desktop-video-compress/internal/transcoder"
)

// Default timeout for ledger operations
const defaultTimeout = 5 * time.Second

// Disposal outcomes stored with each record.
const (
	DisposalTrashed          = "trashed"
	DisposalPermissionDenied = "permission_denied"
	DisposalError            = "error"
	DisposalUnsupported      = "unsupported"
	DisposalNone             = "none"
)

// Status filters for Recent.
const (
	StatusAll     = ""
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Record is a finished compression as stored in the ledger.
type Record struct {
	ID             int64     `json:"id"`
	InputPath      string    `json:"inputPath"`
	OutputPath     string    `json:"outputPath"`
	Preset         string    `json:"preset"`
	Success        bool      `json:"success"`
	OriginalSize   int64     `json:"originalSize"`
	CompressedSize int64     `json:"compressedSize"`
	SavingsPercent float64   `json:"savingsPercent"`
	ExitCode       int       `json:"exitCode"`
	ElapsedMs      int64     `json:"elapsedMs"`
	Reason         string    `json:"reason,omitempty"`
	ErrorDetail    string    `json:"errorDetail,omitempty"`
	Disposal       string    `json:"disposal"`
	TrashPath      string    `json:"trashPath,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// FromResult converts a transcoder result and its disposal outcome into a Record.
func FromResult(res transcoder.Result, disposal, trashPath string) Record {
	if disposal == "" {
		disposal = DisposalNone
	}
	return Record{
		InputPath:      res.Job.InputPath,
		OutputPath:     res.Job.OutputPath,
		Preset:         res.Job.Preset,
		Success:        res.Success,
		OriginalSize:   res.OriginalSize,
		CompressedSize: res.CompressedSize,
		SavingsPercent: res.Savings(),
		ExitCode:       res.ExitCode,
		ElapsedMs:      res.Elapsed.Milliseconds(),
		Reason:         res.Reason,
		ErrorDetail:    res.ErrorDetail,
		Disposal:       disposal,
		TrashPath:      trashPath,
		StartedAt:      res.Job.StartedAt,
		FinishedAt:     res.Job.StartedAt.Add(res.Elapsed),
	}
}

// Filter selects records for Recent.
type Filter struct {
	Status string
	Limit  int
}

// Stats summarizes the ledger.
type Stats struct {
	Total           int   `json:"total"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OriginalBytes   int64 `json:"originalBytes"`
	CompressedBytes int64 `json:"compressedBytes"`
}

// BytesSaved returns the total bytes saved by successful compressions.
func (s Stats) BytesSaved() int64 {
	return s.OriginalBytes - s.CompressedBytes
}

// Store is the SQLite-backed job ledger. It is a record of what happened,
// not a queue: nothing is ever resumed from it.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// New opens (creating if needed) the ledger at path. The parent directory
// must already exist.
func New(ctx context.Context, path string) (*Store, error) {
	logging.Debug("History path: %s", path)

	// busy_timeout lets the CLI read while the agent is writing
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := &Store{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		preset TEXT NOT NULL,
		success INTEGER NOT NULL,
		original_size INTEGER NOT NULL DEFAULT 0,
		compressed_size INTEGER NOT NULL DEFAULT 0,
		savings_percent REAL NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		error_detail TEXT NOT NULL DEFAULT '',
		disposal TEXT NOT NULL DEFAULT 'none',
		trash_path TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_finished_at ON jobs(finished_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_success ON jobs(success);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts rec and sets its ID.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			input_path, output_path, preset, success, original_size, compressed_size,
			savings_percent, exit_code, elapsed_ms, reason, error_detail, disposal,
			trash_path, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InputPath, rec.OutputPath, rec.Preset, boolToInt(rec.Success),
		rec.OriginalSize, rec.CompressedSize, rec.SavingsPercent, rec.ExitCode,
		rec.ElapsedMs, rec.Reason, rec.ErrorDetail, rec.Disposal, rec.TrashPath,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		err = fmt.Errorf("failed to insert history record: %w", err)
		return err
	}

	rec.ID, err = res.LastInsertId()
	return err
}

// Recent returns records matching filter, newest first. A zero limit
// returns at most 50 records.
func (s *Store) Recent(ctx context.Context, filter Filter) ([]Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("recent", start, err) }()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, input_path, output_path, preset, success, original_size, compressed_size,
			savings_percent, exit_code, elapsed_ms, reason, error_detail, disposal,
			trash_path, started_at, finished_at
		FROM jobs`
	var args []interface{}

	switch filter.Status {
	case StatusAll:
	case StatusSuccess:
		query += " WHERE success = 1"
	case StatusFailure:
		query += " WHERE success = 0"
	default:
		err = fmt.Errorf("unknown status filter %q", filter.Status)
		return nil, err
	}
	query += " ORDER BY finished_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("error closing rows: %v", closeErr)
		}
	}()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec               Record
			success           int
			started, finished int64
		)
		if err = rows.Scan(
			&rec.ID, &rec.InputPath, &rec.OutputPath, &rec.Preset, &success,
			&rec.OriginalSize, &rec.CompressedSize, &rec.SavingsPercent, &rec.ExitCode,
			&rec.ElapsedMs, &rec.Reason, &rec.ErrorDetail, &rec.Disposal, &rec.TrashPath,
			&started, &finished,
		); err != nil {
			return nil, err
		}
		rec.Success = success == 1
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// Stats returns totals across the whole ledger. Byte totals only count
// successful jobs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats Stats
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(CASE WHEN success = 1 THEN original_size ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 1 THEN compressed_size ELSE 0 END), 0)
		FROM jobs`,
	).Scan(&stats.Total, &stats.Succeeded, &stats.OriginalBytes, &stats.CompressedBytes)
	if err != nil {
		return Stats{}, err
	}
	stats.Failed = stats.Total - stats.Succeeded
	return stats, nil
}

// Prune deletes records that finished before cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = s.db.ExecContext(ctx, "DELETE FROM jobs WHERE finished_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// recordQuery records ledger query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.HistoryQueriesTotal.WithLabelValues(operation, status).Inc()
	metrics.HistoryQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
