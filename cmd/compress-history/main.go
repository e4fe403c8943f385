package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/startup"
	"desktop-video-compress/internal/transcoder"

	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Width used when stdout is not a terminal
	defaultWidth = 120
	// Columns other than the path take roughly this much room
	fixedColumns = 70
	minPathWidth = 20
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	switch command {
	case "list", "stats", "prune":
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stderr)
		os.Exit(1)
	}

	dbPath := os.Getenv("HISTORY_DB")
	if dbPath == "" {
		dbPath = startup.DefaultHistoryPath()
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no history ledger at %s: %v\n", dbPath, err)
		fmt.Fprintln(os.Stderr, "Set HISTORY_DB if the agent uses a different location.")
		os.Exit(1)
	}

	store, err := history.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history ledger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close history ledger: %v\n", err)
		}
	}()

	ctx, timeoutCancel := context.WithTimeout(ctx, defaultTimeout)
	defer timeoutCancel()

	args := os.Args[2:]
	switch command {
	case "list":
		err = runList(ctx, os.Stdout, store, args, terminalWidth())
	case "stats":
		err = runStats(ctx, os.Stdout, store)
	case "prune":
		var confirm io.Reader
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm = os.Stdin
		}
		err = runPrune(ctx, os.Stdout, confirm, store, args, time.Now())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sanitizeCommand returns cmd with everything outside [a-zA-Z0-9_-]
// replaced by '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Desktop Video Compress history")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: compress-history <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list    - Show recent jobs (-status success|failure, -limit N)")
	fmt.Fprintln(w, "  stats   - Show totals and bytes saved")
	fmt.Fprintln(w, "  prune   - Delete jobs older than -days N (default 90)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  HISTORY_DB - Path to the history ledger (default: %s)\n", startup.DefaultHistoryPath())
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

func runList(ctx context.Context, w io.Writer, store *history.Store, args []string, width int) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(w)
	status := fs.String("status", "", "only show success or failure")
	limit := fs.Int("limit", 20, "number of jobs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := store.Recent(ctx, history.Filter{Status: *status, Limit: *limit})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No jobs recorded.")
		return nil
	}

	pathWidth := width - fixedColumns
	if pathWidth < minPathWidth {
		pathWidth = minPathWidth
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tRESULT\tORIGINAL\tCOMPRESSED\tSAVED\tFILE")
	for _, rec := range records {
		result, saved := "ok", transcoder.FormatPercent(rec.SavingsPercent)
		compressed := transcoder.FormatMB(rec.CompressedSize)
		if !rec.Success {
			result, saved, compressed = "failed", "-", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.FinishedAt.Local().Format("2006-01-02 15:04"),
			result,
			transcoder.FormatMB(rec.OriginalSize),
			compressed,
			saved,
			truncateLeft(rec.InputPath, pathWidth))
	}
	return tw.Flush()
}

func runStats(ctx context.Context, w io.Writer, store *history.Store) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Jobs:       %d (%d succeeded, %d failed)\n", stats.Total, stats.Succeeded, stats.Failed)
	fmt.Fprintf(w, "Original:   %s\n", transcoder.FormatMB(stats.OriginalBytes))
	fmt.Fprintf(w, "Compressed: %s\n", transcoder.FormatMB(stats.CompressedBytes))
	fmt.Fprintf(w, "Saved:      %s (%s)\n",
		transcoder.FormatMB(stats.BytesSaved()),
		transcoder.FormatPercent(transcoder.Savings(stats.OriginalBytes, stats.CompressedBytes)))
	return nil
}

// runPrune deletes records older than -days. When confirm is non-nil the
// user must answer "y" first.
func runPrune(ctx context.Context, w io.Writer, confirm io.Reader, store *history.Store, args []string, now time.Time) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(w)
	days := fs.Int("days", 90, "delete jobs finished more than this many days ago")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 0 {
		return fmt.Errorf("-days must not be negative, got %d", *days)
	}

	cutoff := now.AddDate(0, 0, -*days)

	if confirm != nil {
		fmt.Fprintf(w, "Delete jobs finished before %s? [y/N] ", cutoff.Local().Format("2006-01-02 15:04"))
		answer, _ := bufio.NewReader(confirm).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted %d job(s).\n", n)
	return nil
}

// truncateLeft keeps the end of s, which holds the file name.
func truncateLeft(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[len(r)-limit:])
	}
	return "..." + string(r[len(r)-limit+3:])
}
