package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-converter/internal/startup"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	databaseFile       = "jobs.db"
)

func main() {
	// Keep converter chatter out of the progress bar unless asked for.
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "convert":
		return runConvert(ctx, args[1:], stdout, stderr)
	case "probe":
		return runProbe(ctx, args[1:], stdout, stderr)
	case "hash-token":
		return runHashToken(args[1:], stdin, stdout, stderr)
	case "jobs":
		return runJobs(ctx, args[1:], stdout, stderr)
	case "version":
		info := startup.GetBuildInfo()
		fmt.Fprintf(stdout, "convertctl %s (commit %s, %s)\n", info.Version, info.Commit, info.GoVersion)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(args[0])
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand
		printUsage(stderr)
		return 1
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
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
	fmt.Fprintln(w, "Media Converter Control")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: convertctl <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert     - Convert a file locally: convert -kind mp4 -target 8MiB <input>")
	fmt.Fprintln(w, "  probe       - Print media metadata as JSON: probe <path>")
	fmt.Fprintln(w, "  hash-token  - Hash an API token for API_TOKEN_HASH")
	fmt.Fprintln(w, "  jobs        - List recent jobs from the server's history database")
	fmt.Fprintln(w, "  version     - Print version information")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  FFMPEG_PATH, FFPROBE_PATH - Encoder binaries (default: from PATH)")
	fmt.Fprintln(w, "  WORK_DIR, OUTPUT_DIR      - Scratch and output directories")
	fmt.Fprintf(w, "  DATABASE_DIR              - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

// databasePath returns the job history path the API server uses.
func databasePath() string {
	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	return filepath.Join(databaseDir, databaseFile)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
