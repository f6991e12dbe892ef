package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"media-converter/internal/database"
)

func runJobs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "number of jobs to show")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbPath := databasePath()
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(stderr, "Error: no job history at %s: %v\n", dbPath, err)
		fmt.Fprintln(stderr, "Make sure DATABASE_DIR points at the server's database directory")
		return 1
	}

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to connect to database: %v\n", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	if !listJobs(ctx, db, *limit, stdout, stderr) {
		return 1
	}
	return 0
}

// listJobs prints the most recent jobs as a table.
func listJobs(ctx context.Context, db *database.Database, limit int, stdout, stderr io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	jobs, err := db.ListJobs(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to list jobs: %v\n", err)
		return false
	}
	if len(jobs) == 0 {
		fmt.Fprintln(stdout, "No jobs recorded")
		return true
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATE\tPROGRESS\tCREATED\tDETAIL")
	for i := range jobs {
		j := &jobs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			j.ID, j.Request.Kind, j.State, j.Progress,
			j.CreatedAt.Local().Format(time.DateTime), jobDetail(j))
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return false
	}
	return true
}

func jobDetail(j *database.Job) string {
	switch j.State {
	case database.JobSucceeded:
		return fmt.Sprintf("%s (%s, %s)", j.OutputPath, formatSize(j.OutputSize), j.Strategy)
	case database.JobFailed:
		if j.Reason != "" {
			return fmt.Sprintf("%s: %s", j.Reason, j.Error)
		}
		return j.Error
	default:
		return string(j.Status)
	}
}
