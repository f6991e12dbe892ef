package workers

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// OverrideEnv names the environment variable that pins the number of
// concurrent conversion jobs.
const OverrideEnv = "MAX_CONCURRENT_JOBS"

// Override returns the job count set through OverrideEnv. ok is false when
// the variable is unset, zero, negative or not a number.
func Override() (n int, ok bool) {
	raw := strings.TrimSpace(os.Getenv(OverrideEnv))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Count returns the number of workers for a task that uses multiplier CPUs
// per worker slot. It respects container CPU limits via GOMAXPROCS.
//
// limit caps the computed count; use 0 for no limit. An explicit override
// through OverrideEnv is returned as is, since an operator who sets it knows
// what the host (or its GPU) can take.
func Count(multiplier float64, limit int) int {
	if n, ok := Override(); ok {
		return n
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns the worker count for CPU-bound tasks such as software
// encodes (1 per CPU). The limit parameter caps the maximum number of workers.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
