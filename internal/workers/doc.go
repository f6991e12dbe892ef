/*
Package workers sizes the conversion job pool.

Each conversion runs one ffmpeg process at a time, and a software encode
will happily use every core it can see, so the default pool is one job per
available CPU with a small cap. GOMAXPROCS is used rather than
runtime.NumCPU so container CPU limits are respected (Go 1.19+):

	// Wrong: Returns 64 (host CPUs), ignores container limit
	workers := runtime.NumCPU()

	// Correct: Returns 2 (respects container limit in Go 1.19+)
	workers := runtime.GOMAXPROCS(0)

# Environment Variable Override

MAX_CONCURRENT_JOBS pins the pool size and is not capped. Hardware (NVENC)
encodes barely touch the CPU, so a GPU host usually wants a higher value
than the CPU count suggests:

	env:
	- name: MAX_CONCURRENT_JOBS
	  value: "6"

# Usage

	jobs := workers.ForCPU(4) // at most 4 unless overridden
*/
package workers
