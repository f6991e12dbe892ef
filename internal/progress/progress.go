// Package progress turns ffmpeg's machine-readable progress stream
// (-progress pipe:1) into completion percentages.
package progress

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	timeKey = "out_time_us="

	// Values queued for a slow consumer before the oldest is dropped.
	queueSize = 16
)

// Track reads ffmpeg progress lines from r until EOF and yields the completion
// percentage, clamped to [0, 100], for every out_time_us entry. total is the
// duration in seconds the encoder is expected to produce. The channel is
// closed once r is exhausted.
//
// Reading never waits on the consumer: when the queue is full the oldest
// value is discarded, so ffmpeg is never stalled on a full stdout pipe.
func Track(r io.Reader, total float64) <-chan float64 {
	ch := make(chan float64, queueSize)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
		for scanner.Scan() {
			pct, ok := Parse(scanner.Text(), total)
			if !ok {
				continue
			}
			send(ch, pct)
		}
		// A read error ends the stream early; the process exit status is
		// what decides success.
	}()

	return ch
}

// send delivers v without blocking. Track is the only sender, so after one
// value is dropped there is always room.
func send(ch chan float64, v float64) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Parse extracts the percentage from one progress line. ok is false for lines
// that carry no usable out_time_us value.
func Parse(line string, total float64) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, timeKey) || total <= 0 {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimPrefix(line, timeKey), 10, 64)
	if err != nil {
		// ffmpeg prints N/A before the first frame
		return 0, false
	}
	return Clamp(float64(us) / 1e6 / total * 100), true
}

// Clamp bounds a percentage to [0, 100].
func Clamp(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
