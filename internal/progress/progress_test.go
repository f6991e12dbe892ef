package progress

import (
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan float64) []float64 {
	t.Helper()
	var got []float64
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, v)
		case <-timeout:
			t.Fatal("Timed out waiting for the progress channel to close")
		}
	}
}

func TestTrack(t *testing.T) {
	stream := strings.Join([]string{
		"frame=0",
		"out_time_us=N/A",
		"out_time_us=0",
		"out_time=00:00:00.000000",
		"progress=continue",
		"out_time_us=2500000",
		"bitrate=1200.0kbits/s",
		"out_time_us=5000000",
		"out_time_us=12000000",
		"progress=end",
	}, "\n")

	got := collect(t, Track(strings.NewReader(stream), 10))

	want := []float64{0, 25, 50, 100}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestTrack_EmptyStream(t *testing.T) {
	if got := collect(t, Track(strings.NewReader(""), 10)); len(got) != 0 {
		t.Errorf("Expected no values, got %v", got)
	}
}

func TestTrack_SlowConsumerDoesNotBlockReader(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= 1000; i++ {
		b.WriteString("out_time_us=" + strconv.Itoa(i*10000) + "\n")
	}

	r := &eofReader{r: strings.NewReader(b.String())}
	ch := Track(r, 10)

	// Nothing reads the channel until the whole stream has been consumed.
	deadline := time.Now().Add(5 * time.Second)
	for !r.reachedEOF.Load() {
		if time.Now().After(deadline) {
			t.Fatal("Reader stalled behind an unread channel")
		}
		time.Sleep(time.Millisecond)
	}

	got := collect(t, ch)
	if len(got) == 0 || len(got) > queueSize {
		t.Fatalf("Expected between 1 and %d queued values, got %d", queueSize, len(got))
	}
	if last := got[len(got)-1]; last != 100 {
		t.Errorf("Expected the newest value to survive, got %v", last)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		line   string
		total  float64
		want   float64
		wantOK bool
	}{
		{"out_time_us=1000000", 4, 25, true},
		{"  out_time_us=4000000 ", 4, 100, true},
		{"out_time_us=-50000", 4, 0, true},
		{"out_time_us=N/A", 4, 0, false},
		{"out_time_ms=1000000", 4, 0, false},
		{"out_time_us=1000000", 0, 0, false},
		{"", 4, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := Parse(tt.line, tt.total)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Parse(%q, %v) = (%v, %v), want (%v, %v)", tt.line, tt.total, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	for in, want := range map[float64]float64{-3: 0, 0: 0, 42.5: 42.5, 100: 100, 250: 100} {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
}

type eofReader struct {
	r          io.Reader
	reachedEOF atomic.Bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.reachedEOF.Store(true)
	}
	return n, err
}
