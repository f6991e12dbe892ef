// Package capability detects which hardware encoders the local ffmpeg build
// offers. Each capability is probed lazily on first use and remembered for the
// life of the process; a changed driver or GPU is not noticed until restart.
package capability

import (
	"context"
	"sort"
	"sync"

	"media-converter/internal/logging"
)

// Kind identifies a capability that can be probed independently.
type Kind string

const (
	// HardwareH264 is NVENC H.264 encoding.
	HardwareH264 Kind = "hw_h264"
	// HardwareHEVC is NVENC H.265/HEVC encoding.
	HardwareHEVC Kind = "hw_hevc"
)

// Encoder returns the ffmpeg encoder name whose presence signals the capability.
func (k Kind) Encoder() string {
	switch k {
	case HardwareH264:
		return "h264_nvenc"
	case HardwareHEVC:
		return "hevc_nvenc"
	default:
		return ""
	}
}

// ProbeFunc reports whether the named encoder is usable. Implementations
// should return false when the encoder binary cannot be run at all.
type ProbeFunc func(ctx context.Context, encoder string) bool

type entry struct {
	once      sync.Once
	ready     chan struct{}
	available bool
}

// Cache memoizes probe results per Kind. The zero value is not usable; call New.
type Cache struct {
	probe ProbeFunc

	mu      sync.Mutex
	entries map[Kind]*entry
}

// New creates a Cache backed by probe.
func New(probe ProbeFunc) *Cache {
	return &Cache{
		probe:   probe,
		entries: make(map[Kind]*entry),
	}
}

// Available reports whether kind is supported, probing on first call.
// Concurrent first calls for the same kind share a single probe.
func (c *Cache) Available(ctx context.Context, kind Kind) bool {
	c.mu.Lock()
	e, ok := c.entries[kind]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		c.entries[kind] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		defer close(e.ready)
		encoder := kind.Encoder()
		if encoder == "" || c.probe == nil {
			return
		}
		// A cancelled job must not pin the capability to false.
		e.available = c.probe(context.WithoutCancel(ctx), encoder)
		logging.Info("Capability %s (%s): available=%v", kind, encoder, e.available)
	})
	return e.available
}

// Status is a probed capability, as reported by Snapshot.
type Status struct {
	Kind      Kind   `json:"kind"`
	Encoder   string `json:"encoder"`
	Available bool   `json:"available"`
}

// Snapshot returns the capabilities probed so far, sorted by kind. Kinds that
// have never been queried are omitted rather than probed.
func (c *Cache) Snapshot() []Status {
	c.mu.Lock()
	kinds := make([]Kind, 0, len(c.entries))
	for k := range c.entries {
		kinds = append(kinds, k)
	}
	c.mu.Unlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	out := make([]Status, 0, len(kinds))
	for _, k := range kinds {
		c.mu.Lock()
		e := c.entries[k]
		c.mu.Unlock()
		// Every entry is created by Available, which always runs its probe.
		<-e.ready
		out = append(out, Status{Kind: k, Encoder: k.Encoder(), Available: e.available})
	}
	return out
}

// Kinds lists every known capability kind.
func Kinds() []Kind {
	return []Kind{HardwareH264, HardwareHEVC}
}
