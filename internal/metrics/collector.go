package metrics

import (
	"sync"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// DBMetricsUpdater is implemented by providers that can also report the size
// of their backing storage.
type DBMetricsUpdater interface {
	UpdateDBMetrics()
}

// CapabilitySource reports the hardware capabilities probed so far.
type CapabilitySource interface {
	Snapshot() []capability.Status
}

// Stats holds the current job history counts
type Stats struct {
	Queued    int
	Running   int
	Succeeded int
	Failed    int
}

// Total returns the number of stored jobs.
func (s Stats) Total() int {
	return s.Queued + s.Running + s.Succeeded + s.Failed
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	capabilities  CapabilitySource
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector. Either source may be nil.
func NewCollector(provider StatsProvider, caps CapabilitySource, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		capabilities:  caps,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.capabilities != nil {
		RecordCapabilities(c.capabilities.Snapshot())
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	JobsStored.WithLabelValues("queued").Set(float64(stats.Queued))
	JobsStored.WithLabelValues("running").Set(float64(stats.Running))
	JobsStored.WithLabelValues("succeeded").Set(float64(stats.Succeeded))
	JobsStored.WithLabelValues("failed").Set(float64(stats.Failed))

	if u, ok := c.statsProvider.(DBMetricsUpdater); ok {
		u.UpdateDBMetrics()
	}

	logging.Debug("Metrics collected: jobs=%d (queued=%d, running=%d, succeeded=%d, failed=%d)",
		stats.Total(), stats.Queued, stats.Running, stats.Succeeded, stats.Failed)
}
