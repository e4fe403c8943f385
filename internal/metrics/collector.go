package metrics

import (
	"time"

	"desktop-video-compress/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current pipeline statistics
type Stats struct {
	ActivePipelines int
	ActiveJobs      int
	SlotsInUse      int
	SlotsTotal      int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
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
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	PipelinesActive.Set(float64(stats.ActivePipelines))
	TranscoderJobsInProgress.Set(float64(stats.ActiveJobs))
	TranscodeSlotsInUse.Set(float64(stats.SlotsInUse))
	TranscodeSlotsTotal.Set(float64(stats.SlotsTotal))

	logging.Debug("Metrics collected: pipelines=%d, jobs=%d, slots=%d/%d",
		stats.ActivePipelines, stats.ActiveJobs, stats.SlotsInUse, stats.SlotsTotal)
}
