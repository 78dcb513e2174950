package metrics

import (
	"context"
	"sync"
	"time"

	"clipstream/internal/logging"
)

const collectTimeout = 5 * time.Second

// StatsProvider reports catalog totals. Both catalog backends implement it.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats is a point-in-time view of the catalog.
type Stats struct {
	PublicVideos int
	HiddenVideos int
	OpenConns    int
}

// Collector refreshes the catalog gauges, which cannot be maintained
// incrementally because catalogctl edits the catalog out of process.
type Collector struct {
	provider StatsProvider
	driver   string
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCollector creates a Collector for the catalog behind provider.
func NewCollector(provider StatsProvider, driver string, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		driver:   driver,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start collects once immediately and then every interval.
func (c *Collector) Start() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			c.collect()
			select {
			case <-ticker.C:
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends collection and waits for an in-progress collection. It must
// only be called after Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// collect keeps the previous values when the catalog cannot be read.
func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.provider.GetStats(ctx)
	if err != nil {
		logging.Warn("Catalog metrics not refreshed: %v", err)
		return
	}

	CatalogVideosTotal.WithLabelValues("public").Set(float64(stats.PublicVideos))
	CatalogVideosTotal.WithLabelValues("hidden").Set(float64(stats.HiddenVideos))
	DBConnectionsOpen.WithLabelValues(c.driver).Set(float64(stats.OpenConns))

	logging.Debug("Catalog metrics: public=%d hidden=%d conns=%d",
		stats.PublicVideos, stats.HiddenVideos, stats.OpenConns)
}
