package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// Config holds the watermarks of a Monitor.
type Config struct {
	// LimitBytes overrides the runtime soft limit. Zero uses GOMEMLIMIT.
	LimitBytes int64
	// HighWaterMark is the usage ratio below which a paused monitor resumes.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which the monitor pauses.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the watermarks used by the server.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and reports when new work should be refused.
// A paused monitor resumes only after usage drops below the high watermark,
// so it does not flap around a single threshold.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu        sync.RWMutex
	current   uint64
	paused    bool
	resumed   chan struct{}
	stopOnce  sync.Once
	stopChan  chan struct{}
	startOnce sync.Once
}

// NewMonitor creates a Monitor. Without a memory limit it never pauses.
func NewMonitor(config Config) *Monitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Info("Memory monitor: no memory limit configured, backpressure disabled")
	} else {
		logging.Info("Memory monitor: limit %s, pause at %.0f%%, resume below %.0f%%",
			formatBytes(limit), config.CriticalWaterMark*100, config.HighWaterMark*100)
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		sample:   heapAlloc,
		resumed:  make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start samples usage every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	m.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.config.CheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.check()
				case <-m.stopChan:
					return
				}
			}
		}()
	})
}

// Stop ends sampling and releases WaitIfPaused callers.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) check() {
	current := m.sample()
	usage := float64(current) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = current

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), refusing new uploads", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.HighWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), accepting uploads", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// IsPaused reports whether usage is above the critical watermark.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// WaitIfPaused blocks while the monitor is paused. It returns false if ctx
// ends or the monitor is stopped first.
func (m *Monitor) WaitIfPaused(ctx context.Context) bool {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return true
	}
	resumed := m.resumed
	m.mu.RUnlock()

	select {
	case <-resumed:
		return true
	case <-m.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// Usage returns the last sampled heap usage as a ratio of the limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
