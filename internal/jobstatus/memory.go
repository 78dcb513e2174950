package jobstatus

import (
	"context"
	"sync"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

type memoryRecord struct {
	rec     Record
	expires time.Time
}

// MemoryTracker is an in-process Tracker.
type MemoryTracker struct {
	mu       sync.RWMutex
	records  map[string]memoryRecord
	ttl      time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryTracker creates a MemoryTracker whose records expire ttl after
// their last update. A background sweep removes expired records.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &MemoryTracker{
		records:  make(map[string]memoryRecord),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go m.sweepLoop(min(ttl, 10*time.Minute))
	return m
}

// Set stores rec, keeping CreatedAt from the first write.
func (m *MemoryTracker) Set(_ context.Context, rec Record) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.records[rec.ID]; ok && !prev.rec.CreatedAt.IsZero() {
		rec.CreatedAt = prev.rec.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[rec.ID] = memoryRecord{rec: rec, expires: now.Add(m.ttl)}

	metrics.JobStatusWritesTotal.WithLabelValues("memory", "success").Inc()
	return nil
}

// Get returns the record for id.
func (m *MemoryTracker) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok || m.now().After(r.expires) {
		return Record{}, ErrNotFound
	}
	return r.rec, nil
}

// Len returns the number of stored records, expired or not.
func (m *MemoryTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryTracker) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				logging.Debug("Job status: expired %d records", n)
			}
		case <-m.stopChan:
			return
		}
	}
}

func (m *MemoryTracker) sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.records {
		if now.After(r.expires) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}

// Close stops the background sweep.
func (m *MemoryTracker) Close() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	return nil
}
