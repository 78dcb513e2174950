package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"clipstream/internal/metrics"
)

func newTestMonitor(t *testing.T, usage *atomic.Uint64) *Monitor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LimitBytes = 1000
	m := NewMonitor(cfg)
	m.sample = usage.Load
	t.Cleanup(m.Stop)
	return m
}

func TestMonitorWatermarks(t *testing.T) {
	var usage atomic.Uint64
	m := newTestMonitor(t, &usage)
	metrics.MemoryPaused.Set(0)

	steps := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false},
		{849, false},
		{850, true},
		{750, true}, // between the watermarks: stays paused
		{699, false},
		{800, false}, // between the watermarks: stays running
		{900, true},
	}

	for _, s := range steps {
		usage.Store(s.alloc)
		m.check()
		if got := m.IsPaused(); got != s.wantPaused {
			t.Fatalf("alloc %d: IsPaused() = %v, want %v", s.alloc, got, s.wantPaused)
		}
		if got := testutil.ToFloat64(metrics.MemoryPaused); (got == 1) != s.wantPaused {
			t.Errorf("alloc %d: memory_paused = %v", s.alloc, got)
		}
		if got, want := m.Usage(), float64(s.alloc)/1000; got != want {
			t.Errorf("alloc %d: Usage() = %v, want %v", s.alloc, got, want)
		}
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	m := &Monitor{config: DefaultConfig(), stopChan: make(chan struct{}), resumed: make(chan struct{})}
	m.Start()
	defer m.Stop()

	if m.IsPaused() {
		t.Error("monitor without a limit is paused")
	}
	if m.Usage() != 0 {
		t.Errorf("Usage() = %v, want 0", m.Usage())
	}
	if !m.WaitIfPaused(context.Background()) {
		t.Error("WaitIfPaused() = false, want true")
	}
}

func TestWaitIfPaused(t *testing.T) {
	tests := []struct {
		name    string
		release func(m *Monitor, usage *atomic.Uint64, cancel context.CancelFunc)
		want    bool
	}{
		{
			name: "resumes",
			release: func(m *Monitor, usage *atomic.Uint64, _ context.CancelFunc) {
				usage.Store(100)
				m.check()
			},
			want: true,
		},
		{
			name: "context canceled",
			release: func(_ *Monitor, _ *atomic.Uint64, cancel context.CancelFunc) {
				cancel()
			},
			want: false,
		},
		{
			name: "monitor stopped",
			release: func(m *Monitor, _ *atomic.Uint64, _ context.CancelFunc) {
				m.Stop()
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var usage atomic.Uint64
			m := newTestMonitor(t, &usage)
			usage.Store(950)
			m.check()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			result := make(chan bool, 1)
			go func() { result <- m.WaitIfPaused(ctx) }()

			select {
			case <-result:
				t.Fatal("WaitIfPaused returned while paused")
			case <-time.After(20 * time.Millisecond):
			}

			tt.release(m, &usage, cancel)

			select {
			case got := <-result:
				if got != tt.want {
					t.Errorf("WaitIfPaused() = %v, want %v", got, tt.want)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("WaitIfPaused did not return")
			}
		})
	}
}

func TestNewMonitorDefaultsInterval(t *testing.T) {
	m := NewMonitor(Config{LimitBytes: 1, HighWaterMark: 0.5, CriticalWaterMark: 0.9})
	if m.config.CheckInterval != DefaultConfig().CheckInterval {
		t.Errorf("CheckInterval = %v, want %v", m.config.CheckInterval, DefaultConfig().CheckInterval)
	}
}
