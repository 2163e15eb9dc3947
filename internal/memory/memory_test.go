package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

const testLimit = 100 * 1024 * 1024 // 100 MB

// newTestMonitor returns a monitor whose heap reading is controlled by the
// returned pointer.
func newTestMonitor(t *testing.T) (*Monitor, *atomic.Uint64) {
	t.Helper()
	var heap atomic.Uint64
	m := NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
		ReadHeap:          heap.Load,
	})
	t.Cleanup(m.Stop)
	return m, &heap
}

func TestNewMonitor(t *testing.T) {
	m := NewMonitor(Config{MemoryLimitBytes: testLimit, CheckInterval: time.Second})

	_, limit, usage := m.GetStats()
	if limit != testLimit {
		t.Errorf("limit = %d, want %d", limit, testLimit)
	}
	if usage != 0 {
		t.Errorf("usage before first sample = %f, want 0", usage)
	}
	if m.IsPaused() {
		t.Error("new monitor should not be paused")
	}
}

func TestMonitorCheckMemoryTransitions(t *testing.T) {
	tests := []struct {
		name       string
		samples    []float64 // fractions of the limit
		wantPaused bool
	}{
		{name: "below high water", samples: []float64{0.5}, wantPaused: false},
		{name: "between marks does not pause", samples: []float64{0.8}, wantPaused: false},
		{name: "critical pauses", samples: []float64{0.9}, wantPaused: true},
		{name: "between marks stays paused", samples: []float64{0.9, 0.8}, wantPaused: true},
		{name: "below high water resumes", samples: []float64{0.9, 0.6}, wantPaused: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, heap := newTestMonitor(t)

			for _, s := range tt.samples {
				heap.Store(uint64(s * testLimit))
				m.checkMemory()
			}

			if got := m.IsPaused(); got != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", got, tt.wantPaused)
			}
		})
	}
}

func TestMonitorShouldThrottle(t *testing.T) {
	m, heap := newTestMonitor(t)

	heap.Store(uint64(0.5 * testLimit))
	m.checkMemory()
	if m.ShouldThrottle() {
		t.Error("ShouldThrottle() = true at 50% usage")
	}

	heap.Store(uint64(0.75 * testLimit))
	m.checkMemory()
	if !m.ShouldThrottle() {
		t.Error("ShouldThrottle() = false at 75% usage")
	}
}

func TestMonitorWaitIfPaused(t *testing.T) {
	t.Run("not paused returns immediately", func(t *testing.T) {
		m, _ := newTestMonitor(t)
		if !m.WaitIfPaused(context.Background()) {
			t.Error("WaitIfPaused() = false when not paused")
		}
	})

	t.Run("resumes when memory recovers", func(t *testing.T) {
		m, heap := newTestMonitor(t)
		heap.Store(uint64(0.9 * testLimit))
		m.checkMemory()

		result := make(chan bool, 1)
		go func() { result <- m.WaitIfPaused(context.Background()) }()

		heap.Store(uint64(0.1 * testLimit))
		m.checkMemory()

		select {
		case ok := <-result:
			if !ok {
				t.Error("WaitIfPaused() = false after recovery, want true")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("WaitIfPaused() did not return after recovery")
		}
	})

	t.Run("context cancellation releases waiter", func(t *testing.T) {
		m, heap := newTestMonitor(t)
		heap.Store(uint64(0.9 * testLimit))
		m.checkMemory()

		ctx, cancel := context.WithCancel(context.Background())
		result := make(chan bool, 1)
		go func() { result <- m.WaitIfPaused(ctx) }()
		cancel()

		select {
		case ok := <-result:
			if ok {
				t.Error("WaitIfPaused() = true after cancel, want false")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("WaitIfPaused() did not return after cancel")
		}
	})

	t.Run("stop releases waiter", func(t *testing.T) {
		m, heap := newTestMonitor(t)
		heap.Store(uint64(0.9 * testLimit))
		m.checkMemory()

		result := make(chan bool, 1)
		go func() { result <- m.WaitIfPaused(context.Background()) }()
		m.Stop()

		select {
		case ok := <-result:
			if ok {
				t.Error("WaitIfPaused() = true after Stop, want false")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("WaitIfPaused() did not return after Stop")
		}
	})
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor

	if !m.WaitIfPaused(context.Background()) {
		t.Error("nil monitor WaitIfPaused() = false")
	}
	if m.IsPaused() {
		t.Error("nil monitor IsPaused() = true")
	}
	if m.ShouldThrottle() {
		t.Error("nil monitor ShouldThrottle() = true")
	}
}

func TestMonitorStartStop(t *testing.T) {
	m, heap := newTestMonitor(t)
	heap.Store(uint64(0.4 * testLimit))

	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		current, _, _ := m.GetStats()
		if current == int64(heap.Load()) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor loop never sampled the heap")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Stop()
	m.Stop() // second Stop must not panic
}

func TestMonitorWithNoLimit(t *testing.T) {
	m := NewMonitor(Config{CheckInterval: time.Second})
	if m.limit != 0 {
		// GOMEMLIMIT is set in this environment, nothing further to check.
		t.Skip("GOMEMLIMIT is set")
	}

	m.Start()
	defer m.Stop()

	if m.ShouldThrottle() {
		t.Error("ShouldThrottle() = true with no limit")
	}
	if !m.WaitIfPaused(context.Background()) {
		t.Error("WaitIfPaused() = false with no limit")
	}
}
