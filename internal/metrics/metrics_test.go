package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestThumbnailMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ThumbnailsTotal", ThumbnailsTotal},
		{"ThumbnailDuration", ThumbnailDuration},
		{"ThumbnailPhaseDuration", ThumbnailPhaseDuration},
		{"ThumbnailDecodeByFormat", ThumbnailDecodeByFormat},
		{"ThumbnailDecoderFallbacks", ThumbnailDecoderFallbacks},
		{"OrientationResolved", OrientationResolved},
		{"OrientationReadFailures", OrientationReadFailures},
		{"OrientationCorrections", OrientationCorrections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestBatchMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"BatchRunsTotal", BatchRunsTotal},
		{"BatchRunning", BatchRunning},
		{"BatchLastRunDuration", BatchLastRunDuration},
		{"BatchLastRunTimestamp", BatchLastRunTimestamp},
		{"BatchFiles", BatchFiles},
		{"BatchFilesPerSecond", BatchFilesPerSecond},
		{"WorkerPoolSize", WorkerPoolSize},
		{"WorkersActive", WorkersActive},
		{"WorkerPanics", WorkerPanics},
		{"ScannerDuration", ScannerDuration},
		{"ScannerFilesFound", ScannerFilesFound},
		{"ScannerEntriesSkipped", ScannerEntriesSkipped},
		{"ScannerErrors", ScannerErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestMemoryMetricOperations(t *testing.T) {
	t.Run("MemoryUsageRatio", func(_ *testing.T) {
		MemoryUsageRatio.Set(0.75)
		MemoryUsageRatio.Set(0.90)
	})

	t.Run("MemoryPaused", func(_ *testing.T) {
		MemoryPaused.Set(0)
		MemoryPaused.Set(1)
		MemoryPaused.Set(0)
	})

	t.Run("MemoryGCPauses", func(_ *testing.T) {
		MemoryGCPauses.Inc()
	})
}

func TestThumbnailCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(ThumbnailsTotal.WithLabelValues("decode_error"))
	ThumbnailsTotal.WithLabelValues("decode_error").Inc()
	after := testutil.ToFloat64(ThumbnailsTotal.WithLabelValues("decode_error"))

	if after-before != 1 {
		t.Errorf("decode_error counter moved by %v, want 1", after-before)
	}
}

func TestAppInfoMetric(t *testing.T) {
	SetAppInfo("1.0.0", "abc123", "go1.25.0")

	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.0.0", "abc123", "go1.25.0")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      int
	}{
		{"ThumbnailsTotal", ThumbnailsTotal, len(thumbnailStatuses)},
		{"ThumbnailPhaseDuration", ThumbnailPhaseDuration, len(thumbnailPhases)},
		{"OrientationResolved", OrientationResolved, 8},
		{"OrientationCorrections", OrientationCorrections, len(corrections)},
		{"BatchRunsTotal", BatchRunsTotal, len(batchStatuses)},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts, len(retryOps) * len(volumes)},
		{"HistoryQueriesTotal", HistoryQueriesTotal, len(historyOps) * 2},
		{"HTTPRequestDuration", HTTPRequestDuration, len(httpPaths)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Other tests may add label values, so only a lower bound holds.
			if got := testutil.CollectAndCount(tt.collector); got < tt.want {
				t.Errorf("%s has %d series, want at least %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "source"))
	obs.ObserveStaleError("open", "source")
	obs.ObserveRetryAttempt("open", "source")
	obs.ObserveRetrySuccess("open", "source")
	obs.ObserveRetryFailure("open", "source")
	obs.ObserveRetryDuration("open", "source", 0.1)

	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "source")); got-before != 1 {
		t.Errorf("stale errors moved by %v, want 1", got-before)
	}
}

func TestMetricNamesArePrefixed(t *testing.T) {
	InitializeMetrics()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := 0
	for _, mf := range families {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") || strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "thumbsmith_") {
			t.Errorf("metric %q is missing the thumbsmith_ prefix", name)
		}
		found++
	}
	if found == 0 {
		t.Error("no thumbsmith metrics were gathered")
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Goroutine %d panicked: %v", id, r)
				}
				done <- true
			}()

			ThumbnailsTotal.WithLabelValues("success").Inc()
			ThumbnailPhaseDuration.WithLabelValues("resize").Observe(0.01)
			WorkersActive.Inc()
			WorkersActive.Dec()
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkThumbnailMetrics(b *testing.B) {
	b.Run("Outcome counter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ThumbnailsTotal.WithLabelValues("success").Inc()
		}
	})

	b.Run("Phase histogram", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ThumbnailPhaseDuration.WithLabelValues("resize").Observe(0.1)
		}
	})
}
