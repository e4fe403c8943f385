package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"FilterDecisionsTotal", FilterDecisionsTotal},
		{"SettleOutcomesTotal", SettleOutcomesTotal},
		{"SettleDuration", SettleDuration},
		{"TranscoderJobsTotal", TranscoderJobsTotal},
		{"TranscoderJobDuration", TranscoderJobDuration},
		{"DisposalsTotal", DisposalsTotal},
		{"NotificationsTotal", NotificationsTotal},
		{"HistoryQueriesTotal", HistoryQueriesTotal},
		{"HistoryQueryDuration", HistoryQueryDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics([]string{"accepted", "extension"}, []string{"watching", "stopped"})

	if n := testutil.CollectAndCount(FilterDecisionsTotal); n < 2 {
		t.Errorf("FilterDecisionsTotal series = %d, want >= 2", n)
	}
	if n := testutil.CollectAndCount(TranscoderJobsTotal); n < 3 {
		t.Errorf("TranscoderJobsTotal series = %d, want >= 3", n)
	}
	if n := testutil.CollectAndCount(FilesystemRetryAttempts); n < 2 {
		t.Errorf("FilesystemRetryAttempts series = %d, want >= 2", n)
	}
}

func TestSetState(t *testing.T) {
	states := []string{"starting", "watching", "stopped"}
	SetState("watching", states)

	if v := testutil.ToFloat64(AgentState.WithLabelValues("watching")); v != 1 {
		t.Errorf("watching = %v, want 1", v)
	}
	if v := testutil.ToFloat64(AgentState.WithLabelValues("starting")); v != 0 {
		t.Errorf("starting = %v, want 0", v)
	}

	SetState("stopped", states)
	if v := testutil.ToFloat64(AgentState.WithLabelValues("watching")); v != 0 {
		t.Errorf("watching after stop = %v, want 0", v)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()
	before := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat"))

	obs.ObserveStaleError("stat")
	obs.ObserveRetryAttempt("stat")
	obs.ObserveRetrySuccess("stat")
	obs.ObserveRetryFailure("stat")
	obs.ObserveRetryDuration("stat", 0.01)

	if after := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat")); after != before+1 {
		t.Errorf("stale errors = %v, want %v", after, before+1)
	}
}

type fakeStats struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (f *fakeStats) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stats
}

func (f *fakeStats) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCollector(t *testing.T) {
	provider := &fakeStats{stats: Stats{ActivePipelines: 3, ActiveJobs: 2, SlotsInUse: 1, SlotsTotal: 4}}
	c := NewCollector(provider, 5*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 2 {
		t.Fatalf("collector polled %d times, want >= 2", provider.callCount())
	}
	if v := testutil.ToFloat64(PipelinesActive); v != 3 {
		t.Errorf("PipelinesActive = %v, want 3", v)
	}
	if v := testutil.ToFloat64(TranscoderJobsInProgress); v != 2 {
		t.Errorf("TranscoderJobsInProgress = %v, want 2", v)
	}
	if v := testutil.ToFloat64(TranscodeSlotsInUse); v != 1 {
		t.Errorf("TranscodeSlotsInUse = %v, want 1", v)
	}
	if v := testutil.ToFloat64(TranscodeSlotsTotal); v != 4 {
		t.Errorf("TranscodeSlotsTotal = %v, want 4", v)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect()
}
