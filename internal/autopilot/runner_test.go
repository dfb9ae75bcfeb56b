package autopilot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerRolloverResetsDedup(t *testing.T) {
	w, _ := newFakeWorkflow(&fakeAnalyzer{}, &fakeMonitor{}, &fakeExecutor{})
	r := NewRunner(w, RunnerConfig{}, zerolog.Nop())

	now := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if r.Rollover(context.Background()) {
		t.Error("Expected first call to only record the date")
	}
	w.dedup.ShouldNotify("circuit_breaker")

	now = now.Add(time.Hour)
	if r.Rollover(context.Background()) {
		t.Error("Expected no rollover within the same day")
	}
	if w.dedup.Len() != 1 {
		t.Errorf("Expected dedup entry kept, got %d", w.dedup.Len())
	}

	now = now.Add(24 * time.Hour)
	if !r.Rollover(context.Background()) {
		t.Error("Expected rollover on a new trading date")
	}
	if w.dedup.Len() != 0 {
		t.Errorf("Expected dedup cleared on rollover, got %d", w.dedup.Len())
	}
}

func TestRunnerStartStop(t *testing.T) {
	w, _ := newFakeWorkflow(&fakeAnalyzer{}, &fakeMonitor{}, &fakeExecutor{})
	r := NewRunner(w, RunnerConfig{ScanInterval: time.Hour, MonitorInterval: time.Hour}, zerolog.Nop())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	if !r.IsRunning() {
		t.Error("Expected runner to be running")
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
	r.Stop()
	if r.IsRunning() {
		t.Error("Expected runner stopped")
	}
	r.Stop()
}

func TestRunnerMonitorTick(t *testing.T) {
	w, _ := newFakeWorkflow(&fakeAnalyzer{}, &fakeMonitor{}, &fakeExecutor{})
	r := NewRunner(w, DefaultRunnerConfig(), zerolog.Nop())

	res := r.MonitorTick(context.Background())
	if res.Workflow != WorkflowMonitorAndExit || res.Status != StatusSuccess {
		t.Errorf("Expected successful monitor run, got %s %s", res.Workflow, res.Status)
	}
	if last, ok := w.LastResult(WorkflowMonitorAndExit); !ok || last.RunID != res.RunID {
		t.Error("Expected last result to be tracked")
	}
}
