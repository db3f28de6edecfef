package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/observability"
)

func TestStartSweepsRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := observability.NewMetrics()

	var runs atomic.Int32
	done := make(chan struct{})
	sweep := Sweep{
		Name:     "test",
		Interval: time.Millisecond,
		Run: func(context.Context) (int, error) {
			if runs.Add(1) == 3 {
				close(done)
			}
			if runs.Load() == 2 {
				return 0, errors.New("transient")
			}
			return 1, nil
		},
	}
	disabled := Sweep{
		Name: "disabled",
		Run: func(context.Context) (int, error) {
			t.Error("disabled sweep ran")
			return 0, nil
		},
	}

	wg := StartSweeps(ctx, zap.NewNop(), metrics, sweep, disabled)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run three times")
	}
	cancel()
	wg.Wait()

	snap := metrics.Snapshot()
	if snap.Sweeps["test"] < 2 {
		t.Errorf("sweep count = %d, want at least 2", snap.Sweeps["test"])
	}
	if _, ok := snap.LastRun["disabled"]; ok {
		t.Error("disabled sweep recorded a run")
	}
}
