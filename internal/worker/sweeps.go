package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// Sweep is a periodic background job. Run reports how many items it acted on.
type Sweep struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// InactivitySweep closes idle tickets.
func InactivitySweep(svc *service.TicketService, interval time.Duration) Sweep {
	return Sweep{Name: "inactivity", Interval: interval, Run: svc.CloseIdle}
}

// StatusRefreshSweep re-renders open ticket controls.
func StatusRefreshSweep(svc *service.TicketService, interval time.Duration) Sweep {
	return Sweep{Name: "status_refresh", Interval: interval, Run: svc.RefreshOpen}
}

// ReconcileSweep repairs Store and Platform divergence. guilds names the
// guilds to scan in addition to those that already hold tickets.
func ReconcileSweep(svc *service.TicketService, interval time.Duration, guilds func() []string) Sweep {
	return Sweep{
		Name:     "reconcile",
		Interval: interval,
		Run: func(ctx context.Context) (int, error) {
			var extra []string
			if guilds != nil {
				extra = guilds()
			}
			report, err := svc.Reconcile(ctx, extra...)
			return report.Repairs(), err
		},
	}
}

// StartSweeps runs each sweep on its own ticker until ctx is done. Sweeps
// with a non-positive interval are disabled. Wait on the returned group for
// shutdown.
func StartSweeps(ctx context.Context, logger *zap.Logger, metrics *observability.Metrics, sweeps ...Sweep) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, sweep := range sweeps {
		if sweep.Interval <= 0 {
			logger.Info("sweep disabled", zap.String("sweep", sweep.Name))
			continue
		}
		wg.Add(1)
		go func(sweep Sweep) {
			defer wg.Done()
			runSweep(ctx, sweep, logger, metrics)
		}(sweep)
	}
	return &wg
}

func runSweep(ctx context.Context, sweep Sweep, logger *zap.Logger, metrics *observability.Metrics) {
	ticker := time.NewTicker(sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			affected, err := sweep.Run(ctx)
			metrics.RecordSweep(sweep.Name, affected, time.Now().UTC())
			if err != nil && ctx.Err() == nil {
				logger.Warn("sweep failed", zap.String("sweep", sweep.Name), zap.Error(err))
				continue
			}
			if affected > 0 {
				logger.Info("sweep completed", zap.String("sweep", sweep.Name), zap.Int("affected", affected))
			}
		}
	}
}
