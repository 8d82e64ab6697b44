package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderstats/internal/logger"
	"orderstats/internal/service"
)

type DailyStatsRunner interface {
	RunDaily(ctx context.Context, now time.Time) (service.DailyRunResult, error)
}

// DailyStatsWorker snapshots the previous day on start and on every tick.
// Runs for a date that is already stored are no-ops.
type DailyStatsWorker struct {
	statsSvc DailyStatsRunner
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewDailyStatsWorker(statsSvc DailyStatsRunner, interval time.Duration, log *zap.Logger) *DailyStatsWorker {
	return &DailyStatsWorker{
		statsSvc: statsSvc,
		interval: interval,
		now:      time.Now,
		log:      log.Named("daily_stats_worker").With(zap.String("job", "daily_order_stats")),
	}
}

func (w *DailyStatsWorker) Start(ctx context.Context) {
	w.log.Info("starting daily stats worker", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("daily stats worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single snapshot run with its own run-scoped logger.
func (w *DailyStatsWorker) RunOnce(ctx context.Context) (service.DailyRunResult, error) {
	log := w.log.With(zap.String("run_id", uuid.NewString()))
	ctx = logger.WithContext(ctx, log)

	res, err := w.statsSvc.RunDaily(ctx, w.now())
	if err != nil {
		log.Error("daily stats run failed", zap.Error(err))
		return res, err
	}
	log.Info(res.Message(), zap.Bool("created", res.Created))
	return res, nil
}
