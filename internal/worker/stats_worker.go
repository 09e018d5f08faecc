package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
)

// StatsWorker polls the queue counts and hands each snapshot to observe,
// which keeps the queue gauges current while nothing scrapes /api/v1/stats.
type StatsWorker struct {
	repo     repository.JobRepository
	observe  func(domain.Stats)
	interval time.Duration
	logger   *zap.Logger
}

func NewStatsWorker(
	repo repository.JobRepository,
	observe func(domain.Stats),
	interval time.Duration,
	logger *zap.Logger,
) *StatsWorker {
	return &StatsWorker{repo: repo, observe: observe, interval: interval, logger: logger}
}

// Run polls once immediately, then every interval until ctx is cancelled.
func (sw *StatsWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("stats worker started", zap.Duration("interval", sw.interval))
	sw.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("stats worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *StatsWorker) poll(ctx context.Context) {
	stats, err := sw.repo.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			sw.logger.Error("stats poll error", zap.Error(err))
		}
		return
	}
	sw.observe(stats)
}
