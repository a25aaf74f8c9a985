package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically publishes broadcasts whose publish time has
// passed. Publication is idempotent, so overlapping runs across workers
// produce no duplicate events.
type Sweeper struct {
	broadcasts *BroadcastService
	interval   time.Duration
	metrics    *MetricsService
	logger     *zap.Logger

	cron *cron.Cron
}

// NewSweeper constructs the sweep scheduler.
func NewSweeper(broadcasts *BroadcastService, interval time.Duration, metrics *MetricsService, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{broadcasts: broadcasts, interval: interval, metrics: metrics, logger: logger}
}

// Start schedules the sweep. Returns after registering the job.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))
	s.cron.Start()
	s.logger.Info("publish sweep scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce executes a single sweep pass. A failed pass is retried on the
// next scheduled run; there is no in-run retry.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	published, err := s.broadcasts.PublishDue(ctx, start.UTC())
	s.metrics.ObserveSweep(time.Since(start))
	if err != nil {
		s.logger.Error("publish sweep finished with errors",
			zap.Int("published", published), zap.Error(err))
		return
	}
	if published > 0 {
		s.logger.Info("publish sweep finished", zap.Int("published", published))
	}
}
