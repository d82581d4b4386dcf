package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/config"
	"github.com/ifuryst/postpone/internal/store"
)

// BatchRunner runs one processing batch
type BatchRunner interface {
	Run(ctx context.Context) (*RunSummary, error)
}

// Scheduler triggers a processor run on a cron schedule while serving
type Scheduler struct {
	config *config.SchedulerConfig
	logger *zap.Logger
	runner BatchRunner
	cron   *cron.Cron
	ctx    context.Context
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, runner BatchRunner) *Scheduler {
	return &Scheduler{
		config: cfg,
		logger: logger,
		runner: runner,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	s.ctx = ctx
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.config.Cron, s.runBatch); err != nil {
		s.logger.Error("Invalid cron expression", zap.String("cron", s.config.Cron), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("cron", s.config.Cron))
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.logger.Info("Scheduler context cancelled")
		s.Stop()
	}()

	return nil
}

// Stop waits for a running batch to finish
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runBatch() {
	start := time.Now()
	summary, err := s.runner.Run(s.ctx)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			s.logger.Warn("Scheduled run skipped, store is locked", zap.Error(err))
			return
		}
		s.logger.Error("Scheduled run failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	s.logger.Info("Scheduled run completed",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", duration))
}
