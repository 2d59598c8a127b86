package scheduler

import (
	"context"
	"log/slog"
	"time"

	"content_sync/internal/domain"
)

// Refresher copies remote content into the local cache.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshStats, error)
}

// Cleaner purges expired records; it runs after every refresh.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	refresher Refresher
	cleaner   Cleaner
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

func NewScheduler(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// WithCleanup adds a cleanup step to every run.
func (s *Scheduler) WithCleanup(cleaner Cleaner) *Scheduler {
	s.cleaner = cleaner
	return s
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.refresher.Refresh(refreshCtx); err != nil {
		s.logger.Error("refresh failed", "error", err)
	}

	if s.cleaner == nil {
		return
	}
	deleted, err := s.cleaner.CleanupExpired(refreshCtx)
	if err != nil {
		s.logger.Error("cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired records removed", "count", deleted)
	}
}
