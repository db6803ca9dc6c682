package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// Scheduler runs the nightly baseline recomputation on a standard
// 5-field cron expression (minute hour day-of-month month day-of-week).
type Scheduler struct {
	recompute *RecomputeService
	cron      *cron.Cron
	schedule  string
}

// NewScheduler creates a new scheduler. An empty schedule disables it.
func NewScheduler(recompute *RecomputeService, schedule string) *Scheduler {
	return &Scheduler{
		recompute: recompute,
		schedule:  strings.TrimSpace(schedule),
	}
}

// Start registers the recompute job and launches the cron loop.
func (s *Scheduler) Start() error {
	log := logger.Global()

	if s.schedule == "" {
		log.Info().Msg("Scheduled recomputation disabled")
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx := logger.WithOperationID(context.Background(), "scheduled-recompute")
		if _, err := s.recompute.Run(ctx); err != nil {
			// Another trigger beat us to it; the lock did its job.
			if errors.Is(err, model.ErrLockHeld) {
				logger.Get(ctx).Info().Msg("Scheduled recomputation skipped, run already in progress")
				return
			}
			logger.Get(ctx).Error().Err(err).Msg("Scheduled recomputation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recompute schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("Recomputation scheduled")
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
