package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cleberrangel/epic-forecast-api/internal/cache"
	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// RecomputeJobName is the named lock serializing baseline recomputation.
const RecomputeJobName = "baseline_recompute"

// RecomputeResult summarizes one completed recomputation run.
type RecomputeResult struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	DurationMs        int64     `json:"duration_ms"`
	RecordsProcessed  int       `json:"records_processed"`
	HourBaselines     int       `json:"hour_baselines"`
	AllocBaselines    int       `json:"allocation_baselines"`
	TemporalBaselines int       `json:"temporal_baselines"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// RecomputeService rebuilds every learned baseline from the full hour
// history and publishes the replacement set atomically. Runs are
// serialized through a database job lock so overlapping triggers
// (scheduled and manual) cannot interleave.
type RecomputeService struct {
	hoursRepo    *repository.HoursRepository
	baselineRepo *repository.BaselineRepository
	mappingRepo  *repository.MappingRepository
	lockRepo     *repository.LockRepository
	classifier   *classifier.Classifier
	baselines    *BaselineService
	cache        *cache.Cache
	lockMaxAge   time.Duration
}

// NewRecomputeService creates a new recompute service
func NewRecomputeService(
	hoursRepo *repository.HoursRepository,
	baselineRepo *repository.BaselineRepository,
	mappingRepo *repository.MappingRepository,
	lockRepo *repository.LockRepository,
	cls *classifier.Classifier,
	baselines *BaselineService,
	c *cache.Cache,
	cfg *config.Config,
) *RecomputeService {
	return &RecomputeService{
		hoursRepo:    hoursRepo,
		baselineRepo: baselineRepo,
		mappingRepo:  mappingRepo,
		lockRepo:     lockRepo,
		classifier:   cls,
		baselines:    baselines,
		cache:        c,
		lockMaxAge:   cfg.LockMaxAge,
	}
}

// Run executes one full recomputation. It recovers a stale lock left by
// a crashed worker, claims the job lock, rebuilds the three baseline
// families from the entire hour history and swaps them in atomically.
// Returns model.ErrLockHeld when another run is already in progress.
func (s *RecomputeService) Run(ctx context.Context) (*RecomputeResult, error) {
	log := logger.Get(ctx)
	owner := uuid.New().String()
	started := time.Now()

	stale, err := s.lockRepo.IsStale(RecomputeJobName, s.lockMaxAge)
	if err != nil {
		return nil, fmt.Errorf("checking lock staleness: %w", err)
	}
	if stale {
		logger.Audit(ctx, logger.AuditEvent{
			Action:     logger.AuditActionLockStale,
			Resource:   "job_lock",
			ResourceID: RecomputeJobName,
			Success:    true,
		})
		if err := s.lockRepo.ForceRelease(RecomputeJobName, s.lockMaxAge); err != nil {
			return nil, fmt.Errorf("recovering stale lock: %w", err)
		}
	}

	acquired, err := s.lockRepo.TryAcquire(RecomputeJobName, owner)
	if err != nil {
		return nil, fmt.Errorf("acquiring recompute lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("recompute already running: %w", model.ErrLockHeld)
	}
	metrics.Get().SetRecomputeRunning(true)
	defer metrics.Get().SetRecomputeRunning(false)
	defer func() {
		if err := s.lockRepo.Release(RecomputeJobName, owner); err != nil {
			log.Error().Err(err).Msg("Failed to release recompute lock")
		}
	}()

	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionLockAcquired,
		Resource:   "job_lock",
		ResourceID: RecomputeJobName,
		Details:    map[string]interface{}{"owner": owner},
		Success:    true,
	})
	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionRecomputeStart,
		Resource:   "baselines",
		ResourceID: owner,
		Success:    true,
	})

	result, err := s.recompute(ctx, owner, started)
	if err != nil {
		metrics.Get().IncrementRecompute(false)
		logger.Audit(ctx, logger.AuditEvent{
			Action:     logger.AuditActionRecomputeFailed,
			Resource:   "baselines",
			ResourceID: owner,
			Success:    false,
			Error:      err.Error(),
			Duration:   time.Since(started).Milliseconds(),
		})
		return nil, err
	}

	metrics.Get().IncrementRecompute(true)
	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionRecomputeComplete,
		Resource:   "baselines",
		ResourceID: owner,
		Details: map[string]interface{}{
			"records_processed":  result.RecordsProcessed,
			"hour_baselines":     result.HourBaselines,
			"temporal_baselines": result.TemporalBaselines,
		},
		Success:  true,
		Duration: result.DurationMs,
	})
	return result, nil
}

func (s *RecomputeService) recompute(ctx context.Context, runID string, started time.Time) (*RecomputeResult, error) {
	log := logger.Get(ctx)

	history, err := s.hoursRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("loading hour history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("hour history is empty: %w", model.ErrInsufficientBaselineData)
	}

	resolve, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}

	hourBaselines := s.baselines.ComputeHourBaselines(history, resolve)
	allocBaselines := s.baselines.ComputeAllocationBaselines(history, resolve)
	temporalBaselines := s.baselines.ComputeTemporalBaselines(history)

	warnings := ValidateTemporalCoverage(temporalBaselines)
	for _, w := range warnings {
		logger.DataQuality(ctx, "temporal_pattern_baselines", runID, w)
	}

	if err := s.baselineRepo.ReplaceAll(hourBaselines, allocBaselines, temporalBaselines); err != nil {
		return nil, fmt.Errorf("publishing baselines: %w", err)
	}
	s.cache.InvalidatePrefix("baselines:")

	log.Info().
		Int("records", len(history)).
		Int("hour_baselines", len(hourBaselines)).
		Int("allocation_baselines", len(allocBaselines)).
		Int("temporal_baselines", len(temporalBaselines)).
		Msg("Baseline recomputation published")

	return &RecomputeResult{
		RunID:             runID,
		StartedAt:         started,
		DurationMs:        time.Since(started).Milliseconds(),
		RecordsProcessed:  len(history),
		HourBaselines:     len(hourBaselines),
		AllocBaselines:    len(allocBaselines),
		TemporalBaselines: len(temporalBaselines),
		Warnings:          warnings,
	}, nil
}

// resolver builds a CategoryResolver backed by the epic-key cache, with
// the classifier filling gaps. Ambiguous epics are skipped rather than
// guessed, so a noisy summary never pollutes the baseline corpus.
func (s *RecomputeService) resolver(ctx context.Context) (CategoryResolver, error) {
	cached, err := s.mappingRepo.ListCategoryMappings()
	if err != nil {
		return nil, fmt.Errorf("preloading category mappings: %w", err)
	}

	return func(epicKey, epicSummary string) (model.Category, bool) {
		if cat, ok := cached[epicKey]; ok {
			return cat, true
		}
		cls, err := s.classifier.Classify(ctx, epicKey, epicSummary)
		if err != nil {
			logger.DataQuality(ctx, "epic_hours", epicKey, "unclassifiable epic excluded from baselines: "+err.Error())
			return "", false
		}
		cached[epicKey] = cls.Category
		return cls.Category, true
	}, nil
}
