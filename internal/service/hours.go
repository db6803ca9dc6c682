package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// HoursService ingests hour observations and keeps the classifier
// caches warm as new epics arrive.
type HoursService struct {
	hoursRepo  *repository.HoursRepository
	classifier *classifier.Classifier
}

// NewHoursService creates a new hours service
func NewHoursService(hoursRepo *repository.HoursRepository, cls *classifier.Classifier) *HoursService {
	return &HoursService{hoursRepo: hoursRepo, classifier: cls}
}

// Upsert records one observation. The month accepts YYYY-MM or
// YYYY-MM-DD and is normalized to the first day of the month. The epic
// is classified opportunistically; an ambiguous summary is logged and
// left for manual mapping without failing the ingest.
func (s *HoursService) Upsert(ctx context.Context, req model.HoursUpsertRequest) (*model.EpicHours, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		metrics.Get().IncrementHoursUpsert(false)
		return nil, err
	}

	record := model.EpicHours{
		ProjectKey:  req.ProjectKey,
		EpicKey:     req.EpicKey,
		EpicSummary: req.EpicSummary,
		Team:        req.Team,
		Month:       month,
		Hours:       req.Hours,
	}

	if err := s.hoursRepo.Upsert(record); err != nil {
		metrics.Get().IncrementHoursUpsert(false)
		return nil, err
	}
	metrics.Get().IncrementHoursUpsert(true)

	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionHoursUpsert,
		Resource:   "epic_hours",
		ResourceID: req.EpicKey,
		Details: map[string]interface{}{
			"project_key": req.ProjectKey,
			"team":        req.Team,
			"month":       month.Format(monthKeyLayout),
			"hours":       req.Hours,
		},
		Success: true,
	})

	// Warm the mapping caches so recomputation doesn't have to classify
	// from scratch. Ambiguity is expected for odd summaries.
	if req.EpicSummary != "" {
		if _, err := s.classifier.Classify(ctx, req.EpicKey, req.EpicSummary); err != nil {
			if errors.Is(err, model.ErrAmbiguousClassification) {
				logger.Get(ctx).Info().Str("epic_key", req.EpicKey).
					Msg("Epic left unmapped pending manual categorization")
			} else {
				logger.Get(ctx).Warn().Err(err).Str("epic_key", req.EpicKey).
					Msg("Classification during ingest failed")
			}
		}
	}

	return &record, nil
}

// ListByProject returns a project's hour history.
func (s *HoursService) ListByProject(projectKey string) ([]model.EpicHours, error) {
	return s.hoursRepo.ListByProject(projectKey)
}

// parseMonth accepts YYYY-MM or YYYY-MM-DD.
func parseMonth(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return repository.FirstOfMonth(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("month %q must be YYYY-MM or YYYY-MM-DD", raw)
}
