package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// Classification sources, recorded for provenance.
const (
	SourceEpicKeyCache = "epic_key_cache"
	SourceSummaryCache = "summary_cache"
	SourceProvider     = "provider"
	SourceManual       = "manual"
)

// Classification is the classifier's answer for one epic.
type Classification struct {
	Category   model.Category `json:"category"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
}

// MappingStore is the persistence surface the classifier needs.
type MappingStore interface {
	GetCategoryMapping(epicKey string) (*model.EpicCategoryMapping, error)
	UpsertCategoryMapping(epicKey string, category model.Category) error
	GetBaselineMapping(epicSummary string) (*model.EpicBaselineMapping, error)
	UpsertBaselineMapping(m model.EpicBaselineMapping) error
}

var _ MappingStore = (*repository.MappingRepository)(nil)

// Classifier resolves epics to taxonomy categories. Resolution order:
// epic-key cache, summary cache, then the similarity provider. Below the
// confidence floor the epic is left unmapped, never guessed.
type Classifier struct {
	store    MappingStore
	provider Provider
	fallback *TFIDFProvider
	opts     config.ClassifierOptions
}

// New creates a classifier. fallback resolves unknown-category self-heal
// deterministically even when the main provider is LLM-backed.
func New(store MappingStore, provider Provider, fallback *TFIDFProvider, opts config.ClassifierOptions) *Classifier {
	return &Classifier{
		store:    store,
		provider: provider,
		fallback: fallback,
		opts:     opts,
	}
}

// Classify resolves an epic key plus summary into a category.
// Returns model.ErrAmbiguousClassification when confidence lands below
// the floor, and the caller must surface the epic for manual mapping.
func (c *Classifier) Classify(ctx context.Context, epicKey, epicSummary string) (*Classification, error) {
	log := logger.Get(ctx)

	if strings.TrimSpace(epicSummary) == "" && strings.TrimSpace(epicKey) == "" {
		return nil, fmt.Errorf("epic key and summary both empty")
	}

	// 1. Authoritative cache by epic key.
	if epicKey != "" {
		cached, err := c.store.GetCategoryMapping(epicKey)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			cat, healed, err := c.healCategory(ctx, cached.Category, epicSummary)
			if err != nil {
				return nil, err
			}
			if healed {
				logger.DataQuality(ctx, "epic_category_mapping", epicKey,
					fmt.Sprintf("mapping pointed at %q outside the taxonomy, re-pointed to %q", cached.Category, cat))
				if err := c.store.UpsertCategoryMapping(epicKey, cat); err != nil {
					return nil, err
				}
			}
			return &Classification{Category: cat, Confidence: 1.0, Source: SourceEpicKeyCache}, nil
		}
	}

	// 2. Summary cache with stored confidence.
	if epicSummary != "" {
		cached, err := c.store.GetBaselineMapping(epicSummary)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			cat, healed, err := c.healCategory(ctx, cached.BaselineCategory, epicSummary)
			if err != nil {
				return nil, err
			}
			if healed {
				logger.DataQuality(ctx, "epic_baseline_mapping", epicSummary,
					fmt.Sprintf("mapping pointed at %q outside the taxonomy, re-pointed to %q", cached.BaselineCategory, cat))
				if err := c.store.UpsertBaselineMapping(model.EpicBaselineMapping{
					EpicSummary:      epicSummary,
					BaselineCategory: cat,
					ConfidenceScore:  cached.ConfidenceScore,
					CreatedBy:        cached.CreatedBy,
				}); err != nil {
					return nil, err
				}
			}
			return &Classification{
				Category:   cat,
				Confidence: cached.ConfidenceScore,
				Source:     SourceSummaryCache,
			}, nil
		}
	}

	// 3. Similarity provider, bounded by the configured timeout. A
	// timeout degrades to ambiguous instead of blocking the pipeline.
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	result, err := c.provider.Classify(callCtx, epicSummary)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("epic_key", epicKey).Str("provider", c.provider.Name()).
				Msg("Classification timed out, leaving epic unmapped")
			return nil, fmt.Errorf("%w: provider timeout", model.ErrAmbiguousClassification)
		}
		return nil, fmt.Errorf("provider %s: %w", c.provider.Name(), err)
	}

	if !result.Category.Valid() || result.Confidence < c.opts.ConfidenceFloor {
		log.Info().Str("epic_key", epicKey).
			Float64("confidence", result.Confidence).
			Float64("floor", c.opts.ConfidenceFloor).
			Msg("Classification below confidence floor")
		return nil, fmt.Errorf("%w: confidence %.3f below floor %.3f",
			model.ErrAmbiguousClassification, result.Confidence, c.opts.ConfidenceFloor)
	}

	if err := c.persist(ctx, epicKey, epicSummary, result.Category, result.Confidence, model.MappingCreatedBySystem); err != nil {
		return nil, err
	}

	log.Info().Str("epic_key", epicKey).Str("category", string(result.Category)).
		Float64("confidence", result.Confidence).Str("provider", c.provider.Name()).
		Msg("Epic classified")

	return &Classification{
		Category:   result.Category,
		Confidence: result.Confidence,
		Source:     SourceProvider,
	}, nil
}

// Override records a manual category decision. Manual mappings always
// take precedence and are never overwritten by reclassification.
func (c *Classifier) Override(ctx context.Context, epicKey, epicSummary string, category model.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownCategory, category)
	}

	if err := c.persist(ctx, epicKey, epicSummary, category, 1.0, model.MappingCreatedByManual); err != nil {
		return err
	}

	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionManualOverride,
		Resource:   "epic_mapping",
		ResourceID: epicKey,
		Details:    map[string]interface{}{"category": string(category)},
		Success:    true,
	})

	// Accepted manual decisions enrich the exemplar corpus.
	if c.fallback != nil {
		c.fallback.AddExample(category, epicSummary)
	}
	return nil
}

func (c *Classifier) persist(ctx context.Context, epicKey, epicSummary string, cat model.Category, confidence float64, createdBy string) error {
	if epicKey != "" {
		if err := c.store.UpsertCategoryMapping(epicKey, cat); err != nil {
			return err
		}
	}
	if epicSummary != "" {
		if err := c.store.UpsertBaselineMapping(model.EpicBaselineMapping{
			EpicSummary:      epicSummary,
			BaselineCategory: cat,
			ConfidenceScore:  confidence,
			CreatedBy:        createdBy,
		}); err != nil {
			return err
		}
	}
	return nil
}

// healCategory validates a stored category and, when it falls outside
// the taxonomy, re-points it to the nearest entry via the deterministic
// fallback provider. Never crashes the pipeline.
func (c *Classifier) healCategory(ctx context.Context, stored model.Category, epicSummary string) (model.Category, bool, error) {
	if stored.Valid() {
		return stored, false, nil
	}

	// Try a case/whitespace-insensitive match against the taxonomy first.
	if cat, err := model.ParseCategory(string(stored)); err == nil {
		return cat, true, nil
	}

	// Re-point by similarity of the stored name plus the summary.
	query := strings.TrimSpace(string(stored) + " " + epicSummary)
	result, err := c.fallback.Classify(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("self-healing mapping: %w", err)
	}
	if !result.Category.Valid() {
		// Nothing matched at all; fall back to the first taxonomy entry.
		return model.Categories()[0], true, nil
	}
	return result.Category, true, nil
}
