package repository

import (
	"database/sql"
	"fmt"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// MappingRepository manages the two classifier caches: the authoritative
// epic-key cache and the summary-keyed cache with confidence/provenance.
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// GetCategoryMapping returns the cached mapping for an epic key, or nil.
func (r *MappingRepository) GetCategoryMapping(epicKey string) (*model.EpicCategoryMapping, error) {
	query := `
		SELECT epic_key, category, created_at, updated_at
		FROM epic_category_mappings
		WHERE epic_key = $1
	`

	var m model.EpicCategoryMapping
	err := r.db.QueryRow(query, epicKey).Scan(&m.EpicKey, &m.Category, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching category mapping: %w", err)
	}
	return &m, nil
}

// UpsertCategoryMapping overwrites the epic-key mapping; never duplicated.
func (r *MappingRepository) UpsertCategoryMapping(epicKey string, category model.Category) error {
	log := logger.Global()

	query := `
		INSERT INTO epic_category_mappings (epic_key, category, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (epic_key) DO UPDATE SET
			category = EXCLUDED.category,
			updated_at = NOW()
	`

	_, err := r.db.Exec(query, epicKey, string(category))
	if err != nil {
		log.Error().Err(err).Str("epic_key", epicKey).Msg("Failed to upsert category mapping")
		return fmt.Errorf("upserting category mapping: %w", err)
	}
	return nil
}

// GetBaselineMapping returns the summary-keyed mapping, or nil.
func (r *MappingRepository) GetBaselineMapping(epicSummary string) (*model.EpicBaselineMapping, error) {
	query := `
		SELECT epic_summary, baseline_category, confidence_score, created_by, created_at, updated_at
		FROM epic_baseline_mappings
		WHERE epic_summary = $1
	`

	var m model.EpicBaselineMapping
	err := r.db.QueryRow(query, epicSummary).Scan(
		&m.EpicSummary, &m.BaselineCategory, &m.ConfidenceScore,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching baseline mapping: %w", err)
	}
	return &m, nil
}

// UpsertBaselineMapping writes a summary-keyed mapping. A system write
// never overwrites a manual row; manual writes always win.
func (r *MappingRepository) UpsertBaselineMapping(m model.EpicBaselineMapping) error {
	log := logger.Global()

	query := `
		INSERT INTO epic_baseline_mappings
			(epic_summary, baseline_category, confidence_score, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (epic_summary) DO UPDATE SET
			baseline_category = EXCLUDED.baseline_category,
			confidence_score = EXCLUDED.confidence_score,
			created_by = EXCLUDED.created_by,
			updated_at = NOW()
		WHERE epic_baseline_mappings.created_by != $5 OR EXCLUDED.created_by = $5
	`

	_, err := r.db.Exec(query, m.EpicSummary, string(m.BaselineCategory),
		m.ConfidenceScore, m.CreatedBy, model.MappingCreatedByManual)
	if err != nil {
		log.Error().Err(err).Str("created_by", m.CreatedBy).Msg("Failed to upsert baseline mapping")
		return fmt.Errorf("upserting baseline mapping: %w", err)
	}
	return nil
}

// ListBaselineMappings returns all summary-keyed mappings, most recent
// first. Accepted mappings feed the TF-IDF exemplar corpus.
func (r *MappingRepository) ListBaselineMappings() ([]model.EpicBaselineMapping, error) {
	query := `
		SELECT epic_summary, baseline_category, confidence_score, created_by, created_at, updated_at
		FROM epic_baseline_mappings
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing baseline mappings: %w", err)
	}
	defer rows.Close()

	var out []model.EpicBaselineMapping
	for rows.Next() {
		var m model.EpicBaselineMapping
		if err := rows.Scan(&m.EpicSummary, &m.BaselineCategory, &m.ConfidenceScore,
			&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning baseline mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListCategoryMappings returns the full epic-key cache keyed by epic key.
func (r *MappingRepository) ListCategoryMappings() (map[string]model.Category, error) {
	query := `SELECT epic_key, category FROM epic_category_mappings`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing category mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Category)
	for rows.Next() {
		var key string
		var cat model.Category
		if err := rows.Scan(&key, &cat); err != nil {
			return nil, fmt.Errorf("scanning category mapping: %w", err)
		}
		out[key] = cat
	}
	return out, rows.Err()
}

// EpicKeysByCategory returns the epic keys currently mapped to a category,
// sorted for stable downstream iteration.
func (r *MappingRepository) EpicKeysByCategory(category model.Category) ([]string, error) {
	query := `
		SELECT epic_key
		FROM epic_category_mappings
		WHERE category = $1
		ORDER BY epic_key
	`

	rows, err := r.db.Query(query, string(category))
	if err != nil {
		return nil, fmt.Errorf("listing epic keys for category: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning epic key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ListUnmappedEpics returns epic keys present in the hour corpus that
// have no cached category mapping, for manual categorization.
func (r *MappingRepository) ListUnmappedEpics() ([]model.EpicHours, error) {
	query := `
		SELECT DISTINCT ON (h.epic_key)
			h.id, h.project_key, h.epic_key, h.epic_summary, h.team, h.month, h.hours, h.created_at, h.updated_at
		FROM epic_hours h
		LEFT JOIN epic_category_mappings m ON m.epic_key = h.epic_key
		WHERE m.epic_key IS NULL
		ORDER BY h.epic_key, h.month DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing unmapped epics: %w", err)
	}
	defer rows.Close()

	return scanHours(rows)
}
