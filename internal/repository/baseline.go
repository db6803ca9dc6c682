package repository

import (
	"database/sql"
	"fmt"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// BaselineRepository manages the three learned baseline sets. Writes go
// through ReplaceAll, a single transaction that swaps the full set so
// readers never observe a partially-updated baseline.
type BaselineRepository struct {
	db *sql.DB
}

// NewBaselineRepository creates a new baseline repository
func NewBaselineRepository(db *sql.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// GetHourBaselines returns all learned hour baselines keyed by category.
func (r *BaselineRepository) GetHourBaselines() (map[model.Category]model.EpicBaseline, error) {
	query := `
		SELECT epic_category, median_hours, mean_hours, p75_hours, p90_hours,
			min_hours, max_hours, project_count, occurrence_count,
			coefficient_of_variation, variance_level, low_sample, updated_at
		FROM epic_baselines
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing hour baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Category]model.EpicBaseline)
	for rows.Next() {
		var b model.EpicBaseline
		if err := rows.Scan(&b.Category, &b.MedianHours, &b.MeanHours, &b.P75Hours,
			&b.P90Hours, &b.MinHours, &b.MaxHours, &b.ProjectCount, &b.OccurrenceCount,
			&b.CoefficientOfVariation, &b.VarianceLevel, &b.LowSample, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning hour baseline: %w", err)
		}
		out[b.Category] = b
	}
	return out, rows.Err()
}

// GetAllocationBaselines returns all allocation baselines keyed by category.
func (r *BaselineRepository) GetAllocationBaselines() (map[model.Category]model.EpicAllocationBaseline, error) {
	query := `
		SELECT epic_category, min_allocation_pct, max_allocation_pct,
			avg_allocation_pct, std_dev, sample_size, updated_at
		FROM epic_allocation_baselines
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing allocation baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Category]model.EpicAllocationBaseline)
	for rows.Next() {
		var b model.EpicAllocationBaseline
		if err := rows.Scan(&b.Category, &b.MinAllocationPct, &b.MaxAllocationPct,
			&b.AvgAllocationPct, &b.StdDev, &b.SampleSize, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning allocation baseline: %w", err)
		}
		out[b.Category] = b
	}
	return out, rows.Err()
}

// GetTemporalBaselines returns temporal buckets grouped by team, each
// team's buckets ordered by timeline position.
func (r *BaselineRepository) GetTemporalBaselines() (map[string][]model.TemporalPatternBaseline, error) {
	query := `
		SELECT timeline_start_pct, timeline_end_pct, team, work_pct, sample_size, updated_at
		FROM temporal_pattern_baselines
		ORDER BY team, timeline_start_pct
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing temporal baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.TemporalPatternBaseline)
	for rows.Next() {
		var b model.TemporalPatternBaseline
		if err := rows.Scan(&b.TimelineStartPct, &b.TimelineEndPct, &b.Team,
			&b.WorkPct, &b.SampleSize, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning temporal baseline: %w", err)
		}
		out[b.Team] = append(out[b.Team], b)
	}
	return out, rows.Err()
}

// ReplaceAll atomically publishes a full replacement baseline set. The
// previous rows are deleted and the new ones inserted in one transaction.
func (r *BaselineRepository) ReplaceAll(
	hourBaselines map[model.Category]model.EpicBaseline,
	allocationBaselines map[model.Category]model.EpicAllocationBaseline,
	temporalBaselines []model.TemporalPatternBaseline,
) error {
	log := logger.Global()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting baseline publish: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"epic_baselines", "epic_allocation_baselines", "temporal_pattern_baselines"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	hourStmt := `
		INSERT INTO epic_baselines
			(epic_category, median_hours, mean_hours, p75_hours, p90_hours, min_hours, max_hours,
			project_count, occurrence_count, coefficient_of_variation, variance_level, low_sample, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`
	for _, b := range hourBaselines {
		if _, err := tx.Exec(hourStmt, string(b.Category), b.MedianHours, b.MeanHours,
			b.P75Hours, b.P90Hours, b.MinHours, b.MaxHours, b.ProjectCount,
			b.OccurrenceCount, b.CoefficientOfVariation, string(b.VarianceLevel), b.LowSample); err != nil {
			return fmt.Errorf("inserting hour baseline %s: %w", b.Category, err)
		}
	}

	allocStmt := `
		INSERT INTO epic_allocation_baselines
			(epic_category, min_allocation_pct, max_allocation_pct, avg_allocation_pct, std_dev, sample_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	for _, b := range allocationBaselines {
		if _, err := tx.Exec(allocStmt, string(b.Category), b.MinAllocationPct,
			b.MaxAllocationPct, b.AvgAllocationPct, b.StdDev, b.SampleSize); err != nil {
			return fmt.Errorf("inserting allocation baseline %s: %w", b.Category, err)
		}
	}

	temporalStmt := `
		INSERT INTO temporal_pattern_baselines
			(timeline_start_pct, timeline_end_pct, team, work_pct, sample_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	for _, b := range temporalBaselines {
		if _, err := tx.Exec(temporalStmt, b.TimelineStartPct, b.TimelineEndPct,
			b.Team, b.WorkPct, b.SampleSize); err != nil {
			return fmt.Errorf("inserting temporal baseline %s [%d,%d): %w",
				b.Team, b.TimelineStartPct, b.TimelineEndPct, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("publishing baselines: %w", err)
	}

	log.Info().
		Int("hour_baselines", len(hourBaselines)).
		Int("allocation_baselines", len(allocationBaselines)).
		Int("temporal_baselines", len(temporalBaselines)).
		Msg("Baseline set published")
	return nil
}
