package repository

import (
	"database/sql"
	"fmt"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// ProjectConfigRepository manages per-project forecasting bounds
type ProjectConfigRepository struct {
	db *sql.DB
}

// NewProjectConfigRepository creates a new project config repository
func NewProjectConfigRepository(db *sql.DB) *ProjectConfigRepository {
	return &ProjectConfigRepository{db: db}
}

// Upsert writes a project's forecasting config. The date window is
// validated before touching the database; start > end is never stored.
func (r *ProjectConfigRepository) Upsert(cfg model.ProjectForecastingConfig) error {
	log := logger.Global()

	if err := cfg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO project_forecasting_configs
			(project_key, forecasting_start_date, forecasting_end_date,
			include_in_forecasting, project_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (project_key) DO UPDATE SET
			forecasting_start_date = EXCLUDED.forecasting_start_date,
			forecasting_end_date = EXCLUDED.forecasting_end_date,
			include_in_forecasting = EXCLUDED.include_in_forecasting,
			project_type = EXCLUDED.project_type,
			updated_at = NOW()
	`

	_, err := r.db.Exec(query, cfg.ProjectKey, cfg.ForecastingStartDate,
		cfg.ForecastingEndDate, cfg.IncludeInForecasting, cfg.ProjectType)
	if err != nil {
		log.Error().Err(err).Str("project_key", cfg.ProjectKey).
			Msg("Failed to upsert project forecasting config")
		return fmt.Errorf("upserting project config: %w", err)
	}

	log.Info().Str("project_key", cfg.ProjectKey).Msg("Project forecasting config updated")
	return nil
}

// Get returns a project's forecasting config, or nil if absent.
func (r *ProjectConfigRepository) Get(projectKey string) (*model.ProjectForecastingConfig, error) {
	query := `
		SELECT project_key, forecasting_start_date, forecasting_end_date,
			include_in_forecasting, project_type, created_at, updated_at
		FROM project_forecasting_configs
		WHERE project_key = $1
	`

	var cfg model.ProjectForecastingConfig
	err := r.db.QueryRow(query, projectKey).Scan(&cfg.ProjectKey,
		&cfg.ForecastingStartDate, &cfg.ForecastingEndDate,
		&cfg.IncludeInForecasting, &cfg.ProjectType, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching project config: %w", err)
	}
	return &cfg, nil
}

// ListIncluded returns configs for projects opted into forecasting.
func (r *ProjectConfigRepository) ListIncluded() ([]model.ProjectForecastingConfig, error) {
	query := `
		SELECT project_key, forecasting_start_date, forecasting_end_date,
			include_in_forecasting, project_type, created_at, updated_at
		FROM project_forecasting_configs
		WHERE include_in_forecasting
		ORDER BY project_key
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing project configs: %w", err)
	}
	defer rows.Close()

	var out []model.ProjectForecastingConfig
	for rows.Next() {
		var cfg model.ProjectForecastingConfig
		if err := rows.Scan(&cfg.ProjectKey, &cfg.ForecastingStartDate,
			&cfg.ForecastingEndDate, &cfg.IncludeInForecasting,
			&cfg.ProjectType, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}
