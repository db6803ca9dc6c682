package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// ForecastRepository manages stored forecasts and epic budgets
type ForecastRepository struct {
	db *sql.DB
}

// NewForecastRepository creates a new forecast repository
func NewForecastRepository(db *sql.DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Insert persists an immutable forecast row and returns it with its ID.
func (r *ForecastRepository) Insert(f model.EpicForecast) (*model.EpicForecast, error) {
	log := logger.Global()

	teamsJSON, err := json.Marshal(f.TeamsSelected)
	if err != nil {
		return nil, fmt.Errorf("serializing teams: %w", err)
	}
	dataJSON, err := json.Marshal(f.ForecastData)
	if err != nil {
		return nil, fmt.Errorf("serializing forecast data: %w", err)
	}
	flagsJSON, err := json.Marshal(f.Flags)
	if err != nil {
		return nil, fmt.Errorf("serializing flags: %w", err)
	}

	query := `
		INSERT INTO epic_forecasts
			(project_key, epic_name, epic_description, category, confidence,
			be_integrations, custom_theme, custom_designs, ux_research,
			estimated_months, teams_selected, forecast_data, total_hours, flags, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		RETURNING id, created_at
	`

	created := f
	err = r.db.QueryRow(query, f.ProjectKey, f.EpicName, f.EpicDescription,
		string(f.Category), f.Confidence, f.BEIntegrations, f.CustomTheme,
		f.CustomDesigns, f.UXResearch, f.EstimatedMonths, teamsJSON, dataJSON,
		f.TotalHours, flagsJSON, f.CreatedBy).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("project_key", f.ProjectKey).Str("epic_name", f.EpicName).
			Msg("Failed to insert forecast")
		return nil, fmt.Errorf("inserting forecast: %w", err)
	}

	log.Info().Int("forecast_id", created.ID).Str("project_key", f.ProjectKey).
		Float64("total_hours", f.TotalHours).Msg("Forecast stored")
	return &created, nil
}

// GetByID returns a forecast by ID, or nil if absent.
func (r *ForecastRepository) GetByID(id int) (*model.EpicForecast, error) {
	query := selectForecast + " WHERE id = $1"

	row := r.db.QueryRow(query, id)
	f, err := scanForecast(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching forecast %d: %w", id, err)
	}
	return f, nil
}

// ListByProject returns a project's forecasts, newest first, so superseded
// rows remain available for comparison.
func (r *ForecastRepository) ListByProject(projectKey string) ([]model.EpicForecast, error) {
	query := selectForecast + " WHERE project_key = $1 ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(query, projectKey)
	if err != nil {
		return nil, fmt.Errorf("listing forecasts for project %s: %w", projectKey, err)
	}
	defer rows.Close()

	var out []model.EpicForecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning forecast: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

const selectForecast = `
	SELECT id, project_key, epic_name, epic_description, category, confidence,
		be_integrations, custom_theme, custom_designs, ux_research,
		estimated_months, teams_selected, forecast_data, total_hours, flags, created_by, created_at
	FROM epic_forecasts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanForecast(row rowScanner) (*model.EpicForecast, error) {
	var f model.EpicForecast
	var teamsJSON, dataJSON, flagsJSON []byte

	err := row.Scan(&f.ID, &f.ProjectKey, &f.EpicName, &f.EpicDescription,
		&f.Category, &f.Confidence, &f.BEIntegrations, &f.CustomTheme,
		&f.CustomDesigns, &f.UXResearch, &f.EstimatedMonths, &teamsJSON,
		&dataJSON, &f.TotalHours, &flagsJSON, &f.CreatedBy, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(teamsJSON, &f.TeamsSelected); err != nil {
		return nil, fmt.Errorf("deserializing teams: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &f.ForecastData); err != nil {
		return nil, fmt.Errorf("deserializing forecast data: %w", err)
	}
	if err := json.Unmarshal(flagsJSON, &f.Flags); err != nil {
		return nil, fmt.Errorf("deserializing flags: %w", err)
	}
	return &f, nil
}

// UpsertPlaceholder creates or updates a placeholder budget row for
// planned-but-not-yet-imported work.
func (r *ForecastRepository) UpsertPlaceholder(b model.EpicBudget) error {
	log := logger.Global()

	query := `
		INSERT INTO epic_budgets (project_key, epic_key, epic_name, hours, is_placeholder, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (project_key, epic_key) DO UPDATE SET
			epic_name = EXCLUDED.epic_name,
			hours = EXCLUDED.hours,
			updated_at = NOW()
		WHERE epic_budgets.is_placeholder
	`

	_, err := r.db.Exec(query, b.ProjectKey, b.EpicKey, b.EpicName, b.Hours)
	if err != nil {
		log.Error().Err(err).Str("epic_key", b.EpicKey).Msg("Failed to upsert placeholder budget")
		return fmt.Errorf("upserting placeholder budget: %w", err)
	}
	return nil
}

// ImportBudget imports a real epic over a placeholder: clears the
// placeholder flag and stamps the import fields.
func (r *ForecastRepository) ImportBudget(projectKey, epicKey, epicName string, hours float64, source string) error {
	log := logger.Global()

	query := `
		INSERT INTO epic_budgets
			(project_key, epic_key, epic_name, hours, is_placeholder, imported_at, import_source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, NOW(), NOW())
		ON CONFLICT (project_key, epic_key) DO UPDATE SET
			epic_name = EXCLUDED.epic_name,
			hours = EXCLUDED.hours,
			is_placeholder = FALSE,
			imported_at = EXCLUDED.imported_at,
			import_source = EXCLUDED.import_source,
			updated_at = NOW()
	`

	_, err := r.db.Exec(query, projectKey, epicKey, epicName, hours, time.Now().UTC(), source)
	if err != nil {
		log.Error().Err(err).Str("epic_key", epicKey).Str("source", source).
			Msg("Failed to import budget")
		return fmt.Errorf("importing budget: %w", err)
	}

	log.Info().Str("project_key", projectKey).Str("epic_key", epicKey).
		Str("source", source).Msg("Budget imported")
	return nil
}

// ListBudgets returns a project's budget rows, placeholders included.
func (r *ForecastRepository) ListBudgets(projectKey string) ([]model.EpicBudget, error) {
	query := `
		SELECT id, project_key, epic_key, epic_name, hours, is_placeholder,
			imported_at, import_source, created_at, updated_at
		FROM epic_budgets
		WHERE project_key = $1
		ORDER BY epic_key
	`

	rows, err := r.db.Query(query, projectKey)
	if err != nil {
		return nil, fmt.Errorf("listing budgets for project %s: %w", projectKey, err)
	}
	defer rows.Close()

	var out []model.EpicBudget
	for rows.Next() {
		var b model.EpicBudget
		var importSource sql.NullString
		if err := rows.Scan(&b.ID, &b.ProjectKey, &b.EpicKey, &b.EpicName, &b.Hours,
			&b.IsPlaceholder, &b.ImportedAt, &importSource, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		b.ImportSource = importSource.String
		out = append(out, b)
	}
	return out, rows.Err()
}
