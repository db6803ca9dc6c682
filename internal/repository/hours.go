package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/lib/pq"
)

// HoursRepository manages raw epic hour observations
type HoursRepository struct {
	db *sql.DB
}

// NewHoursRepository creates a new hours repository
func NewHoursRepository(db *sql.DB) *HoursRepository {
	return &HoursRepository{db: db}
}

// FirstOfMonth normalizes t to the first day of its month, UTC.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Upsert inserts or updates one observation, keyed by
// (project_key, epic_key, month, team). Hours must be non-negative.
func (r *HoursRepository) Upsert(h model.EpicHours) error {
	log := logger.Global()

	if h.Hours < 0 {
		return fmt.Errorf("hours must be non-negative, got %v", h.Hours)
	}
	h.Month = FirstOfMonth(h.Month)

	query := `
		INSERT INTO epic_hours (project_key, epic_key, epic_summary, team, month, hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (project_key, epic_key, month, team) DO UPDATE SET
			epic_summary = EXCLUDED.epic_summary,
			hours = EXCLUDED.hours,
			updated_at = NOW()
	`

	_, err := r.db.Exec(query, h.ProjectKey, h.EpicKey, h.EpicSummary, h.Team, h.Month, h.Hours)
	if err != nil {
		log.Error().Err(err).
			Str("project_key", h.ProjectKey).
			Str("epic_key", h.EpicKey).
			Msg("Failed to upsert epic hours")
		return fmt.Errorf("upserting epic hours: %w", err)
	}

	return nil
}

// ListAll returns the full observation corpus ordered by project, epic
// and month. Baseline recomputation runs over this snapshot.
func (r *HoursRepository) ListAll() ([]model.EpicHours, error) {
	query := `
		SELECT id, project_key, epic_key, epic_summary, team, month, hours, created_at, updated_at
		FROM epic_hours
		ORDER BY project_key, epic_key, month, team
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing epic hours: %w", err)
	}
	defer rows.Close()

	return scanHours(rows)
}

// ListByProject returns observations for one project.
func (r *HoursRepository) ListByProject(projectKey string) ([]model.EpicHours, error) {
	query := `
		SELECT id, project_key, epic_key, epic_summary, team, month, hours, created_at, updated_at
		FROM epic_hours
		WHERE project_key = $1
		ORDER BY epic_key, month, team
	`

	rows, err := r.db.Query(query, projectKey)
	if err != nil {
		return nil, fmt.Errorf("listing epic hours for project %s: %w", projectKey, err)
	}
	defer rows.Close()

	return scanHours(rows)
}

// TeamShares returns, for each team, its share [0,1] of the total hours
// observed across the given epic keys. Used to split a category forecast
// across teams by their historical participation.
func (r *HoursRepository) TeamShares(epicKeys []string) (map[string]float64, error) {
	if len(epicKeys) == 0 {
		return map[string]float64{}, nil
	}

	query := `
		SELECT team, SUM(hours)
		FROM epic_hours
		WHERE epic_key = ANY($1)
		GROUP BY team
	`

	rows, err := r.db.Query(query, pq.Array(epicKeys))
	if err != nil {
		return nil, fmt.Errorf("computing team shares: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	var grand float64
	for rows.Next() {
		var team string
		var hours float64
		if err := rows.Scan(&team, &hours); err != nil {
			return nil, fmt.Errorf("scanning team share: %w", err)
		}
		totals[team] = hours
		grand += hours
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team shares: %w", err)
	}

	shares := make(map[string]float64, len(totals))
	if grand > 0 {
		for team, hours := range totals {
			shares[team] = hours / grand
		}
	}
	return shares, nil
}

// KnownTeams returns the distinct teams present in the corpus.
func (r *HoursRepository) KnownTeams() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT team FROM epic_hours ORDER BY team")
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func scanHours(rows *sql.Rows) ([]model.EpicHours, error) {
	var out []model.EpicHours
	for rows.Next() {
		var h model.EpicHours
		if err := rows.Scan(&h.ID, &h.ProjectKey, &h.EpicKey, &h.EpicSummary,
			&h.Team, &h.Month, &h.Hours, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning epic hours: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
