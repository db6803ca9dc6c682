package model

import "time"

// VarianceLevel classifies how spread-out a category's historical hour
// totals are, derived from the coefficient of variation.
type VarianceLevel string

const (
	VarianceLow    VarianceLevel = "low"
	VarianceMedium VarianceLevel = "medium"
	VarianceHigh   VarianceLevel = "high"
)

// Mapping provenance values stored in created_by columns.
const (
	MappingCreatedBySystem = "system"
	MappingCreatedByManual = "manual"
)

// EpicHours is one raw (project, epic, team, month) observation from the
// hour-tracking feed. Month is normalized to the first day of the month.
type EpicHours struct {
	ID          int       `json:"id" db:"id"`
	ProjectKey  string    `json:"project_key" db:"project_key"`
	EpicKey     string    `json:"epic_key" db:"epic_key"`
	EpicSummary string    `json:"epic_summary" db:"epic_summary"`
	Team        string    `json:"team" db:"team"`
	Month       time.Time `json:"month" db:"month"`
	Hours       float64   `json:"hours" db:"hours"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EpicCategoryMapping is the authoritative classifier cache, keyed by
// epic key. Overwritten on reclassification, never duplicated.
type EpicCategoryMapping struct {
	EpicKey   string    `json:"epic_key" db:"epic_key"`
	Category  Category  `json:"category" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EpicBaselineMapping is the summary-keyed classifier cache carrying
// confidence and provenance for audit and manual override.
type EpicBaselineMapping struct {
	EpicSummary      string    `json:"epic_summary" db:"epic_summary"`
	BaselineCategory Category  `json:"baseline_category" db:"baseline_category"`
	ConfidenceScore  float64   `json:"confidence_score" db:"confidence_score"`
	CreatedBy        string    `json:"created_by" db:"created_by"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// EpicBaseline is the learned hour-distribution for one category.
type EpicBaseline struct {
	Category               Category      `json:"epic_category" db:"epic_category"`
	MedianHours            float64       `json:"median_hours" db:"median_hours"`
	MeanHours              float64       `json:"mean_hours" db:"mean_hours"`
	P75Hours               float64       `json:"p75_hours" db:"p75_hours"`
	P90Hours               float64       `json:"p90_hours" db:"p90_hours"`
	MinHours               float64       `json:"min_hours" db:"min_hours"`
	MaxHours               float64       `json:"max_hours" db:"max_hours"`
	ProjectCount           int           `json:"project_count" db:"project_count"`
	OccurrenceCount        int           `json:"occurrence_count" db:"occurrence_count"`
	CoefficientOfVariation float64       `json:"coefficient_of_variation" db:"coefficient_of_variation"`
	VarianceLevel          VarianceLevel `json:"variance_level" db:"variance_level"`
	LowSample              bool          `json:"low_sample" db:"low_sample"`
	UpdatedAt              time.Time     `json:"updated_at" db:"updated_at"`
}

// EpicAllocationBaseline is the learned share of total project hours one
// category consumes, aggregated across projects.
type EpicAllocationBaseline struct {
	Category         Category  `json:"epic_category" db:"epic_category"`
	MinAllocationPct float64   `json:"min_allocation_pct" db:"min_allocation_pct"`
	MaxAllocationPct float64   `json:"max_allocation_pct" db:"max_allocation_pct"`
	AvgAllocationPct float64   `json:"avg_allocation_pct" db:"avg_allocation_pct"`
	StdDev           float64   `json:"std_dev" db:"std_dev"`
	SampleSize       int       `json:"sample_size" db:"sample_size"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// TemporalPatternBaseline records, for one team and one timeline bucket,
// the share of that team's project hours landing in the bucket.
type TemporalPatternBaseline struct {
	TimelineStartPct int       `json:"timeline_start_pct" db:"timeline_start_pct"`
	TimelineEndPct   int       `json:"timeline_end_pct" db:"timeline_end_pct"`
	Team             string    `json:"team" db:"team"`
	WorkPct          float64   `json:"work_pct" db:"work_pct"`
	SampleSize       int       `json:"sample_size" db:"sample_size"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ForecastData maps team -> month key ("2006-01") -> forecast hours.
type ForecastData map[string]map[string]float64

// Total sums every entry in the forecast.
func (d ForecastData) Total() float64 {
	var total float64
	for _, months := range d {
		for _, h := range months {
			total += h
		}
	}
	return total
}

// Forecast flags surfaced in EpicForecast.Flags so consumers can show
// provenance instead of treating all forecasts as equally trustworthy.
const (
	FlagLowSampleBaseline    = "low_sample_baseline"
	FlagHighVarianceBaseline = "high_variance_baseline"
	FlagAllocationOutOfRange = "allocation_out_of_range"
	FlagDefaultBaselineUsed  = "default_baseline_used"
	FlagEvenTeamSplit        = "even_team_split"
	FlagNoTemporalPattern    = "no_temporal_pattern"
	FlagWindowClipped        = "window_clipped"
	FlagManualHoursUsed      = "manual_hours_used"
)

// EpicForecast is one generated forecast. Rows are immutable: a new
// forecast supersedes by inserting, never by editing.
type EpicForecast struct {
	ID              int          `json:"id" db:"id"`
	ProjectKey      string       `json:"project_key" db:"project_key"`
	EpicName        string       `json:"epic_name" db:"epic_name"`
	EpicDescription string       `json:"epic_description" db:"epic_description"`
	Category        Category     `json:"category" db:"category"`
	Confidence      float64      `json:"confidence" db:"confidence"`
	BEIntegrations  bool         `json:"be_integrations" db:"be_integrations"`
	CustomTheme     bool         `json:"custom_theme" db:"custom_theme"`
	CustomDesigns   bool         `json:"custom_designs" db:"custom_designs"`
	UXResearch      bool         `json:"ux_research" db:"ux_research"`
	EstimatedMonths int          `json:"estimated_months" db:"estimated_months"`
	TeamsSelected   []string     `json:"teams_selected" db:"teams_selected"`
	ForecastData    ForecastData `json:"forecast_data" db:"forecast_data"`
	TotalHours      float64      `json:"total_hours" db:"total_hours"`
	Flags           []string     `json:"flags" db:"flags"`
	CreatedBy       string       `json:"created_by" db:"created_by"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// EpicBudget is a user-entered placeholder or an imported epic hour
// allocation. Importing over a placeholder clears IsPlaceholder and
// stamps the import fields.
type EpicBudget struct {
	ID            int        `json:"id" db:"id"`
	ProjectKey    string     `json:"project_key" db:"project_key"`
	EpicKey       string     `json:"epic_key" db:"epic_key"`
	EpicName      string     `json:"epic_name" db:"epic_name"`
	Hours         float64    `json:"hours" db:"hours"`
	IsPlaceholder bool       `json:"is_placeholder" db:"is_placeholder"`
	ImportedAt    *time.Time `json:"imported_at,omitempty" db:"imported_at"`
	ImportSource  string     `json:"import_source,omitempty" db:"import_source"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ProjectForecastingConfig bounds and gates forecasting for one project.
type ProjectForecastingConfig struct {
	ProjectKey           string    `json:"project_key" db:"project_key"`
	ForecastingStartDate time.Time `json:"forecasting_start_date" db:"forecasting_start_date"`
	ForecastingEndDate   time.Time `json:"forecasting_end_date" db:"forecasting_end_date"`
	IncludeInForecasting bool      `json:"include_in_forecasting" db:"include_in_forecasting"`
	ProjectType          string    `json:"project_type" db:"project_type"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Validate enforces start <= end before the config is used.
func (c ProjectForecastingConfig) Validate() error {
	if c.ForecastingEndDate.Before(c.ForecastingStartDate) {
		return ErrInvalidDateWindow
	}
	return nil
}

// JobLock is a named lock row claimed by a recomputation worker.
type JobLock struct {
	JobName    string    `json:"job_name" db:"job_name"`
	Owner      string    `json:"owner" db:"owner"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
}
