package model

// ForecastRequest is the payload for on-demand forecast generation.
type ForecastRequest struct {
	ProjectKey      string   `json:"project_key" binding:"required"`
	EpicName        string   `json:"epic_name" binding:"required"`
	EpicDescription string   `json:"epic_description" binding:"required"`
	BEIntegrations  bool     `json:"be_integrations"`
	CustomTheme     bool     `json:"custom_theme"`
	CustomDesigns   bool     `json:"custom_designs"`
	UXResearch      bool     `json:"ux_research"`
	EstimatedMonths int      `json:"estimated_months" binding:"required,min=1"`
	TeamsSelected   []string `json:"teams_selected" binding:"required,min=1"`

	// ManualCategory resolves an ambiguous classification; required when
	// the classifier declines to guess.
	ManualCategory string `json:"manual_category,omitempty"`

	// ManualHours overrides the learned baseline when a category has no
	// usable history.
	ManualHours *float64 `json:"manual_hours,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`
}

// HoursUpsertRequest is one observation from the hour-tracking feed.
type HoursUpsertRequest struct {
	ProjectKey  string  `json:"project_key" binding:"required"`
	EpicKey     string  `json:"epic_key" binding:"required"`
	EpicSummary string  `json:"epic_summary"`
	Team        string  `json:"team" binding:"required"`
	Month       string  `json:"month" binding:"required"` // YYYY-MM or YYYY-MM-DD
	Hours       float64 `json:"hours" binding:"min=0"`
}

// MappingOverrideRequest records a manual category decision for an epic.
type MappingOverrideRequest struct {
	EpicKey     string `json:"epic_key" binding:"required"`
	EpicSummary string `json:"epic_summary" binding:"required"`
	Category    string `json:"category" binding:"required"`
}

// BudgetPlaceholderRequest creates or updates a placeholder budget row.
type BudgetPlaceholderRequest struct {
	ProjectKey string  `json:"project_key" binding:"required"`
	EpicKey    string  `json:"epic_key" binding:"required"`
	EpicName   string  `json:"epic_name" binding:"required"`
	Hours      float64 `json:"hours" binding:"min=0"`
}

// BudgetImportRequest replaces a placeholder with imported hours.
type BudgetImportRequest struct {
	ProjectKey string  `json:"project_key" binding:"required"`
	EpicKey    string  `json:"epic_key" binding:"required"`
	EpicName   string  `json:"epic_name" binding:"required"`
	Hours      float64 `json:"hours" binding:"min=0"`
	Source     string  `json:"source" binding:"required"`
}

// ProjectConfigRequest upserts a project's forecasting bounds.
type ProjectConfigRequest struct {
	ProjectKey           string `json:"project_key" binding:"required"`
	ForecastingStartDate string `json:"forecasting_start_date" binding:"required"` // YYYY-MM-DD
	ForecastingEndDate   string `json:"forecasting_end_date" binding:"required"`
	IncludeInForecasting bool   `json:"include_in_forecasting"`
	ProjectType          string `json:"project_type"`
}

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries response metadata.
type Meta struct {
	Total    int      `json:"total,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
