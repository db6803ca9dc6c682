package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/cache"
	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// allocationTolerancePct is the slack, in percentage points, allowed
// around the learned allocation range before a forecast gets flagged.
const allocationTolerancePct = 5.0

// monthKeyLayout formats the calendar month keys in forecast data.
const monthKeyLayout = "2006-01"

// forecastInputs is the read-only learned state one generation consumes.
// Pulled out of the repositories so the distribution math stays pure and
// testable without a database.
type forecastInputs struct {
	Baseline     *model.EpicBaseline
	Allocation   *model.EpicAllocationBaseline
	AllBaselines map[model.Category]model.EpicBaseline
	Temporal     map[string][]model.TemporalPatternBaseline
	TeamShares   map[string]float64
	Window       *model.ProjectForecastingConfig
	StartMonth   time.Time
}

// ForecastService turns a classified epic request into a deterministic
// month-by-team hour distribution backed by the learned baselines.
type ForecastService struct {
	forecastRepo *repository.ForecastRepository
	projectRepo  *repository.ProjectConfigRepository
	baselineRepo *repository.BaselineRepository
	hoursRepo    *repository.HoursRepository
	mappingRepo  *repository.MappingRepository
	classifier   *classifier.Classifier
	cache        *cache.Cache
	opts         config.ForecastOptions
}

// NewForecastService creates a new forecast service
func NewForecastService(
	forecastRepo *repository.ForecastRepository,
	projectRepo *repository.ProjectConfigRepository,
	baselineRepo *repository.BaselineRepository,
	hoursRepo *repository.HoursRepository,
	mappingRepo *repository.MappingRepository,
	cls *classifier.Classifier,
	c *cache.Cache,
	opts config.ForecastOptions,
) *ForecastService {
	return &ForecastService{
		forecastRepo: forecastRepo,
		projectRepo:  projectRepo,
		baselineRepo: baselineRepo,
		hoursRepo:    hoursRepo,
		mappingRepo:  mappingRepo,
		classifier:   cls,
		cache:        c,
		opts:         opts,
	}
}

// Generate produces and persists one forecast. Repeated calls with the
// same request against unchanged baselines yield identical numbers; a
// regenerated forecast supersedes by inserting a new immutable row.
func (s *ForecastService) Generate(ctx context.Context, req model.ForecastRequest) (*model.EpicForecast, error) {
	log := logger.Get(ctx)
	started := time.Now()

	cls, err := s.classify(ctx, req)
	if err != nil {
		metrics.Get().IncrementForecast(false, time.Since(started).Milliseconds())
		return nil, err
	}

	inputs, err := s.loadInputs(cls.Category, req)
	if err != nil {
		metrics.Get().IncrementForecast(false, time.Since(started).Milliseconds())
		return nil, err
	}

	forecast, err := s.build(req, cls, inputs)
	if err != nil {
		metrics.Get().IncrementForecast(false, time.Since(started).Milliseconds())
		return nil, err
	}

	saved, err := s.forecastRepo.Insert(forecast)
	if err != nil {
		metrics.Get().IncrementForecast(false, time.Since(started).Milliseconds())
		return nil, fmt.Errorf("persisting forecast: %w", err)
	}

	metrics.Get().IncrementForecast(true, time.Since(started).Milliseconds())
	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionForecastGenerate,
		Resource:   "epic_forecast",
		ResourceID: fmt.Sprintf("%d", saved.ID),
		Details: map[string]interface{}{
			"project_key": saved.ProjectKey,
			"category":    string(saved.Category),
			"total_hours": saved.TotalHours,
			"flags":       saved.Flags,
		},
		Success:  true,
		Duration: time.Since(started).Milliseconds(),
	})

	log.Info().
		Str("project_key", saved.ProjectKey).
		Str("category", string(saved.Category)).
		Float64("total_hours", saved.TotalHours).
		Strs("flags", saved.Flags).
		Msg("Forecast generated")

	return saved, nil
}

// GetByID returns one persisted forecast.
func (s *ForecastService) GetByID(id int) (*model.EpicForecast, error) {
	return s.forecastRepo.GetByID(id)
}

// ListByProject returns a project's forecasts, newest first.
func (s *ForecastService) ListByProject(projectKey string) ([]model.EpicForecast, error) {
	return s.forecastRepo.ListByProject(projectKey)
}

// classify resolves the request's category. A manual category always
// wins and is recorded as a manual mapping; otherwise the classifier
// runs and an ambiguous result propagates so the caller can ask for one.
func (s *ForecastService) classify(ctx context.Context, req model.ForecastRequest) (*classifier.Classification, error) {
	summary := strings.TrimSpace(req.EpicName + " " + req.EpicDescription)

	if req.ManualCategory != "" {
		cat, err := model.ParseCategory(req.ManualCategory)
		if err != nil {
			return nil, err
		}
		if err := s.classifier.Override(ctx, "", summary, cat); err != nil {
			return nil, err
		}
		metrics.Get().IncrementClassification(classifier.SourceManual, false)
		return &classifier.Classification{
			Category:   cat,
			Confidence: 1.0,
			Source:     classifier.SourceManual,
		}, nil
	}

	cls, err := s.classifier.Classify(ctx, "", summary)
	if err != nil {
		if errors.Is(err, model.ErrAmbiguousClassification) {
			metrics.Get().IncrementClassification("", true)
		}
		return nil, err
	}
	metrics.Get().IncrementClassification(cls.Source, false)
	return cls, nil
}

// loadInputs assembles the learned state for one generation, caching
// the baseline tables between recompute runs.
func (s *ForecastService) loadInputs(category model.Category, req model.ForecastRequest) (forecastInputs, error) {
	hourBaselines, err := s.hourBaselines()
	if err != nil {
		return forecastInputs{}, err
	}
	allocBaselines, err := s.allocationBaselines()
	if err != nil {
		return forecastInputs{}, err
	}
	temporal, err := s.temporalBaselines()
	if err != nil {
		return forecastInputs{}, err
	}

	window, err := s.projectRepo.Get(req.ProjectKey)
	if err != nil {
		return forecastInputs{}, err
	}

	shares, err := s.categoryTeamShares(category)
	if err != nil {
		return forecastInputs{}, err
	}

	inputs := forecastInputs{
		AllBaselines: hourBaselines,
		Temporal:     temporal,
		TeamShares:   shares,
		Window:       window,
		StartMonth:   s.startMonth(window),
	}
	if b, ok := hourBaselines[category]; ok {
		inputs.Baseline = &b
	}
	if a, ok := allocBaselines[category]; ok {
		inputs.Allocation = &a
	}
	return inputs, nil
}

// startMonth anchors the forecast timeline: the project window's start
// when configured, otherwise the current calendar month.
func (s *ForecastService) startMonth(window *model.ProjectForecastingConfig) time.Time {
	if window != nil && !window.ForecastingStartDate.IsZero() {
		return repository.FirstOfMonth(window.ForecastingStartDate)
	}
	return repository.FirstOfMonth(time.Now().UTC())
}

// categoryTeamShares returns each team's share of the historical hours
// logged against the category's mapped epics.
func (s *ForecastService) categoryTeamShares(category model.Category) (map[string]float64, error) {
	keys, err := s.mappingRepo.EpicKeysByCategory(category)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string]float64{}, nil
	}
	return s.hoursRepo.TeamShares(keys)
}

// build runs the distribution pipeline without touching storage.
func (s *ForecastService) build(req model.ForecastRequest, cls *classifier.Classification, inputs forecastInputs) (model.EpicForecast, error) {
	var flags []string

	total, hourFlags, err := s.totalHours(req, inputs.Baseline)
	if err != nil {
		return model.EpicForecast{}, err
	}
	flags = append(flags, hourFlags...)

	if flag := s.allocationSanity(inputs); flag != "" {
		flags = append(flags, flag)
	}

	total = s.applyUplifts(total, req)

	shares, evenSplit := teamSplit(req.TeamsSelected, inputs.TeamShares)
	if evenSplit {
		flags = append(flags, model.FlagEvenTeamSplit)
	}

	data, distFlags, err := s.distribute(req, total, shares, inputs)
	if err != nil {
		return model.EpicForecast{}, err
	}
	flags = append(flags, distFlags...)

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = model.MappingCreatedBySystem
	}

	return model.EpicForecast{
		ProjectKey:      req.ProjectKey,
		EpicName:        req.EpicName,
		EpicDescription: req.EpicDescription,
		Category:        cls.Category,
		Confidence:      cls.Confidence,
		BEIntegrations:  req.BEIntegrations,
		CustomTheme:     req.CustomTheme,
		CustomDesigns:   req.CustomDesigns,
		UXResearch:      req.UXResearch,
		EstimatedMonths: req.EstimatedMonths,
		TeamsSelected:   sortedTeams(req.TeamsSelected),
		ForecastData:    data,
		TotalHours:      roundTo(data.Total(), s.opts.RoundDecimals),
		Flags:           dedupeFlags(flags),
		CreatedBy:       createdBy,
	}, nil
}

// totalHours picks the epic's expected total: manual hours beat the
// baseline, the baseline beats the configured global default, and with
// none of the three the request fails.
func (s *ForecastService) totalHours(req model.ForecastRequest, baseline *model.EpicBaseline) (float64, []string, error) {
	if req.ManualHours != nil {
		if *req.ManualHours <= 0 {
			return 0, nil, fmt.Errorf("manual hours must be positive, got %v", *req.ManualHours)
		}
		return *req.ManualHours, []string{model.FlagManualHoursUsed}, nil
	}

	if baseline != nil && baseline.OccurrenceCount > 0 {
		var flags []string
		if baseline.LowSample {
			flags = append(flags, model.FlagLowSampleBaseline)
		}
		if baseline.VarianceLevel == model.VarianceHigh {
			flags = append(flags, model.FlagHighVarianceBaseline)
		}
		return baseline.MeanHours, flags, nil
	}

	if s.opts.DefaultEpicHours > 0 {
		return s.opts.DefaultEpicHours, []string{model.FlagDefaultBaselineUsed}, nil
	}

	return 0, nil, fmt.Errorf("no baseline for category and no manual or default hours: %w",
		model.ErrInsufficientBaselineData)
}

// allocationSanity compares the category's implied share of a typical
// project against its learned allocation range. Advisory only: the
// forecast is flagged, never rejected.
func (s *ForecastService) allocationSanity(inputs forecastInputs) string {
	if inputs.Allocation == nil || inputs.Baseline == nil {
		return ""
	}

	var sum float64
	for _, b := range inputs.AllBaselines {
		sum += b.MeanHours
	}
	if sum <= 0 {
		return ""
	}

	impliedPct := inputs.Baseline.MeanHours / sum * 100
	if impliedPct < inputs.Allocation.MinAllocationPct-allocationTolerancePct ||
		impliedPct > inputs.Allocation.MaxAllocationPct+allocationTolerancePct {
		return model.FlagAllocationOutOfRange
	}
	return ""
}

// applyUplifts multiplies the base total by every enabled feature
// factor. Factors compound.
func (s *ForecastService) applyUplifts(total float64, req model.ForecastRequest) float64 {
	if req.BEIntegrations {
		total *= s.opts.BEIntegrationsUplift
	}
	if req.CustomTheme {
		total *= s.opts.CustomThemeUplift
	}
	if req.CustomDesigns {
		total *= s.opts.CustomDesignsUplift
	}
	if req.UXResearch {
		total *= s.opts.UXResearchUplift
	}
	return total
}

// teamSplit restricts the historical shares to the selected teams and
// renormalizes. With no history for any selected team the split is even.
func teamSplit(selected []string, historical map[string]float64) (map[string]float64, bool) {
	shares := make(map[string]float64, len(selected))

	var sum float64
	for _, team := range selected {
		sum += historical[team]
	}
	if sum <= 0 {
		even := 1.0 / float64(len(selected))
		for _, team := range selected {
			shares[team] = even
		}
		return shares, true
	}

	for _, team := range selected {
		shares[team] = historical[team] / sum
	}
	return shares, false
}

// distribute spreads each team's hours over the forecast months using
// that team's temporal pattern, then clips to the project window and
// redistributes the clipped mass proportionally.
func (s *ForecastService) distribute(req model.ForecastRequest, total float64, shares map[string]float64, inputs forecastInputs) (model.ForecastData, []string, error) {
	months := make([]time.Time, req.EstimatedMonths)
	for i := range months {
		months[i] = inputs.StartMonth.AddDate(0, i, 0)
	}

	inWindow := windowMask(months, inputs.Window)
	clipped := false
	anyOpen := false
	for _, ok := range inWindow {
		if ok {
			anyOpen = true
		} else {
			clipped = true
		}
	}
	if !anyOpen {
		return nil, nil, fmt.Errorf("no forecast month falls inside the project window: %w",
			model.ErrInvalidDateWindow)
	}

	var flags []string
	if clipped {
		flags = append(flags, model.FlagWindowClipped)
	}

	data := make(model.ForecastData, len(shares))
	noPattern := false

	for _, team := range sortedTeams(req.TeamsSelected) {
		weights, hasPattern := monthWeights(req.EstimatedMonths, inputs.Temporal[team])
		if !hasPattern {
			noPattern = true
		}

		// Zero out clipped months and push their mass onto the rest.
		var open float64
		for i, w := range weights {
			if inWindow[i] {
				open += w
			} else {
				weights[i] = 0
			}
		}
		if open <= 0 {
			// The team's whole pattern lands outside the window; fall
			// back to an even spread over the open months.
			openCount := 0
			for _, ok := range inWindow {
				if ok {
					openCount++
				}
			}
			for i := range weights {
				if inWindow[i] {
					weights[i] = 1.0 / float64(openCount)
				}
			}
			open = 1.0
		}

		teamTotal := total * shares[team]
		byMonth := make(map[string]float64, len(months))
		for i, m := range months {
			if weights[i] <= 0 {
				continue
			}
			byMonth[m.Format(monthKeyLayout)] = roundTo(teamTotal*weights[i]/open, s.opts.RoundDecimals)
		}
		data[team] = byMonth
	}

	if noPattern {
		flags = append(flags, model.FlagNoTemporalPattern)
	}
	return data, flags, nil
}

// monthWeights projects a team's decile pattern onto an M-month
// timeline. Month i spans timeline positions [i/M, (i+1)/M) scaled to
// 0..100; each decile contributes its work share times the overlapping
// fraction. Returns uniform weights when the team has no pattern.
func monthWeights(monthCount int, pattern []model.TemporalPatternBaseline) ([]float64, bool) {
	weights := make([]float64, monthCount)

	if len(pattern) == 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(monthCount)
		}
		return weights, false
	}

	span := 100.0 / float64(monthCount)
	for i := range weights {
		mStart := float64(i) * span
		mEnd := mStart + span
		for _, b := range pattern {
			weights[i] += b.WorkPct * overlapFraction(float64(b.TimelineStartPct), float64(b.TimelineEndPct), mStart, mEnd)
		}
	}
	return weights, true
}

// overlapFraction returns how much of the bucket [bStart,bEnd) falls
// inside the month range [mStart,mEnd).
func overlapFraction(bStart, bEnd, mStart, mEnd float64) float64 {
	lo := math.Max(bStart, mStart)
	hi := math.Min(bEnd, mEnd)
	if hi <= lo || bEnd <= bStart {
		return 0
	}
	return (hi - lo) / (bEnd - bStart)
}

// windowMask marks which forecast months fall inside the project's
// forecasting window. A nil or unbounded window keeps every month.
func windowMask(months []time.Time, window *model.ProjectForecastingConfig) []bool {
	mask := make([]bool, len(months))
	for i, m := range months {
		mask[i] = true
		if window == nil {
			continue
		}
		if !window.ForecastingStartDate.IsZero() && m.Before(repository.FirstOfMonth(window.ForecastingStartDate)) {
			mask[i] = false
		}
		if !window.ForecastingEndDate.IsZero() && m.After(repository.FirstOfMonth(window.ForecastingEndDate)) {
			mask[i] = false
		}
	}
	return mask
}

func sortedTeams(teams []string) []string {
	out := make([]string, len(teams))
	copy(out, teams)
	sort.Strings(out)
	return out
}

func dedupeFlags(flags []string) []string {
	if len(flags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(flags))
	out := flags[:0]
	for _, f := range flags {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Baseline table reads go through the in-process cache; recompute
// clears it after publishing a new set.

const (
	cacheKeyHourBaselines       = "baselines:hours"
	cacheKeyAllocationBaselines = "baselines:allocation"
	cacheKeyTemporalBaselines   = "baselines:temporal"
)

func (s *ForecastService) hourBaselines() (map[model.Category]model.EpicBaseline, error) {
	if v, ok := s.cache.Get(cacheKeyHourBaselines); ok {
		return v.(map[model.Category]model.EpicBaseline), nil
	}
	m, err := s.baselineRepo.GetHourBaselines()
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyHourBaselines, m)
	return m, nil
}

func (s *ForecastService) allocationBaselines() (map[model.Category]model.EpicAllocationBaseline, error) {
	if v, ok := s.cache.Get(cacheKeyAllocationBaselines); ok {
		return v.(map[model.Category]model.EpicAllocationBaseline), nil
	}
	m, err := s.baselineRepo.GetAllocationBaselines()
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyAllocationBaselines, m)
	return m, nil
}

func (s *ForecastService) temporalBaselines() (map[string][]model.TemporalPatternBaseline, error) {
	if v, ok := s.cache.Get(cacheKeyTemporalBaselines); ok {
		return v.(map[string][]model.TemporalPatternBaseline), nil
	}
	m, err := s.baselineRepo.GetTemporalBaselines()
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyTemporalBaselines, m)
	return m, nil
}
