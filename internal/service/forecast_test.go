package service

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

func testForecastService() *ForecastService {
	return &ForecastService{opts: config.ForecastOptions{
		BEIntegrationsUplift: 1.2,
		CustomThemeUplift:    1.15,
		CustomDesignsUplift:  1.25,
		UXResearchUplift:     1.1,
		RoundDecimals:        2,
	}}
}

// decilePattern builds a team's temporal baseline from ten bucket shares.
func decilePattern(team string, pcts [10]float64) []model.TemporalPatternBaseline {
	out := make([]model.TemporalPatternBaseline, 10)
	for i := range out {
		out[i] = model.TemporalPatternBaseline{
			TimelineStartPct: i * 10,
			TimelineEndPct:   (i + 1) * 10,
			Team:             team,
			WorkPct:          pcts[i],
			SampleSize:       1,
		}
	}
	return out
}

func dataSum(data model.ForecastData) float64 {
	return data.Total()
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func TestBuildDistributesBaselineMeanAcrossWindow(t *testing.T) {
	svc := testForecastService()

	req := model.ForecastRequest{
		ProjectKey:      "P9",
		EpicName:        "Checkout redesign",
		EpicDescription: "New checkout flow",
		EstimatedMonths: 2,
		TeamsSelected:   []string{"FE Dev"},
	}
	cls := &classifier.Classification{
		Category:   model.CategoryFEDev,
		Confidence: 0.9,
		Source:     classifier.SourceEpicKeyCache,
	}
	inputs := forecastInputs{
		Baseline: &model.EpicBaseline{
			Category:        model.CategoryFEDev,
			MeanHours:       100,
			MedianHours:     100,
			MinHours:        100,
			MaxHours:        100,
			OccurrenceCount: 5,
		},
		Temporal: map[string][]model.TemporalPatternBaseline{
			"FE Dev": decilePattern("FE Dev", [10]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}),
		},
		TeamShares: map[string]float64{"FE Dev": 1.0},
		StartMonth: month(2025, 1),
	}

	forecast, err := svc.build(req, cls, inputs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if math.Abs(forecast.TotalHours-100) > 0.05 {
		t.Errorf("total_hours = %v, want 100", forecast.TotalHours)
	}
	if math.Abs(dataSum(forecast.ForecastData)-forecast.TotalHours) > 0.05 {
		t.Errorf("forecast data sums to %v, total_hours is %v", dataSum(forecast.ForecastData), forecast.TotalHours)
	}
	feDev := forecast.ForecastData["FE Dev"]
	if len(feDev) != 2 {
		t.Fatalf("expected 2 forecast months, got %d", len(feDev))
	}
	if math.Abs(feDev["2025-01"]-50) > 0.05 || math.Abs(feDev["2025-02"]-50) > 0.05 {
		t.Errorf("uniform pattern over 2 months should split evenly, got %v", feDev)
	}
	if len(forecast.Flags) != 0 {
		t.Errorf("clean inputs should produce no flags, got %v", forecast.Flags)
	}
}

func TestBuildRedistributesClippedMonthsProportionally(t *testing.T) {
	svc := testForecastService()

	// Five months so each month maps onto exactly two deciles; the last
	// month carries 30% of the pattern and the window excludes it.
	req := model.ForecastRequest{
		ProjectKey:      "P9",
		EpicName:        "Search revamp",
		EpicDescription: "Faceted search",
		EstimatedMonths: 5,
		TeamsSelected:   []string{"BE Dev"},
	}
	cls := &classifier.Classification{Category: model.CategoryBEDev, Confidence: 0.85, Source: classifier.SourceSummaryCache}
	inputs := forecastInputs{
		Baseline: &model.EpicBaseline{Category: model.CategoryBEDev, MeanHours: 100, OccurrenceCount: 4},
		Temporal: map[string][]model.TemporalPatternBaseline{
			"BE Dev": decilePattern("BE Dev", [10]float64{10, 10, 10, 10, 10, 10, 10, 0, 15, 15}),
		},
		TeamShares: map[string]float64{"BE Dev": 1.0},
		Window: &model.ProjectForecastingConfig{
			ProjectKey:           "P9",
			ForecastingStartDate: month(2025, 1),
			ForecastingEndDate:   month(2025, 4),
		},
		StartMonth: month(2025, 1),
	}

	forecast, err := svc.build(req, cls, inputs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if !hasFlag(forecast.Flags, model.FlagWindowClipped) {
		t.Errorf("expected %s flag, got %v", model.FlagWindowClipped, forecast.Flags)
	}
	beDev := forecast.ForecastData["BE Dev"]
	if _, ok := beDev["2025-05"]; ok {
		t.Error("clipped month must not appear in forecast data")
	}
	if math.Abs(forecast.TotalHours-100) > 0.05 {
		t.Errorf("clipping must not change the total, got %v", forecast.TotalHours)
	}
	// Unclipped weights were 20/20/20/10; proportions survive the
	// renormalization.
	if math.Abs(beDev["2025-01"]-2*beDev["2025-04"]) > 0.05 {
		t.Errorf("redistribution should preserve proportions, got %v", beDev)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	svc := testForecastService()

	req := model.ForecastRequest{
		ProjectKey:      "P9",
		EpicName:        "Design system",
		EpicDescription: "Component library",
		BEIntegrations:  true,
		UXResearch:      true,
		EstimatedMonths: 4,
		TeamsSelected:   []string{"Design", "UX"},
	}
	cls := &classifier.Classification{Category: model.CategoryDesign, Confidence: 0.8, Source: classifier.SourceProvider}
	inputs := forecastInputs{
		Baseline: &model.EpicBaseline{Category: model.CategoryDesign, MeanHours: 240, OccurrenceCount: 6},
		Temporal: map[string][]model.TemporalPatternBaseline{
			"Design": decilePattern("Design", [10]float64{20, 20, 15, 15, 10, 10, 5, 5, 0, 0}),
		},
		TeamShares: map[string]float64{"Design": 0.7, "UX": 0.3},
		StartMonth: month(2025, 6),
	}

	first, err := svc.build(req, cls, inputs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := svc.build(req, cls, inputs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same request and baselines must yield identical forecasts")
	}
}

func TestTotalHoursPrecedence(t *testing.T) {
	svc := testForecastService()
	manual := 150.0
	baseline := &model.EpicBaseline{
		Category:        model.CategoryUX,
		MeanHours:       80,
		OccurrenceCount: 2,
		LowSample:       true,
		VarianceLevel:   model.VarianceHigh,
	}

	total, flags, err := svc.totalHours(model.ForecastRequest{ManualHours: &manual}, baseline)
	if err != nil || total != 150 {
		t.Errorf("manual hours should win: total=%v err=%v", total, err)
	}
	if !hasFlag(flags, model.FlagManualHoursUsed) {
		t.Errorf("expected %s flag, got %v", model.FlagManualHoursUsed, flags)
	}

	total, flags, err = svc.totalHours(model.ForecastRequest{}, baseline)
	if err != nil || total != 80 {
		t.Errorf("baseline mean should be used: total=%v err=%v", total, err)
	}
	if !hasFlag(flags, model.FlagLowSampleBaseline) || !hasFlag(flags, model.FlagHighVarianceBaseline) {
		t.Errorf("expected low-sample and high-variance flags, got %v", flags)
	}

	svc.opts.DefaultEpicHours = 60
	total, flags, err = svc.totalHours(model.ForecastRequest{}, nil)
	if err != nil || total != 60 || !hasFlag(flags, model.FlagDefaultBaselineUsed) {
		t.Errorf("default hours fallback: total=%v flags=%v err=%v", total, flags, err)
	}

	svc.opts.DefaultEpicHours = 0
	_, _, err = svc.totalHours(model.ForecastRequest{}, nil)
	if !errors.Is(err, model.ErrInsufficientBaselineData) {
		t.Errorf("expected ErrInsufficientBaselineData, got %v", err)
	}

	bad := -5.0
	_, _, err = svc.totalHours(model.ForecastRequest{ManualHours: &bad}, baseline)
	if err == nil {
		t.Error("non-positive manual hours must be rejected")
	}
}

func TestApplyUpliftsCompound(t *testing.T) {
	svc := testForecastService()

	got := svc.applyUplifts(100, model.ForecastRequest{BEIntegrations: true, UXResearch: true})
	want := 100 * 1.2 * 1.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("applyUplifts = %v, want %v", got, want)
	}

	if svc.applyUplifts(100, model.ForecastRequest{}) != 100 {
		t.Error("no enabled features should leave the total unchanged")
	}
}

func TestTeamSplit(t *testing.T) {
	shares, even := teamSplit([]string{"FE Dev", "BE Dev"}, map[string]float64{"FE Dev": 0.3, "BE Dev": 0.1, "UX": 0.6})
	if even {
		t.Error("historical shares present, split should not be even")
	}
	if math.Abs(shares["FE Dev"]-0.75) > 1e-9 || math.Abs(shares["BE Dev"]-0.25) > 1e-9 {
		t.Errorf("unexpected normalized shares: %v", shares)
	}

	shares, even = teamSplit([]string{"Design", "UX"}, map[string]float64{})
	if !even {
		t.Error("no history for any selected team should fall back to even split")
	}
	if shares["Design"] != 0.5 || shares["UX"] != 0.5 {
		t.Errorf("even split shares = %v", shares)
	}
}

func TestMonthWeights(t *testing.T) {
	uniform, hasPattern := monthWeights(4, nil)
	if hasPattern {
		t.Error("empty pattern must report hasPattern=false")
	}
	for _, w := range uniform {
		if math.Abs(w-0.25) > 1e-9 {
			t.Errorf("uniform weights = %v", uniform)
		}
	}

	pattern := decilePattern("FE Dev", [10]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10})
	weights, hasPattern := monthWeights(5, pattern)
	if !hasPattern {
		t.Error("expected hasPattern=true")
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("weights over a full pattern should sum to 100, got %v", sum)
	}
	// Each of 5 months covers exactly two 10% deciles.
	for i, w := range weights {
		if math.Abs(w-20) > 1e-9 {
			t.Errorf("month %d weight = %v, want 20", i, w)
		}
	}
}

func TestOverlapFraction(t *testing.T) {
	tests := []struct {
		bStart, bEnd, mStart, mEnd float64
		want                       float64
	}{
		{0, 10, 0, 10, 1},
		{0, 10, 5, 15, 0.5},
		{0, 10, 10, 20, 0},
		{0, 10, 20, 30, 0},
		{0, 20, 5, 10, 0.25},
	}
	for _, tt := range tests {
		if got := overlapFraction(tt.bStart, tt.bEnd, tt.mStart, tt.mEnd); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("overlapFraction(%v,%v,%v,%v) = %v, want %v", tt.bStart, tt.bEnd, tt.mStart, tt.mEnd, got, tt.want)
		}
	}
}

func TestWindowMask(t *testing.T) {
	months := []time.Time{month(2025, 1), month(2025, 2), month(2025, 3)}

	for i, ok := range windowMask(months, nil) {
		if !ok {
			t.Errorf("nil window should keep month %d open", i)
		}
	}

	window := &model.ProjectForecastingConfig{
		ForecastingStartDate: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		ForecastingEndDate:   time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	mask := windowMask(months, window)
	if mask[0] || !mask[1] || mask[2] {
		t.Errorf("mid-month window bounds should include only February, got %v", mask)
	}
}

func TestDistributeFailsWhenWindowExcludesEverything(t *testing.T) {
	svc := testForecastService()

	req := model.ForecastRequest{EstimatedMonths: 2, TeamsSelected: []string{"FE Dev"}}
	inputs := forecastInputs{
		TeamShares: map[string]float64{"FE Dev": 1.0},
		Window: &model.ProjectForecastingConfig{
			ForecastingStartDate: month(2026, 1),
			ForecastingEndDate:   month(2026, 6),
		},
		StartMonth: month(2025, 1),
	}

	_, _, err := svc.distribute(req, 100, map[string]float64{"FE Dev": 1.0}, inputs)
	if !errors.Is(err, model.ErrInvalidDateWindow) {
		t.Errorf("expected ErrInvalidDateWindow, got %v", err)
	}
}

func TestDistributeFlagsMissingPattern(t *testing.T) {
	svc := testForecastService()

	req := model.ForecastRequest{EstimatedMonths: 3, TeamsSelected: []string{"UX"}}
	inputs := forecastInputs{
		Temporal:   map[string][]model.TemporalPatternBaseline{},
		StartMonth: month(2025, 1),
	}

	data, flags, err := svc.distribute(req, 90, map[string]float64{"UX": 1.0}, inputs)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !hasFlag(flags, model.FlagNoTemporalPattern) {
		t.Errorf("expected %s flag, got %v", model.FlagNoTemporalPattern, flags)
	}
	for m, h := range data["UX"] {
		if math.Abs(h-30) > 0.05 {
			t.Errorf("uniform fallback should spread evenly, %s = %v", m, h)
		}
	}
}

func TestForecastTotalMatchesDataSumProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	svc := testForecastService()

	properties.Property("total_hours equals the sum of forecast data within rounding", prop.ForAll(
		func(meanHours float64, estimatedMonths int, beIntegrations, uxResearch bool) bool {
			req := model.ForecastRequest{
				ProjectKey:      "P1",
				EpicName:        "Epic",
				EpicDescription: "Description",
				BEIntegrations:  beIntegrations,
				UXResearch:      uxResearch,
				EstimatedMonths: estimatedMonths,
				TeamsSelected:   []string{"FE Dev", "BE Dev"},
			}
			cls := &classifier.Classification{Category: model.CategoryFEDev, Confidence: 0.9, Source: classifier.SourceEpicKeyCache}
			inputs := forecastInputs{
				Baseline: &model.EpicBaseline{Category: model.CategoryFEDev, MeanHours: meanHours, OccurrenceCount: 5},
				Temporal: map[string][]model.TemporalPatternBaseline{
					"FE Dev": decilePattern("FE Dev", [10]float64{5, 5, 10, 10, 15, 15, 15, 10, 10, 5}),
				},
				TeamShares: map[string]float64{"FE Dev": 0.6, "BE Dev": 0.4},
				StartMonth: month(2025, 1),
			}

			forecast, err := svc.build(req, cls, inputs)
			if err != nil {
				return false
			}
			// Every month is rounded independently, so the comparison
			// tolerance scales with the number of entries.
			tolerance := 0.01 * float64(estimatedMonths*len(req.TeamsSelected))
			return math.Abs(forecast.TotalHours-dataSum(forecast.ForecastData)) <= tolerance+1e-9
		},
		gen.Float64Range(1, 2000),
		gen.IntRange(1, 12),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
