package service

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

func testBaselineOptions() config.BaselineOptions {
	return config.BaselineOptions{
		CoVLowThreshold:  0.3,
		CoVHighThreshold: 0.75,
		MinSampleSize:    3,
	}
}

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

// fixedResolver maps every epic key to a fixed category.
func fixedResolver(mapping map[string]model.Category) CategoryResolver {
	return func(epicKey, _ string) (model.Category, bool) {
		cat, ok := mapping[epicKey]
		return cat, ok
	}
}

func TestComputeHourBaselinesSingleOccurrence(t *testing.T) {
	// Two monthly rows for the same (project, epic) are one occurrence.
	history := []model.EpicHours{
		{ProjectKey: "P1", EpicKey: "E1", Team: "FE Dev", Month: month(2025, 1), Hours: 40},
		{ProjectKey: "P1", EpicKey: "E1", Team: "FE Dev", Month: month(2025, 2), Hours: 20},
	}
	svc := NewBaselineService(testBaselineOptions())

	out := svc.ComputeHourBaselines(history, fixedResolver(map[string]model.Category{"E1": model.CategoryFEDev}))

	b, ok := out[model.CategoryFEDev]
	if !ok {
		t.Fatal("expected a baseline for FE Dev")
	}
	if b.MeanHours != 60 {
		t.Errorf("mean_hours = %v, want 60", b.MeanHours)
	}
	if b.OccurrenceCount != 1 {
		t.Errorf("occurrence_count = %d, want 1", b.OccurrenceCount)
	}
	if b.ProjectCount != 1 {
		t.Errorf("project_count = %d, want 1", b.ProjectCount)
	}
	if !b.LowSample {
		t.Error("one occurrence under min sample 3 should be flagged low sample")
	}
}

func TestComputeHourBaselinesSkipsUnresolvedEpics(t *testing.T) {
	history := []model.EpicHours{
		{ProjectKey: "P1", EpicKey: "E1", Team: "FE Dev", Month: month(2025, 1), Hours: 40},
		{ProjectKey: "P1", EpicKey: "E2", Team: "BE Dev", Month: month(2025, 1), Hours: 80},
	}
	svc := NewBaselineService(testBaselineOptions())

	out := svc.ComputeHourBaselines(history, fixedResolver(map[string]model.Category{"E1": model.CategoryFEDev}))

	if len(out) != 1 {
		t.Fatalf("expected only the resolved epic's category, got %d baselines", len(out))
	}
	if _, ok := out[model.CategoryFEDev]; !ok {
		t.Error("expected FE Dev baseline")
	}
}

func TestComputeAllocationBaselinesSingleProject(t *testing.T) {
	// P1 total 100h, Design 25h.
	history := []model.EpicHours{
		{ProjectKey: "P1", EpicKey: "E1", Team: "Design", Month: month(2025, 1), Hours: 25},
		{ProjectKey: "P1", EpicKey: "E2", Team: "BE Dev", Month: month(2025, 1), Hours: 75},
	}
	svc := NewBaselineService(testBaselineOptions())
	resolve := fixedResolver(map[string]model.Category{
		"E1": model.CategoryDesign,
		"E2": model.CategoryBEDev,
	})

	out := svc.ComputeAllocationBaselines(history, resolve)

	design, ok := out[model.CategoryDesign]
	if !ok {
		t.Fatal("expected an allocation baseline for Design")
	}
	if design.AvgAllocationPct != 25.0 {
		t.Errorf("avg_allocation_pct = %v, want 25.0", design.AvgAllocationPct)
	}
	if design.SampleSize != 1 {
		t.Errorf("sample_size = %d, want 1", design.SampleSize)
	}
	if design.MinAllocationPct != 25.0 || design.MaxAllocationPct != 25.0 {
		t.Errorf("min/max = %v/%v, want 25/25", design.MinAllocationPct, design.MaxAllocationPct)
	}
}

func TestComputeAllocationBaselinesSkipsZeroTotalProject(t *testing.T) {
	history := []model.EpicHours{
		{ProjectKey: "P0", EpicKey: "E0", Team: "UX", Month: month(2025, 1), Hours: 0},
		{ProjectKey: "P1", EpicKey: "E1", Team: "UX", Month: month(2025, 1), Hours: 50},
	}
	svc := NewBaselineService(testBaselineOptions())
	resolve := fixedResolver(map[string]model.Category{
		"E0": model.CategoryUX,
		"E1": model.CategoryUX,
	})

	out := svc.ComputeAllocationBaselines(history, resolve)

	ux := out[model.CategoryUX]
	if ux.SampleSize != 1 {
		t.Errorf("zero-total project should be skipped, sample_size = %d, want 1", ux.SampleSize)
	}
}

func TestComputeTemporalBaselinesBucketsSumTo100(t *testing.T) {
	// A 10-month project puts each month's midpoint in its own decile.
	var history []model.EpicHours
	for i := 0; i < 10; i++ {
		history = append(history, model.EpicHours{
			ProjectKey: "P1", EpicKey: "E1", Team: "BE Dev",
			Month: month(2025, time.January).AddDate(0, i, 0),
			Hours: float64(10 * (i + 1)),
		})
	}
	svc := NewBaselineService(testBaselineOptions())

	out := svc.ComputeTemporalBaselines(history)

	if len(out) != 10 {
		t.Fatalf("expected 10 deciles for one team, got %d", len(out))
	}
	var sum float64
	for _, b := range out {
		if b.Team != "BE Dev" {
			t.Errorf("unexpected team %q", b.Team)
		}
		sum += b.WorkPct
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("work_pct sum = %v, want 100", sum)
	}

	if problems := ValidateTemporalCoverage(out); len(problems) != 0 {
		t.Errorf("unexpected coverage problems: %v", problems)
	}
}

func TestComputeTemporalBaselinesSingleMonthProject(t *testing.T) {
	// One-month projects collapse onto the midpoint decile.
	history := []model.EpicHours{
		{ProjectKey: "P1", EpicKey: "E1", Team: "UX", Month: month(2025, 3), Hours: 30},
	}
	svc := NewBaselineService(testBaselineOptions())

	out := svc.ComputeTemporalBaselines(history)

	var midpoint model.TemporalPatternBaseline
	for _, b := range out {
		if b.WorkPct > 0 {
			midpoint = b
		}
	}
	if midpoint.TimelineStartPct != 50 {
		t.Errorf("single-month hours should land at the 50%% decile, got %d", midpoint.TimelineStartPct)
	}
	if midpoint.WorkPct != 100 {
		t.Errorf("work_pct = %v, want 100", midpoint.WorkPct)
	}
}

func TestValidateTemporalCoverageDetectsGap(t *testing.T) {
	broken := []model.TemporalPatternBaseline{
		{Team: "UX", TimelineStartPct: 0, TimelineEndPct: 10},
		{Team: "UX", TimelineStartPct: 20, TimelineEndPct: 30},
	}
	if problems := ValidateTemporalCoverage(broken); len(problems) == 0 {
		t.Error("expected a coverage problem for a bucket gap")
	}
}

func TestVarianceLevelThresholds(t *testing.T) {
	svc := NewBaselineService(testBaselineOptions())

	tests := []struct {
		cov  float64
		want model.VarianceLevel
	}{
		{0.0, model.VarianceLow},
		{0.29, model.VarianceLow},
		{0.3, model.VarianceMedium},
		{0.75, model.VarianceMedium},
		{0.76, model.VarianceHigh},
	}
	for _, tt := range tests {
		if got := svc.varianceLevel(tt.cov); got != tt.want {
			t.Errorf("varianceLevel(%v) = %v, want %v", tt.cov, got, tt.want)
		}
	}
}

func TestHourBaselineOrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	svc := NewBaselineService(testBaselineOptions())

	properties.Property("min <= median <= max and min <= mean <= max", prop.ForAll(
		func(hours []float64) bool {
			var history []model.EpicHours
			for i, h := range hours {
				history = append(history, model.EpicHours{
					ProjectKey: "P1",
					EpicKey:    "E" + string(rune('A'+i%26)) + string(rune('A'+i/26)),
					Team:       "BE Dev",
					Month:      month(2025, 1),
					Hours:      h,
				})
			}
			resolve := func(string, string) (model.Category, bool) { return model.CategoryBEDev, true }

			out := svc.ComputeHourBaselines(history, resolve)
			b, ok := out[model.CategoryBEDev]
			if !ok {
				return len(hours) == 0
			}
			return b.MinHours <= b.MedianHours && b.MedianHours <= b.MaxHours &&
				b.MinHours <= b.MeanHours && b.MeanHours <= b.MaxHours
		},
		gen.SliceOfN(8, gen.Float64Range(0, 5000)),
	))

	properties.Property("variance_level deterministic in CoV", prop.ForAll(
		func(cov float64) bool {
			return svc.varianceLevel(cov) == svc.varianceLevel(cov)
		},
		gen.Float64Range(0, 3),
	))

	properties.TestingRun(t)
}

func TestTemporalCoverageProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)
	svc := NewBaselineService(testBaselineOptions())

	properties.Property("buckets are contiguous and end at 100 for every team", prop.ForAll(
		func(monthsCount int, hours []float64) bool {
			var history []model.EpicHours
			for i, h := range hours {
				history = append(history, model.EpicHours{
					ProjectKey: "P1",
					EpicKey:    "E1",
					Team:       "FE Dev",
					Month:      month(2025, 1).AddDate(0, i%monthsCount, 0),
					Hours:      h,
				})
			}

			out := svc.ComputeTemporalBaselines(history)
			return len(ValidateTemporalCoverage(out)) == 0
		},
		gen.IntRange(1, 12),
		gen.SliceOfN(6, gen.Float64Range(1, 200)),
	))

	properties.TestingRun(t)
}
