package classifier

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

func TestTFIDFClassifyObviousSummaries(t *testing.T) {
	p := NewTFIDFProvider(nil)

	tests := []struct {
		summary string
		want    model.Category
	}{
		{"Build react component library for the checkout page ui", model.CategoryFEDev},
		{"New api endpoint and database migration for the billing service", model.CategoryBEDev},
		{"Usability testing and user interviews for onboarding", model.CategoryUX},
		{"Visual mockups, typography and style guide refresh", model.CategoryDesign},
		{"Stakeholder status reporting and roadmap planning", model.CategoryProjectOversight},
	}
	for _, tt := range tests {
		result, err := p.Classify(context.Background(), tt.summary)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tt.summary, err)
		}
		if result.Category != tt.want {
			t.Errorf("Classify(%q) = %v (%.3f), want %v", tt.summary, result.Category, result.Confidence, tt.want)
		}
	}
}

func TestTFIDFNoTokenOverlapYieldsNoCategory(t *testing.T) {
	p := NewTFIDFProvider(nil)

	result, err := p.Classify(context.Background(), "zzz qqq xxx")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Category != "" || result.Confidence != 0 {
		t.Errorf("unmatched summary should score nothing, got %v (%.3f)", result.Category, result.Confidence)
	}
}

func TestTFIDFHonorsContextCancellation(t *testing.T) {
	p := NewTFIDFProvider(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Classify(ctx, "react component"); err == nil {
		t.Error("expected a context error after cancellation")
	}
}

func TestTFIDFAddExampleShiftsClassification(t *testing.T) {
	p := NewTFIDFProvider(nil)

	// A made-up product term the seed corpora know nothing about.
	before, err := p.Classify(context.Background(), "flibberwidget rollout")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if before.Category != "" {
		t.Fatalf("expected no match before teaching, got %v", before.Category)
	}

	p.AddExample(model.CategoryBEDev, "flibberwidget rollout across the fleet")

	after, err := p.Classify(context.Background(), "flibberwidget rollout")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if after.Category != model.CategoryBEDev {
		t.Errorf("after teaching, Classify = %v, want %v", after.Category, model.CategoryBEDev)
	}
}

func TestTFIDFLearnedMappingsSeedTheIndex(t *testing.T) {
	learned := []model.EpicBaselineMapping{
		{EpicSummary: "glorbnak tuning pass", BaselineCategory: model.CategoryDesign},
		{EpicSummary: "ignored invalid mapping", BaselineCategory: model.Category("Nonsense")},
	}
	p := NewTFIDFProvider(learned)

	result, err := p.Classify(context.Background(), "glorbnak tuning")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Category != model.CategoryDesign {
		t.Errorf("learned exemplar should classify as Design, got %v", result.Category)
	}
}

func TestTFIDFProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	p := NewTFIDFProvider(nil)

	properties.Property("confidence stays in [0,1] and category is taxonomy or empty", prop.ForAll(
		func(summary string) bool {
			result, err := p.Classify(context.Background(), summary)
			if err != nil {
				return false
			}
			if result.Confidence < 0 || result.Confidence > 1 {
				return false
			}
			return result.Category == "" || result.Category.Valid()
		},
		gen.AlphaString(),
	))

	properties.Property("classification is deterministic", prop.ForAll(
		func(summary string) bool {
			first, err1 := p.Classify(context.Background(), summary)
			second, err2 := p.Classify(context.Background(), summary)
			if err1 != nil || err2 != nil {
				return false
			}
			return first.Category == second.Category && first.Confidence == second.Confidence
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
