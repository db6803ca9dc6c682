package service

import (
	"math"
	"testing"
	"time"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"several", []float64{10, 20, 30}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mean(tt.values); got != tt.want {
				t.Errorf("mean(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	// Population std dev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := stdDev(values, mean(values)); math.Abs(got-2) > 1e-12 {
		t.Errorf("stdDev = %v, want 2", got)
	}

	if got := stdDev([]float64{7, 7, 7}, 7); got != 0 {
		t.Errorf("stdDev of constant series = %v, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{50, 25}, // interpolated between 20 and 30
		{75, 32.5},
		{100, 40},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := percentile([]float64{99}, 90); got != 99 {
		t.Errorf("single-element percentile = %v, want 99", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty percentile = %v, want 0", got)
	}
}

func TestMonthIndexCrossesYearBoundary(t *testing.T) {
	dec := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if monthIndex(jan)-monthIndex(dec) != 1 {
		t.Errorf("consecutive months across a year boundary should differ by 1, got %d",
			monthIndex(jan)-monthIndex(dec))
	}
}

func TestRoundTo(t *testing.T) {
	if got := roundTo(33.33333, 2); got != 33.33 {
		t.Errorf("roundTo = %v, want 33.33", got)
	}
	if got := roundTo(0.005, 2); got != 0.01 {
		t.Errorf("roundTo half-up = %v, want 0.01", got)
	}
	if got := roundTo(120.0, 0); got != 120 {
		t.Errorf("roundTo zero decimals = %v, want 120", got)
	}
}
