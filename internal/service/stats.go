package service

import (
	"math"
	"time"
)

// mean of a non-empty slice; 0 for an empty one.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation around m.
func stdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between the closest ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// monthIndex converts a date to an absolute calendar month count, so
// consecutive months differ by exactly one across year boundaries.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
