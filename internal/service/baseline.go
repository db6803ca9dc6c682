package service

import (
	"sort"
	"strconv"

	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// Temporal buckets are fixed deciles shared by every team.
const temporalBucketWidth = 10

// CategoryResolver resolves an epic to its taxonomy category. The second
// return is false for epics that could not be resolved; those rows are
// skipped by the learners and surfaced via the unmapped-epics listing.
type CategoryResolver func(epicKey, epicSummary string) (model.Category, bool)

// BaselineService computes the three learned baseline sets as pure
// functions over the full historical snapshot. Recomputation is
// wholesale and idempotent: same input, same output.
type BaselineService struct {
	opts config.BaselineOptions
}

// NewBaselineService creates a new baseline service
func NewBaselineService(opts config.BaselineOptions) *BaselineService {
	return &BaselineService{opts: opts}
}

type occurrenceKey struct {
	projectKey string
	epicKey    string
}

// ComputeHourBaselines aggregates per-category total hours across
// (project, epic) occurrences into distributional statistics.
func (s *BaselineService) ComputeHourBaselines(history []model.EpicHours, resolve CategoryResolver) map[model.Category]model.EpicBaseline {
	totals := make(map[occurrenceKey]float64)
	summaries := make(map[occurrenceKey]string)
	for _, h := range history {
		key := occurrenceKey{h.ProjectKey, h.EpicKey}
		totals[key] += h.Hours
		if summaries[key] == "" {
			summaries[key] = h.EpicSummary
		}
	}

	type sample struct {
		projectKey string
		hours      float64
	}
	byCategory := make(map[model.Category][]sample)
	for key, hours := range totals {
		cat, ok := resolve(key.epicKey, summaries[key])
		if !ok {
			continue
		}
		byCategory[cat] = append(byCategory[cat], sample{key.projectKey, hours})
	}

	out := make(map[model.Category]model.EpicBaseline, len(byCategory))
	for cat, samples := range byCategory {
		values := make([]float64, len(samples))
		projects := make(map[string]bool)
		for i, sm := range samples {
			values[i] = sm.hours
			projects[sm.projectKey] = true
		}
		sort.Float64s(values)

		m := mean(values)
		sd := stdDev(values, m)
		cov := 0.0
		if m > 0 {
			cov = sd / m
		}

		out[cat] = model.EpicBaseline{
			Category:               cat,
			MedianHours:            percentile(values, 50),
			MeanHours:              m,
			P75Hours:               percentile(values, 75),
			P90Hours:               percentile(values, 90),
			MinHours:               values[0],
			MaxHours:               values[len(values)-1],
			ProjectCount:           len(projects),
			OccurrenceCount:        len(values),
			CoefficientOfVariation: cov,
			VarianceLevel:          s.varianceLevel(cov),
			LowSample:              len(values) < s.opts.MinSampleSize,
		}
	}
	return out
}

// varianceLevel is a pure function of the coefficient of variation under
// the configured thresholds.
func (s *BaselineService) varianceLevel(cov float64) model.VarianceLevel {
	switch {
	case cov < s.opts.CoVLowThreshold:
		return model.VarianceLow
	case cov > s.opts.CoVHighThreshold:
		return model.VarianceHigh
	default:
		return model.VarianceMedium
	}
}

// ComputeAllocationBaselines aggregates, per category, the percentage of
// each project's total hours that category consumed. Projects with zero
// total hours are skipped (undefined percentage), not fatal to the run.
func (s *BaselineService) ComputeAllocationBaselines(history []model.EpicHours, resolve CategoryResolver) map[model.Category]model.EpicAllocationBaseline {
	log := logger.Global()

	projectTotals := make(map[string]float64)
	projectCatTotals := make(map[string]map[model.Category]float64)
	summaries := make(map[occurrenceKey]string)
	for _, h := range history {
		key := occurrenceKey{h.ProjectKey, h.EpicKey}
		if summaries[key] == "" {
			summaries[key] = h.EpicSummary
		}
	}
	for _, h := range history {
		cat, ok := resolve(h.EpicKey, summaries[occurrenceKey{h.ProjectKey, h.EpicKey}])
		if !ok {
			continue
		}
		projectTotals[h.ProjectKey] += h.Hours
		if projectCatTotals[h.ProjectKey] == nil {
			projectCatTotals[h.ProjectKey] = make(map[model.Category]float64)
		}
		projectCatTotals[h.ProjectKey][cat] += h.Hours
	}

	pctSamples := make(map[model.Category][]float64)
	for projectKey, total := range projectTotals {
		if total == 0 {
			log.Warn().Str("project_key", projectKey).
				Msg("Project has zero total hours, skipped in allocation baseline")
			continue
		}
		for cat, catHours := range projectCatTotals[projectKey] {
			pctSamples[cat] = append(pctSamples[cat], catHours/total*100)
		}
	}

	out := make(map[model.Category]model.EpicAllocationBaseline, len(pctSamples))
	for cat, pcts := range pctSamples {
		sort.Float64s(pcts)
		m := mean(pcts)
		out[cat] = model.EpicAllocationBaseline{
			Category:         cat,
			MinAllocationPct: pcts[0],
			MaxAllocationPct: pcts[len(pcts)-1],
			AvgAllocationPct: m,
			StdDev:           stdDev(pcts, m),
			SampleSize:       len(pcts),
		}
	}
	return out
}

// ComputeTemporalBaselines learns, per team, how that team's hours
// distribute across a normalized 0-100% project timeline, bucketed into
// fixed deciles shared by all teams.
func (s *BaselineService) ComputeTemporalBaselines(history []model.EpicHours) []model.TemporalPatternBaseline {
	const bucketCount = 100 / temporalBucketWidth

	// Project timeline boundaries in calendar months.
	type span struct{ first, last int }
	spans := make(map[string]span)
	for _, h := range history {
		idx := monthIndex(h.Month)
		sp, seen := spans[h.ProjectKey]
		if !seen {
			spans[h.ProjectKey] = span{idx, idx}
			continue
		}
		if idx < sp.first {
			sp.first = idx
		}
		if idx > sp.last {
			sp.last = idx
		}
		spans[h.ProjectKey] = sp
	}

	// Per (project, team): hours per bucket and team total.
	type projectTeam struct {
		projectKey string
		team       string
	}
	bucketHours := make(map[projectTeam][bucketCount]float64)
	teamTotals := make(map[projectTeam]float64)
	for _, h := range history {
		if h.Hours == 0 {
			continue
		}
		sp := spans[h.ProjectKey]
		duration := sp.last - sp.first + 1

		// The month's midpoint position on the 0-100% timeline.
		pos := (float64(monthIndex(h.Month)-sp.first) + 0.5) / float64(duration) * 100
		bucket := int(pos) / temporalBucketWidth
		if bucket >= bucketCount {
			bucket = bucketCount - 1
		}

		key := projectTeam{h.ProjectKey, h.Team}
		buckets := bucketHours[key]
		buckets[bucket] += h.Hours
		bucketHours[key] = buckets
		teamTotals[key] += h.Hours
	}

	// Average each bucket's share across contributing projects.
	sums := make(map[string][bucketCount]float64)
	counts := make(map[string]int)
	for key, buckets := range bucketHours {
		total := teamTotals[key]
		if total == 0 {
			continue
		}
		acc := sums[key.team]
		for i := range buckets {
			acc[i] += buckets[i] / total * 100
		}
		sums[key.team] = acc
		counts[key.team]++
	}

	teams := make([]string, 0, len(sums))
	for team := range sums {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	var out []model.TemporalPatternBaseline
	for _, team := range teams {
		acc := sums[team]
		n := float64(counts[team])

		// Normalize so a team's buckets sum to exactly 100.
		var sum float64
		for i := range acc {
			acc[i] /= n
			sum += acc[i]
		}
		if sum > 0 {
			for i := range acc {
				acc[i] = acc[i] / sum * 100
			}
		}

		for i := 0; i < bucketCount; i++ {
			out = append(out, model.TemporalPatternBaseline{
				TimelineStartPct: i * temporalBucketWidth,
				TimelineEndPct:   (i + 1) * temporalBucketWidth,
				Team:             team,
				WorkPct:          acc[i],
				SampleSize:       counts[team],
			})
		}
	}
	return out
}

// ValidateTemporalCoverage checks that each team's buckets are contiguous
// and non-overlapping across [0,100]. Violations are data-quality
// warnings for the recompute run, not fatal errors.
func ValidateTemporalCoverage(baselines []model.TemporalPatternBaseline) []string {
	byTeam := make(map[string][]model.TemporalPatternBaseline)
	for _, b := range baselines {
		byTeam[b.Team] = append(byTeam[b.Team], b)
	}

	var problems []string
	for team, buckets := range byTeam {
		sort.Slice(buckets, func(i, j int) bool {
			return buckets[i].TimelineStartPct < buckets[j].TimelineStartPct
		})
		expected := 0
		for _, b := range buckets {
			if b.TimelineStartPct != expected {
				problems = append(problems, team+": bucket coverage gap or overlap at "+strconv.Itoa(b.TimelineStartPct))
				break
			}
			expected = b.TimelineEndPct
		}
		if expected != 100 && len(buckets) > 0 {
			problems = append(problems, team+": bucket coverage ends at "+strconv.Itoa(expected))
		}
	}
	return problems
}

