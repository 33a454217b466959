package metrics

import (
	"sort"

	"github.com/joescharf/board/internal/models"
)

// VelocityStats summarizes a completed-points series across sprints.
type VelocityStats struct {
	Avg         float64 `json:"avg"`
	Median      float64 `json:"median"`
	Last5Avg    float64 `json:"last5Avg"`
	Last5Median float64 `json:"last5Median"`

	// Forecast for the next sprint. Policy: the trailing-5 median, which
	// tracks recent pace while shrugging off one-off outlier sprints.
	Forecast float64 `json:"forecast"`
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func median(series []float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, series)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// tail returns the trailing n elements, or the whole series when shorter.
func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// ToVelocityStats folds a completed-points series into summary statistics.
// An empty series yields all zeros, never NaN.
func ToVelocityStats(series []float64) VelocityStats {
	last5 := tail(series, 5)
	stats := VelocityStats{
		Avg:         mean(series),
		Median:      median(series),
		Last5Avg:    mean(last5),
		Last5Median: median(last5),
	}
	stats.Forecast = stats.Last5Median
	return stats
}

// VelocitySeries builds the completed-points series feeding the stats: one
// value per completed sprint, ordered by start date ascending. Planned and
// active sprints never contribute.
func VelocitySeries(sprints []*models.Sprint, kpis map[string]SprintKPIs) []float64 {
	var completed []*models.Sprint
	for _, s := range sprints {
		if s.Status == models.SprintCompleted {
			completed = append(completed, s)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].StartDate.Before(completed[j].StartDate)
	})

	series := make([]float64, 0, len(completed))
	for _, s := range completed {
		series = append(series, kpis[s.ID].CompletedPoints)
	}
	return series
}
