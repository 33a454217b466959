// Package metrics derives sprint analytics from item snapshots and their
// changelogs. Everything here is a pure computation over data handed in by
// the caller: no store access, no locking, safe to run concurrently with
// any number of mutations.
package metrics

import (
	"math"
	"time"

	"github.com/joescharf/board/internal/history"
	"github.com/joescharf/board/internal/models"
)

// ChangeLogs maps item id to that item's changelog entries.
type ChangeLogs map[string][]models.ChangeEntry

// BurndownPoint is one day of a burndown series.
type BurndownPoint struct {
	Date   time.Time `json:"date"`
	Ideal  float64   `json:"ideal"`
	Actual float64   `json:"actual"`
}

// FlowPoint is one day of a cumulative flow diagram: story points per bucket.
type FlowPoint struct {
	Date       time.Time `json:"date"`
	Todo       float64   `json:"todo"`
	InProgress float64   `json:"inProgress"`
	Review     float64   `json:"review"`
	Done       float64   `json:"done"`
}

// SprintKPIs are the per-sprint outcome numbers.
type SprintKPIs struct {
	SprintID              string  `json:"sprintId"`
	SprintKey             string  `json:"sprintKey"`
	CommittedPoints       float64 `json:"committedPoints"`
	CompletedPoints       float64 `json:"completedPoints"`
	AddedPoints           float64 `json:"addedPoints"`
	RemovedPoints         float64 `json:"removedPoints"`
	SpilloverPoints       float64 `json:"spilloverPoints"`
	ThroughputItems       int     `json:"throughputItems"`
	CommitmentReliability float64 `json:"commitmentReliability"`
	CycleTimeDays         float64 `json:"cycleTimeDays"`
	LeadTimeDays          float64 `json:"leadTimeDays"`
}

// ItemFilter narrows the item set before KPI computation. Empty slices
// leave that dimension unfiltered.
type ItemFilter struct {
	AssigneeIDs []string
	Labels      []string
	EpicIDs     []string
}

// SprintFilter narrows sprint selection for rollups. Date bounds apply to
// the sprint's start date.
type SprintFilter struct {
	From   *time.Time
	To     *time.Time
	Status []models.SprintStatus
}

// Match reports whether the sprint passes the filter.
func (f SprintFilter) Match(s *models.Sprint) bool {
	if f.From != nil && s.StartDate.Before(*f.From) {
		return false
	}
	if f.To != nil && s.StartDate.After(*f.To) {
		return false
	}
	if len(f.Status) > 0 {
		ok := false
		for _, st := range f.Status {
			if s.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// FilterItems returns the items passing the filter.
func FilterItems(items []*models.WorkItem, f ItemFilter) []*models.WorkItem {
	if len(f.AssigneeIDs) == 0 && len(f.Labels) == 0 && len(f.EpicIDs) == 0 {
		return items
	}
	var out []*models.WorkItem
	for _, it := range items {
		if len(f.AssigneeIDs) > 0 && !contains(f.AssigneeIDs, it.Assignee) {
			continue
		}
		if len(f.EpicIDs) > 0 && !contains(f.EpicIDs, it.EpicID) {
			continue
		}
		if len(f.Labels) > 0 && !containsAny(it.Labels, f.Labels) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		if contains(haystack, n) {
			return true
		}
	}
	return false
}

// days returns the midnight-UTC instants of the sprint's inclusive day range.
func days(s *models.Sprint) []time.Time {
	start := s.StartDate.UTC().Truncate(24 * time.Hour)
	end := s.EndDate.UTC().Truncate(24 * time.Hour)
	var out []time.Time
	for d := start; !d.After(end); d = d.Add(24 * time.Hour) {
		out = append(out, d)
	}
	return out
}

func endOfDay(d time.Time) time.Time {
	return d.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
}

// windowEnd is the last instant of the sprint's final day.
func windowEnd(s *models.Sprint) time.Time {
	return endOfDay(s.EndDate.UTC())
}

// committedPoints sums story points over items that were members at the
// sprint's start instant.
func committedPoints(s *models.Sprint, items []*models.WorkItem, logs ChangeLogs) float64 {
	var total float64
	for _, it := range items {
		if history.WasMemberOfSprintAsOf(it, logs[it.ID], s.ID, s.StartDate) {
			total += it.StoryPoints
		}
	}
	return total
}

// scopeChange sums added and removed points from sprint-field entries
// strictly after the sprint start and on or before the cutoff.
func scopeChange(s *models.Sprint, items []*models.WorkItem, logs ChangeLogs, cutoff time.Time) (added, removed float64) {
	for _, it := range items {
		for _, e := range logs[it.ID] {
			if e.Field != models.FieldSprint {
				continue
			}
			if !e.At.After(s.StartDate) || e.At.After(cutoff) {
				continue
			}
			if e.NewValue == s.ID {
				added += it.StoryPoints
			}
			if e.OldValue == s.ID {
				removed += it.StoryPoints
			}
		}
	}
	return added, removed
}

// Burndown produces the per-day ideal and actual remaining points for the
// sprint. Ideal is the straight line from 100% of committed points down to
// zero; actual tracks completions and scope changes, floored at zero.
func Burndown(s *models.Sprint, items []*models.WorkItem, logs ChangeLogs) []BurndownPoint {
	dayRange := days(s)
	n := len(dayRange)
	committed := committedPoints(s, items, logs)
	end := windowEnd(s)

	points := make([]BurndownPoint, n)
	for i, d := range dayRange {
		ideal := committed
		if n > 1 {
			ideal = math.Round(committed * (1 - float64(i)/float64(n-1)))
		}

		cutoff := endOfDay(d)
		var completed float64
		for _, it := range items {
			if !history.WasMemberOfSprintAsOf(it, logs[it.ID], s.ID, cutoff) {
				continue
			}
			if at, ok := history.CompletedAt(logs[it.ID], s.StartDate, end); ok && !at.After(cutoff) {
				completed += it.StoryPoints
			}
		}
		added, removed := scopeChange(s, items, logs, cutoff)

		actual := committed - completed + added - removed
		if actual < 0 {
			actual = 0
		}
		points[i] = BurndownPoint{Date: d, Ideal: ideal, Actual: actual}
	}
	return points
}

// flowBucket maps any status string, including historical ones no longer in
// the live set, into the four CFD buckets.
func flowBucket(status string) string {
	switch status {
	case "backlog", "selected", "to-do", "todo":
		return "todo"
	case "in_progress", "in-progress":
		return "in_progress"
	case "review", "in-review", "in_review", "testing":
		return "review"
	case "done", "completed", "closed":
		return "done"
	default:
		return "todo"
	}
}

// CFD produces the cumulative flow diagram: for each sprint day, the story
// points of that day's members distributed across the status buckets. The
// bucket totals for a day always sum to the points of that day's members.
func CFD(s *models.Sprint, items []*models.WorkItem, logs ChangeLogs) []FlowPoint {
	dayRange := days(s)
	points := make([]FlowPoint, len(dayRange))

	for i, d := range dayRange {
		cutoff := endOfDay(d)
		p := FlowPoint{Date: d}
		for _, it := range items {
			if !history.WasMemberOfSprintAsOf(it, logs[it.ID], s.ID, cutoff) {
				continue
			}
			status := history.StatusAsOf(it, logs[it.ID], cutoff)
			switch flowBucket(string(status)) {
			case "todo":
				p.Todo += it.StoryPoints
			case "in_progress":
				p.InProgress += it.StoryPoints
			case "review":
				p.Review += it.StoryPoints
			case "done":
				p.Done += it.StoryPoints
			}
		}
		points[i] = p
	}
	return points
}

// KPIs computes the sprint's outcome numbers over the given item set.
// Callers narrow the item set with FilterItems beforehand when assignee,
// label, or epic filters are in play.
func KPIs(s *models.Sprint, items []*models.WorkItem, logs ChangeLogs) SprintKPIs {
	end := windowEnd(s)
	out := SprintKPIs{SprintID: s.ID, SprintKey: s.Key}

	var cycleSum, leadSum float64
	var cycleCount, leadCount int

	for _, it := range items {
		entries := logs[it.ID]
		member := history.WasMemberOfSprintAsOf(it, entries, s.ID, s.StartDate)
		if member {
			out.CommittedPoints += it.StoryPoints
		}

		doneAt, completed := history.CompletedAt(entries, s.StartDate, end)
		if completed {
			out.CompletedPoints += it.StoryPoints
			out.ThroughputItems++

			leadSum += doneAt.Sub(it.CreatedAt).Hours() / 24
			leadCount++

			if startedAt, ok := history.StartedAt(entries, s.StartDate, end); ok {
				cycleSum += doneAt.Sub(startedAt).Hours() / 24
				cycleCount++
			}
		} else if member {
			out.SpilloverPoints += it.StoryPoints
		}
	}

	out.AddedPoints, out.RemovedPoints = scopeChange(s, items, logs, end)

	if out.CommittedPoints > 0 {
		out.CommitmentReliability = out.CompletedPoints / out.CommittedPoints
	}
	if cycleCount > 0 {
		out.CycleTimeDays = cycleSum / float64(cycleCount)
	}
	if leadCount > 0 {
		out.LeadTimeDays = leadSum / float64(leadCount)
	}
	return out
}
