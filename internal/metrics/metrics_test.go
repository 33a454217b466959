package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC)
}

func at(d, hour int) time.Time {
	return time.Date(2026, 4, d, hour, 0, 0, 0, time.UTC)
}

func fiveDaySprint() *models.Sprint {
	return &models.Sprint{
		ID:        "sp1",
		Key:       "SPR-1",
		StartDate: day(6),
		EndDate:   day(10),
		Status:    models.SprintActive,
	}
}

// item returns a sprint member with points, assigned before sprint start.
func memberItem(id string, points float64) (*models.WorkItem, []models.ChangeEntry) {
	it := &models.WorkItem{
		ID:          id,
		SprintID:    "sp1",
		StoryPoints: points,
		Status:      models.StatusTodo,
		CreatedAt:   day(1),
	}
	log := []models.ChangeEntry{
		{ItemID: id, Field: models.FieldSprint, NewValue: "sp1", At: day(2)},
	}
	return it, log
}

func TestBurndown_IdealLine(t *testing.T) {
	s := fiveDaySprint()
	a, logA := memberItem("a", 12)
	b, logB := memberItem("b", 8)
	items := []*models.WorkItem{a, b}
	logs := ChangeLogs{"a": logA, "b": logB}

	points := Burndown(s, items, logs)
	require.Len(t, points, 5)

	// 20 committed points over 5 days: ideal 20,15,10,5,0; nothing done, so
	// actual stays flat.
	wantIdeal := []float64{20, 15, 10, 5, 0}
	for i, p := range points {
		assert.Equal(t, wantIdeal[i], p.Ideal, "ideal day %d", i)
		assert.Equal(t, 20.0, p.Actual, "actual day %d", i)
	}
}

func TestBurndown_SingleDaySprint(t *testing.T) {
	s := &models.Sprint{ID: "sp1", StartDate: day(6), EndDate: day(6)}
	a, logA := memberItem("a", 5)

	points := Burndown(s, []*models.WorkItem{a}, ChangeLogs{"a": logA})
	require.Len(t, points, 1)
	assert.Equal(t, 5.0, points[0].Ideal)
}

func TestBurndown_CompletionsAndScopeChange(t *testing.T) {
	s := fiveDaySprint()
	a, logA := memberItem("a", 8)
	b, logB := memberItem("b", 5)

	// a completes on day 7.
	logA = append(logA, models.ChangeEntry{
		ItemID: "a", Field: models.FieldStatus,
		OldValue: "in_progress", NewValue: "done", At: at(7, 15),
	})

	// c joins the sprint on day 8 with 3 points.
	c := &models.WorkItem{ID: "c", SprintID: "sp1", StoryPoints: 3, CreatedAt: day(1)}
	logC := []models.ChangeEntry{
		{ItemID: "c", Field: models.FieldSprint, NewValue: "sp1", At: at(8, 9)},
	}

	items := []*models.WorkItem{a, b, c}
	logs := ChangeLogs{"a": logA, "b": logB, "c": logC}

	points := Burndown(s, items, logs)
	require.Len(t, points, 5)

	assert.Equal(t, 13.0, points[0].Actual) // day 6: committed 13
	assert.Equal(t, 5.0, points[1].Actual)  // day 7: a done
	assert.Equal(t, 8.0, points[2].Actual)  // day 8: +3 scope
	assert.Equal(t, 8.0, points[4].Actual)
}

func TestBurndown_ActualNeverNegative(t *testing.T) {
	s := fiveDaySprint()
	a, logA := memberItem("a", 5)
	logA = append(logA, models.ChangeEntry{
		ItemID: "a", Field: models.FieldStatus, NewValue: "done", At: at(6, 10),
	})
	// a leaves the sprint on day 7: committed 5, completed 5, removed 5.
	logA = append(logA, models.ChangeEntry{
		ItemID: "a", Field: models.FieldSprint, OldValue: "sp1", NewValue: "", At: at(7, 10),
	})
	a.SprintID = ""

	points := Burndown(s, []*models.WorkItem{a}, ChangeLogs{"a": logA})
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Actual, 0.0)
	}
}

func TestCFD_Conservation(t *testing.T) {
	s := fiveDaySprint()
	a, logA := memberItem("a", 8)
	b, logB := memberItem("b", 5)
	c, logC := memberItem("c", 3)

	logA = append(logA,
		models.ChangeEntry{ItemID: "a", Field: models.FieldStatus, NewValue: "in_progress", At: at(6, 9)},
		models.ChangeEntry{ItemID: "a", Field: models.FieldStatus, NewValue: "done", At: at(9, 17)},
	)
	logB = append(logB,
		models.ChangeEntry{ItemID: "b", Field: models.FieldStatus, NewValue: "in_progress", At: at(8, 9)},
	)

	items := []*models.WorkItem{a, b, c}
	logs := ChangeLogs{"a": logA, "b": logB, "c": logC}

	points := CFD(s, items, logs)
	require.Len(t, points, 5)

	// Every day: bucket totals equal the member points, nothing lost or
	// double-counted.
	for i, p := range points {
		assert.Equal(t, 16.0, p.Todo+p.InProgress+p.Review+p.Done, "day %d", i)
	}

	assert.Equal(t, 8.0, points[0].InProgress) // a started day 6
	assert.Equal(t, 8.0, points[3].Done)       // a done day 9
	assert.Equal(t, 5.0, points[3].InProgress) // b in progress
	assert.Equal(t, 3.0, points[3].Todo)       // c untouched
}

func TestCFD_BucketMapping(t *testing.T) {
	assert.Equal(t, "todo", flowBucket("backlog"))
	assert.Equal(t, "todo", flowBucket("selected"))
	assert.Equal(t, "review", flowBucket("in-review"))
	assert.Equal(t, "review", flowBucket("testing"))
	assert.Equal(t, "done", flowBucket("closed"))
	assert.Equal(t, "in_progress", flowBucket("in_progress"))
	assert.Equal(t, "todo", flowBucket("something-unknown"))
}

func TestKPIs(t *testing.T) {
	s := fiveDaySprint()

	// a: committed, completed day 9 (in progress day 7).
	a, logA := memberItem("a", 8)
	logA = append(logA,
		models.ChangeEntry{ItemID: "a", Field: models.FieldStatus, NewValue: "in_progress", At: at(7, 9)},
		models.ChangeEntry{ItemID: "a", Field: models.FieldStatus, NewValue: "done", At: at(9, 9)},
	)

	// b: committed, never completed -> spillover.
	b, logB := memberItem("b", 5)

	// c: added mid-sprint, completed.
	c := &models.WorkItem{ID: "c", SprintID: "sp1", StoryPoints: 3, CreatedAt: day(5)}
	logC := []models.ChangeEntry{
		{ItemID: "c", Field: models.FieldSprint, NewValue: "sp1", At: at(7, 10)},
		{ItemID: "c", Field: models.FieldStatus, NewValue: "done", At: at(10, 10)},
	}

	items := []*models.WorkItem{a, b, c}
	logs := ChangeLogs{"a": logA, "b": logB, "c": logC}

	k := KPIs(s, items, logs)
	assert.Equal(t, 13.0, k.CommittedPoints)
	assert.Equal(t, 11.0, k.CompletedPoints)
	assert.Equal(t, 5.0, k.SpilloverPoints)
	assert.Equal(t, 3.0, k.AddedPoints)
	assert.Equal(t, 0.0, k.RemovedPoints)
	assert.Equal(t, 2, k.ThroughputItems)
	assert.InDelta(t, 11.0/13.0, k.CommitmentReliability, 1e-9)

	// Cycle time: only a has both transitions inside the window: 2 days.
	assert.InDelta(t, 2.0, k.CycleTimeDays, 1e-9)

	// Lead time: a created day 1, done day 9 (8.375d); c created day 5,
	// done day 10 (5.417d).
	wantLead := (at(9, 9).Sub(day(1)).Hours()/24 + at(10, 10).Sub(day(5)).Hours()/24) / 2
	assert.InDelta(t, wantLead, k.LeadTimeDays, 1e-9)
}

func TestKPIs_ZeroCommitted(t *testing.T) {
	s := fiveDaySprint()
	k := KPIs(s, nil, nil)
	assert.Equal(t, 0.0, k.CommittedPoints)
	assert.Equal(t, 0.0, k.CommitmentReliability, "must be 0, not NaN")
}

func TestKPIs_RemovedScope(t *testing.T) {
	s := fiveDaySprint()
	a, logA := memberItem("a", 8)
	logA = append(logA, models.ChangeEntry{
		ItemID: "a", Field: models.FieldSprint, OldValue: "sp1", NewValue: "", At: at(8, 12),
	})
	a.SprintID = ""

	k := KPIs(s, []*models.WorkItem{a}, ChangeLogs{"a": logA})
	assert.Equal(t, 8.0, k.CommittedPoints)
	assert.Equal(t, 8.0, k.RemovedPoints)
}

func TestFilterItems(t *testing.T) {
	items := []*models.WorkItem{
		{ID: "a", Assignee: "u1", Labels: []string{"backend"}, EpicID: "e1"},
		{ID: "b", Assignee: "u2", Labels: []string{"frontend"}, EpicID: "e1"},
		{ID: "c", Assignee: "u1", Labels: []string{"backend", "infra"}, EpicID: "e2"},
	}

	assert.Len(t, FilterItems(items, ItemFilter{}), 3)

	got := FilterItems(items, ItemFilter{AssigneeIDs: []string{"u1"}})
	require.Len(t, got, 2)

	got = FilterItems(items, ItemFilter{Labels: []string{"infra"}})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	got = FilterItems(items, ItemFilter{EpicIDs: []string{"e1"}, AssigneeIDs: []string{"u2"}})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSprintFilterMatch(t *testing.T) {
	s := fiveDaySprint()

	assert.True(t, SprintFilter{}.Match(s))

	from := day(7)
	assert.False(t, SprintFilter{From: &from}.Match(s))
	from = day(5)
	assert.True(t, SprintFilter{From: &from}.Match(s))

	to := day(5)
	assert.False(t, SprintFilter{To: &to}.Match(s))

	assert.True(t, SprintFilter{Status: []models.SprintStatus{models.SprintActive}}.Match(s))
	assert.False(t, SprintFilter{Status: []models.SprintStatus{models.SprintCompleted}}.Match(s))
}
