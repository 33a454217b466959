package board

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/history"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func mustProject(t *testing.T, e *Engine) *models.Project {
	t.Helper()
	p, err := e.CreateProject(context.Background(), "PROJ", "Test Project", "")
	require.NoError(t, err)
	return p
}

func mustItem(t *testing.T, e *Engine, p CreateItemParams) *models.WorkItem {
	t.Helper()
	it, err := e.CreateItem(context.Background(), p)
	require.NoError(t, err)
	return it
}

// --- Projects & sprints ---

func TestCreateProject_KeyValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, bad := range []string{"", "p", "proj", "1ABC", "WAY-TOO-LONG-KEY"} {
		_, err := e.CreateProject(ctx, bad, "name", "")
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "key %q", bad)
	}

	p, err := e.CreateProject(ctx, "AB2", "ok", "")
	require.NoError(t, err)
	assert.Equal(t, "AB2", p.Key)
}

func TestSprintLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC)

	_, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "", end, start)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve, "end before start")

	sp, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "ship", start, end)
	require.NoError(t, err)
	assert.Equal(t, models.SprintPlanned, sp.Status)

	// Completing a planned sprint is a conflict.
	_, err = e.CompleteSprint(ctx, sp.ID)
	var ce *ConflictError
	assert.ErrorAs(t, err, &ce)

	sp, err = e.StartSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintActive, sp.Status)

	sp, err = e.CompleteSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintCompleted, sp.Status)
}

// --- Item creation ---

func TestCreateItem_DefaultsAndKey(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "first", ActorID: "alice"})
	assert.Equal(t, "PROJ-1", it.Key)
	assert.Equal(t, models.TypeTask, it.Type)
	assert.Equal(t, models.StatusBacklog, it.Status)
	assert.Equal(t, models.PriorityMedium, it.Priority)
	assert.Equal(t, models.ResolutionUnresolved, it.Resolution)
	assert.NotEmpty(t, it.Rank)

	// Creation writes a baseline status entry for the reconstructor.
	changes, err := s.ListChanges(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.FieldStatus, changes[0].Field)
	assert.Equal(t, "", changes[0].OldValue)
	assert.Equal(t, string(models.StatusBacklog), changes[0].NewValue)
	assert.Equal(t, "created", changes[0].Meta["event"])
}

func TestCreateItem_RanksAppendToColumnTail(t *testing.T) {
	e, _ := newTestEngine(t)
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	b := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "b"})
	c := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "c"})

	assert.Less(t, a.Rank, b.Rank)
	assert.Less(t, b.Rank, c.Rank)
}

func TestCreateItem_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	var ve *ValidationError

	_, err := e.CreateItem(ctx, CreateItemParams{ProjectID: p.ID})
	assert.ErrorAs(t, err, &ve, "missing title")

	_, err = e.CreateItem(ctx, CreateItemParams{ProjectID: p.ID, Title: "x", Type: "chore"})
	assert.ErrorAs(t, err, &ve, "unknown type")

	_, err = e.CreateItem(ctx, CreateItemParams{ProjectID: p.ID, Title: "x", Status: "parked"})
	assert.ErrorAs(t, err, &ve, "unknown status")
}

func TestCreateItem_EpicValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	task := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a task"})
	epic := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "an epic", Type: models.TypeEpic})

	var ve *ValidationError

	// Epic reference must point at an actual epic.
	_, err := e.CreateItem(ctx, CreateItemParams{ProjectID: p.ID, Title: "x", EpicID: task.ID})
	assert.ErrorAs(t, err, &ve)

	// Epics cannot nest under epics.
	_, err = e.CreateItem(ctx, CreateItemParams{ProjectID: p.ID, Title: "x", Type: models.TypeEpic, EpicID: epic.ID})
	assert.ErrorAs(t, err, &ve)

	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "story", Type: models.TypeStory, EpicID: epic.ID})
	assert.Equal(t, epic.ID, it.EpicID)
}

func TestCreateItem_InSprintWritesMembershipEntry(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	sp, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "",
		time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "committed", SprintID: sp.ID})

	changes, err := s.ListChanges(ctx, it.ID)
	require.NoError(t, err)

	var sprintEntries []models.ChangeEntry
	for _, c := range changes {
		if c.Field == models.FieldSprint {
			sprintEntries = append(sprintEntries, c)
		}
	}
	require.Len(t, sprintEntries, 1)
	assert.Equal(t, sp.ID, sprintEntries[0].NewValue)

	// The entry commits with the item, so the reconstructor can place the
	// membership in time: not a member before the create, a member after.
	fresh, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.False(t, history.WasMemberOfSprintAsOf(fresh, changes, sp.ID, it.CreatedAt.Add(-time.Hour)))
	assert.True(t, history.WasMemberOfSprintAsOf(fresh, changes, sp.ID, it.CreatedAt.Add(time.Hour)))
}

func TestCreateItem_ConcurrentCreatesGetDistinctRanks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	items := make([]*models.WorkItem, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items[i], errs[i] = e.CreateItem(ctx, CreateItemParams{
				ProjectID: p.ID,
				Title:     fmt.Sprintf("item %d", i),
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]string)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotEmpty(t, items[i].Rank)
		if other, dup := seen[items[i].Rank]; dup {
			t.Fatalf("rank %q assigned to both %s and %s", items[i].Rank, other, items[i].Key)
		}
		seen[items[i].Rank] = items[i].Key
	}
}

// --- Moves & transitions ---

func TestMoveItem_ReordersWithinColumn(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	b := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "b"})
	c := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "c"})

	// Move c between a and b.
	moved, err := e.MoveItem(ctx, c.ID, MoveParams{AfterID: a.ID, BeforeID: b.ID})
	require.NoError(t, err)
	assert.Greater(t, moved.Rank, a.Rank)
	assert.Less(t, moved.Rank, b.Rank)

	items, err := s.ListItems(ctx, store.ItemListFilter{ProjectID: p.ID, Status: models.StatusBacklog})
	require.NoError(t, err)
	var titles []string
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"a", "c", "b"}, titles)
}

func TestMoveItem_StatusChangeWritesEntriesAndResolution(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "work"})

	moved, err := e.MoveItem(ctx, it.ID, MoveParams{Status: models.StatusDone, ActorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, moved.Status)
	assert.Equal(t, models.ResolutionDone, moved.Resolution)
	require.NotNil(t, moved.ResolutionDate)

	changes, err := s.ListChanges(ctx, it.ID)
	require.NoError(t, err)

	fields := map[string]int{}
	for _, c := range changes {
		fields[c.Field]++
	}
	assert.Equal(t, 2, fields[models.FieldStatus], "creation + transition")
	assert.Equal(t, 1, fields[models.FieldRank])

	// Leaving done clears the resolution.
	back, err := e.MoveItem(ctx, it.ID, MoveParams{Status: models.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionUnresolved, back.Resolution)
	assert.Nil(t, back.ResolutionDate)
}

func TestMoveItem_ExplicitResolutionSurvivesDone(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "dupe"})

	it.Resolution = models.ResolutionDuplicate
	require.NoError(t, s.UpdateItemsWithLog(ctx, []*models.WorkItem{it}, nil))

	moved, err := e.MoveItem(ctx, it.ID, MoveParams{Status: models.StatusDone})
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionDuplicate, moved.Resolution)
	require.NotNil(t, moved.ResolutionDate)
}

func TestMoveItem_NeighborMustBeInTargetColumn(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	done := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "done", Status: models.StatusDone})

	var ve *ValidationError
	_, err := e.MoveItem(ctx, a.ID, MoveParams{Status: models.StatusBacklog, AfterID: done.ID})
	assert.ErrorAs(t, err, &ve)

	_, err = e.MoveItem(ctx, a.ID, MoveParams{AfterID: a.ID})
	assert.ErrorAs(t, err, &ve, "self neighbor")
}

func TestMoveItem_RebalancesWhenGapExhausts(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	last := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "b"})

	// Keep halving the gap right after a. Every insert must succeed; the
	// engine rebalances under the hood when a gap runs out.
	for i := 0; i < 200; i++ {
		it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "filler"})
		_, err := e.MoveItem(ctx, it.ID, MoveParams{AfterID: a.ID, BeforeID: last.ID})
		require.NoError(t, err)
		last = it
	}

	ranks, err := s.ColumnRanks(ctx, p.ID, models.StatusBacklog)
	require.NoError(t, err)
	assert.True(t, sort.StringsAreSorted(ranks))
	for i := 1; i < len(ranks); i++ {
		assert.NotEqual(t, ranks[i-1], ranks[i], "ranks must stay unique")
	}
}

func TestTransitionStatus_SameStatusIsNoOp(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "idle"})

	got, err := e.TransitionStatus(ctx, it.ID, models.StatusBacklog, "alice")
	require.NoError(t, err)
	assert.Equal(t, it.Rank, got.Rank)

	changes, err := s.ListChanges(ctx, it.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 1, "only the creation entry")
}

// --- Review gate ---

func TestDoneGate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "gated"})

	r, err := e.RequestReview(ctx, it.ID, "author", []string{"u1", "u2"}, 2, nil)
	require.NoError(t, err)

	_, err = e.TransitionStatus(ctx, it.ID, models.StatusDone, "author")
	var gbe *GateBlockedError
	require.ErrorAs(t, err, &gbe)
	assert.Equal(t, 1, gbe.Pending)
	assert.Equal(t, 0, gbe.ChangesRequested)

	_, err = e.ApproveReview(ctx, r.ID, "u1", "lgtm")
	require.NoError(t, err)
	_, err = e.RequestReviewChanges(ctx, r.ID, "u2", "not yet")
	require.NoError(t, err)

	_, err = e.TransitionStatus(ctx, it.ID, models.StatusDone, "author")
	require.ErrorAs(t, err, &gbe)
	assert.Equal(t, 0, gbe.Pending)
	assert.Equal(t, 1, gbe.ChangesRequested)

	// Second approval clears the gate.
	_, err = e.ApproveReview(ctx, r.ID, "u2", "better")
	require.NoError(t, err)

	moved, err := e.TransitionStatus(ctx, it.ID, models.StatusDone, "author")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, moved.Status)
}

func TestDoneGate_CancelledReviewDoesNotBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "gated"})

	r, err := e.RequestReview(ctx, it.ID, "author", []string{"u1"}, 1, nil)
	require.NoError(t, err)
	_, err = e.CancelReview(ctx, r.ID, "author")
	require.NoError(t, err)

	_, err = e.TransitionStatus(ctx, it.ID, models.StatusDone, "author")
	assert.NoError(t, err)
}

func TestRequestReview_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "x"})

	var ve *ValidationError

	_, err := e.RequestReview(ctx, it.ID, "author", nil, 1, nil)
	assert.ErrorAs(t, err, &ve, "no reviewers")

	_, err = e.RequestReview(ctx, it.ID, "author", []string{"u1"}, 3, nil)
	assert.ErrorAs(t, err, &ve, "more approvals than reviewers")

	_, err = e.RequestReview(ctx, it.ID, "author", []string{"u1", "u1"}, 1, nil)
	assert.ErrorAs(t, err, &ve, "duplicate reviewer")

	r, err := e.RequestReview(ctx, it.ID, "author", []string{"u1"}, 0, []string{"tests pass"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.RequiredApprovals, "defaults to 1")
	require.Len(t, r.Checklist, 1)
}

// --- Hierarchy ---

func TestSetEpic(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	epic := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "big", Type: models.TypeEpic})
	task := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "small"})

	got, err := e.SetEpic(ctx, task.ID, epic.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, epic.ID, got.EpicID)

	changes, err := s.ListChanges(ctx, task.ID)
	require.NoError(t, err)
	var epicChanges int
	for _, c := range changes {
		if c.Field == models.FieldEpic {
			epicChanges++
		}
	}
	assert.Equal(t, 1, epicChanges)

	// Clearing works and an epic can never get an epic.
	got, err = e.SetEpic(ctx, task.ID, "", "alice")
	require.NoError(t, err)
	assert.Empty(t, got.EpicID)

	var ve *ValidationError
	_, err = e.SetEpic(ctx, epic.ID, epic.ID, "alice")
	assert.ErrorAs(t, err, &ve)
}

func TestSetParent_RejectsCycles(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	b := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "b"})
	c := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "c"})

	_, err := e.SetParent(ctx, b.ID, a.ID, "")
	require.NoError(t, err)
	_, err = e.SetParent(ctx, c.ID, b.ID, "")
	require.NoError(t, err)

	var ce *ConflictError
	_, err = e.SetParent(ctx, a.ID, c.ID, "")
	assert.ErrorAs(t, err, &ce, "a -> b -> c -> a")

	_, err = e.SetParent(ctx, a.ID, a.ID, "")
	assert.ErrorAs(t, err, &ce, "self parent")
}

func TestSetParent_RejectsDeepHierarchy(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	// Build a chain of 12 items.
	items := make([]*models.WorkItem, 12)
	for i := range items {
		items[i] = mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "chain"})
		if i > 0 {
			_, err := e.SetParent(ctx, items[i].ID, items[i-1].ID, "")
			require.NoError(t, err)
		}
	}

	extra := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "too deep"})
	var ve *ValidationError
	_, err := e.SetParent(ctx, extra.ID, items[len(items)-1].ID, "")
	assert.ErrorAs(t, err, &ve)
}

func TestSetParent_RejectsEpicParent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	epic := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "big", Type: models.TypeEpic})
	task := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "small"})

	var ve *ValidationError
	_, err := e.SetParent(ctx, task.ID, epic.ID, "")
	assert.ErrorAs(t, err, &ve)
}

// --- Links ---

func TestLinks_Symmetric(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	a := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "a"})
	b := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "b"})

	require.NoError(t, e.AddLink(ctx, a.ID, b.ID, "alice"))

	gotA, err := s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := s.GetItem(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, gotA.Links, b.ID)
	assert.Contains(t, gotB.Links, a.ID)

	var ce *ConflictError
	assert.ErrorAs(t, e.AddLink(ctx, a.ID, b.ID, "alice"), &ce, "duplicate link")
	assert.ErrorAs(t, e.AddLink(ctx, b.ID, a.ID, "alice"), &ce, "duplicate from the other side")

	require.NoError(t, e.RemoveLink(ctx, b.ID, a.ID, "alice"))
	gotA, err = s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	gotB, err = s.GetItem(ctx, b.ID)
	require.NoError(t, err)
	assert.NotContains(t, gotA.Links, b.ID)
	assert.NotContains(t, gotB.Links, a.ID)

	assert.ErrorAs(t, e.RemoveLink(ctx, a.ID, b.ID, "alice"), &ce, "not linked")

	var ve *ValidationError
	assert.ErrorAs(t, e.AddLink(ctx, a.ID, a.ID, "alice"), &ve, "self link")
}

// --- Sprint assignment ---

func TestAssignSprint(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	sp, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "",
		time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	it := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "work"})

	got, err := e.AssignSprint(ctx, it.ID, sp.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.SprintID)

	// Membership change is logged for the reconstructor.
	changes, err := s.ListChanges(ctx, it.ID)
	require.NoError(t, err)
	var found bool
	for _, c := range changes {
		if c.Field == models.FieldSprint && c.NewValue == sp.ID {
			found = true
		}
	}
	assert.True(t, found)

	// Removing writes another entry.
	got, err = e.AssignSprint(ctx, it.ID, "", "alice")
	require.NoError(t, err)
	assert.Empty(t, got.SprintID)

	// Completed sprints accept no new members.
	_, err = e.StartSprint(ctx, sp.ID)
	require.NoError(t, err)
	_, err = e.CompleteSprint(ctx, sp.ID)
	require.NoError(t, err)

	var ce *ConflictError
	_, err = e.AssignSprint(ctx, it.ID, sp.ID, "alice")
	assert.ErrorAs(t, err, &ce)
}

// --- End to end ---

func TestEndToEnd_BoardFlow(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e)

	sp, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "ship the thing",
		time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = e.StartSprint(ctx, sp.ID)
	require.NoError(t, err)

	epic := mustItem(t, e, CreateItemParams{ProjectID: p.ID, Title: "Checkout rewrite", Type: models.TypeEpic})
	story := mustItem(t, e, CreateItemParams{
		ProjectID: p.ID, Title: "Payment form", Type: models.TypeStory,
		EpicID: epic.ID, SprintID: sp.ID, StoryPoints: 5, Assignee: "alice", ActorID: "alice",
	})
	bug := mustItem(t, e, CreateItemParams{
		ProjectID: p.ID, Title: "Tax rounding", Type: models.TypeBug,
		SprintID: sp.ID, StoryPoints: 2, ActorID: "bob",
	})
	require.NoError(t, e.AddLink(ctx, story.ID, bug.ID, "alice"))

	_, err = e.TransitionStatus(ctx, story.ID, models.StatusInProgress, "alice")
	require.NoError(t, err)

	r, err := e.RequestReview(ctx, story.ID, "alice", []string{"bob"}, 1, []string{"unit tests"})
	require.NoError(t, err)

	_, err = e.TransitionStatus(ctx, story.ID, models.StatusDone, "alice")
	var gbe *GateBlockedError
	require.ErrorAs(t, err, &gbe)

	_, err = e.ToggleChecklistItem(ctx, r.ID, 0, "bob")
	require.NoError(t, err)
	_, err = e.ApproveReview(ctx, r.ID, "bob", "ship it")
	require.NoError(t, err)

	done, err := e.TransitionStatus(ctx, story.ID, models.StatusDone, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionDone, done.Resolution)

	// The sprint sees both items; the changelog can replay the story's path.
	members, err := s.ListSprintItems(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	changes, err := s.ListChanges(ctx, story.ID)
	require.NoError(t, err)
	var statusPath []string
	for _, c := range changes {
		if c.Field == models.FieldStatus {
			statusPath = append(statusPath, c.NewValue)
		}
	}
	assert.Equal(t, []string{"backlog", "in_progress", "done"}, statusPath)
}
