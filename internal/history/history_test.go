package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/board/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
}

func entry(field, old, new string, at time.Time) models.ChangeEntry {
	return models.ChangeEntry{Field: field, OldValue: old, NewValue: new, At: at}
}

func TestFieldValueAsOf(t *testing.T) {
	entries := []models.ChangeEntry{
		// Deliberately unsorted: the reconstructor must not trust storage order.
		entry(models.FieldStatus, "todo", "in_progress", day(5)),
		entry(models.FieldStatus, "", "backlog", day(1)),
		entry(models.FieldStatus, "in_progress", "done", day(9)),
		entry(models.FieldStatus, "backlog", "todo", day(3)),
		entry(models.FieldSprint, "", "sp1", day(2)),
	}

	v, ok := FieldValueAsOf(entries, models.FieldStatus, day(4))
	assert.True(t, ok)
	assert.Equal(t, "todo", v)

	v, ok = FieldValueAsOf(entries, models.FieldStatus, day(9))
	assert.True(t, ok)
	assert.Equal(t, "done", v)

	// Before the first entry: undefined.
	_, ok = FieldValueAsOf(entries, models.FieldStatus, day(1).Add(-time.Hour))
	assert.False(t, ok)

	// Other fields do not bleed through.
	v, ok = FieldValueAsOf(entries, models.FieldSprint, day(4))
	assert.True(t, ok)
	assert.Equal(t, "sp1", v)
}

func TestStatusAsOf_FallsBackToCurrent(t *testing.T) {
	item := &models.WorkItem{Status: models.StatusInProgress}

	// No changelog at all: current status is the best available answer.
	assert.Equal(t, models.StatusInProgress, StatusAsOf(item, nil, day(1)))

	entries := []models.ChangeEntry{
		entry(models.FieldStatus, "in_progress", "done", day(5)),
	}
	assert.Equal(t, models.StatusDone, StatusAsOf(item, entries, day(6)))
	// Before the only entry: fall back to current, not to the entry's old value.
	assert.Equal(t, models.StatusInProgress, StatusAsOf(item, entries, day(4)))
}

func TestWasMemberOfSprintAsOf_CurrentMember(t *testing.T) {
	item := &models.WorkItem{SprintID: "sp1"}

	// Member now, no changelog: member then too.
	assert.True(t, WasMemberOfSprintAsOf(item, nil, "sp1", day(3)))

	// Assigned into sp1 after the query date: not yet a member at D.
	entries := []models.ChangeEntry{
		entry(models.FieldSprint, "", "sp1", day(5)),
	}
	assert.False(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(3)))
	assert.True(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(5)))
}

func TestWasMemberOfSprintAsOf_PastMember(t *testing.T) {
	// Currently unassigned, but was in sp1 between day 2 and day 6.
	item := &models.WorkItem{SprintID: ""}
	entries := []models.ChangeEntry{
		entry(models.FieldSprint, "", "sp1", day(2)),
		entry(models.FieldSprint, "sp1", "", day(6)),
	}

	assert.False(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(1)))
	assert.True(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(2)))
	assert.True(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(5)))
	assert.False(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(7)))
}

func TestWasMemberOfSprintAsOf_MovedBetweenSprints(t *testing.T) {
	item := &models.WorkItem{SprintID: "sp2"}
	entries := []models.ChangeEntry{
		entry(models.FieldSprint, "", "sp1", day(2)),
		entry(models.FieldSprint, "sp1", "sp2", day(6)),
	}

	assert.True(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(4)))
	assert.False(t, WasMemberOfSprintAsOf(item, entries, "sp2", day(4)))
	assert.False(t, WasMemberOfSprintAsOf(item, entries, "sp1", day(7)))
	assert.True(t, WasMemberOfSprintAsOf(item, entries, "sp2", day(7)))
}

func TestWasMemberOfSprintAsOf_EmptySprintID(t *testing.T) {
	item := &models.WorkItem{SprintID: ""}
	assert.False(t, WasMemberOfSprintAsOf(item, nil, "", day(1)))
}

func TestCompletedAt(t *testing.T) {
	entries := []models.ChangeEntry{
		entry(models.FieldStatus, "backlog", "in_progress", day(2)),
		entry(models.FieldStatus, "in_progress", "done", day(8)),
	}

	at, ok := CompletedAt(entries, day(1), day(10))
	assert.True(t, ok)
	assert.Equal(t, day(8), at)

	// Window excludes the transition.
	_, ok = CompletedAt(entries, day(1), day(7))
	assert.False(t, ok)
	_, ok = CompletedAt(entries, day(9), day(10))
	assert.False(t, ok)
}

func TestStartedAt(t *testing.T) {
	entries := []models.ChangeEntry{
		entry(models.FieldStatus, "backlog", "in_progress", day(2)),
		entry(models.FieldStatus, "in_progress", "done", day(8)),
	}

	at, ok := StartedAt(entries, day(1), day(10))
	assert.True(t, ok)
	assert.Equal(t, day(2), at)

	_, ok = StartedAt(entries, day(3), day(10))
	assert.False(t, ok)
}
