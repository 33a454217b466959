// Package history reconstructs past work-item state from the append-only
// changelog. The live fields on a WorkItem only describe the present; any
// "as of date D" question is answered here, from (snapshot, changelog,
// timestamp) alone. The package performs no I/O, which keeps it trivially
// testable without a database.
package history

import (
	"sort"
	"time"

	"github.com/joescharf/board/internal/models"
)

// sortedByTime returns entries for one field ordered ascending by At.
// Storage order is never trusted.
func sortedByTime(entries []models.ChangeEntry, field string) []models.ChangeEntry {
	var out []models.ChangeEntry
	for _, e := range entries {
		if e.Field == field {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// FieldValueAsOf returns the value a field held at the given instant,
// according to the changelog. The second return is false when no entry
// predates the instant; the caller decides the fallback.
func FieldValueAsOf(entries []models.ChangeEntry, field string, at time.Time) (string, bool) {
	var (
		value string
		found bool
	)
	for _, e := range sortedByTime(entries, field) {
		if e.At.After(at) {
			break
		}
		value = e.NewValue
		found = true
	}
	return value, found
}

// StatusAsOf returns the item's column at the given instant. When no status
// entry predates the instant it falls back to the item's current status —
// an approximation that assumes the item was already in that column, which
// only misleads for items created without a synthetic creation entry.
func StatusAsOf(item *models.WorkItem, entries []models.ChangeEntry, at time.Time) models.ItemStatus {
	if v, ok := FieldValueAsOf(entries, models.FieldStatus, at); ok {
		return models.ItemStatus(v)
	}
	return item.Status
}

// WasMemberOfSprintAsOf reports whether the item belonged to the sprint at
// the given instant.
func WasMemberOfSprintAsOf(item *models.WorkItem, entries []models.ChangeEntry, sprintID string, at time.Time) bool {
	if sprintID == "" {
		return false
	}

	sprintEntries := sortedByTime(entries, models.FieldSprint)

	if item.SprintID == sprintID {
		// Currently a member. That held at the instant too, unless the
		// assignment into this sprint happened afterwards.
		for _, e := range sprintEntries {
			if e.At.After(at) && e.NewValue == sprintID {
				return false
			}
		}
		return true
	}

	// Not currently a member: the last assignment on or before the instant
	// decides.
	var last *models.ChangeEntry
	for i := range sprintEntries {
		if sprintEntries[i].At.After(at) {
			break
		}
		last = &sprintEntries[i]
	}
	return last != nil && last.NewValue == sprintID
}

// CompletedAt returns the first done-transition inside the window, or false
// when the item never reached done between from and to (inclusive).
func CompletedAt(entries []models.ChangeEntry, from, to time.Time) (time.Time, bool) {
	for _, e := range sortedByTime(entries, models.FieldStatus) {
		if e.NewValue != string(models.StatusDone) {
			continue
		}
		if e.At.Before(from) || e.At.After(to) {
			continue
		}
		return e.At, true
	}
	return time.Time{}, false
}

// StartedAt returns the first in-progress transition inside the window.
func StartedAt(entries []models.ChangeEntry, from, to time.Time) (time.Time, bool) {
	for _, e := range sortedByTime(entries, models.FieldStatus) {
		if e.NewValue != string(models.StatusInProgress) {
			continue
		}
		if e.At.Before(from) || e.At.After(to) {
			continue
		}
		return e.At, true
	}
	return time.Time{}, false
}
