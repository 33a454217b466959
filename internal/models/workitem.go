package models

import "time"

// ItemStatus is a board column. The set is closed and ordered: Backlog is
// the entry column, Done is terminal.
type ItemStatus string

const (
	StatusBacklog    ItemStatus = "backlog"
	StatusTodo       ItemStatus = "todo"
	StatusInProgress ItemStatus = "in_progress"
	StatusDone       ItemStatus = "done"
)

// Statuses lists every column in board order.
var Statuses = []ItemStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is a known column.
func (s ItemStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ItemType classifies a work item.
type ItemType string

const (
	TypeTask    ItemType = "task"
	TypeBug     ItemType = "bug"
	TypeStory   ItemType = "story"
	TypeEpic    ItemType = "epic"
	TypeSubtask ItemType = "subtask"
)

// ItemPriority represents the urgency of a work item.
type ItemPriority string

const (
	PriorityLow    ItemPriority = "low"
	PriorityMedium ItemPriority = "medium"
	PriorityHigh   ItemPriority = "high"
	PriorityUrgent ItemPriority = "urgent"
)

// Resolution records how a work item ended. Unresolved until the item enters
// the done column; cleared again if it leaves.
type Resolution string

const (
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionDone       Resolution = "done"
	ResolutionWontFix    Resolution = "wont_fix"
	ResolutionDuplicate  Resolution = "duplicate"
	ResolutionIncomplete Resolution = "incomplete"
)

// WorkItem is the mutable board entity. Its fields reflect only the latest
// state; anything historical (status, sprint membership) is answered from
// the item's changelog, never from these fields directly.
type WorkItem struct {
	ID        string
	ProjectID string
	Num       int    // project-scoped sequential number
	Key       string // "PROJ-123", derived from the project key and Num
	Title     string
	Summary   string
	Type      ItemType
	Status    ItemStatus
	Priority  ItemPriority

	// Rank is an opaque sortable string; items in the same (project, status)
	// column order by it. Assigned by the lifecycle engine, never by callers.
	Rank string

	StoryPoints float64
	SprintID    string // current membership only
	DueDate     *time.Time

	ParentID string // non-epic parent, forms a tree
	EpicID   string // item of type epic
	Links    []string

	Assignee string
	Labels   []string

	Resolution     Resolution
	ResolutionDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Resolved reports whether the item carries a terminal resolution.
func (w *WorkItem) Resolved() bool {
	return w.Resolution != "" && w.Resolution != ResolutionUnresolved
}
