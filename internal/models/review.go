package models

import "time"

// ReviewerStatus is the per-reviewer verdict. A reviewer may flip between
// approved and changes_requested; the verdict is not one-shot.
type ReviewerStatus string

const (
	ReviewerPending          ReviewerStatus = "pending"
	ReviewerApproved         ReviewerStatus = "approved"
	ReviewerChangesRequested ReviewerStatus = "changes_requested"
)

// ReviewStatus is the overall review state. Everything except cancelled and
// expired is derived from the reviewer set; those two are terminal and set
// out-of-band.
type ReviewStatus string

const (
	ReviewPending          ReviewStatus = "pending"
	ReviewApproved         ReviewStatus = "approved"
	ReviewChangesRequested ReviewStatus = "changes_requested"
	ReviewCancelled        ReviewStatus = "cancelled"
	ReviewExpired          ReviewStatus = "expired"
)

// Terminal reports whether the status absorbs further reviewer actions.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewCancelled || s == ReviewExpired
}

// Reviewer is one embedded reviewer record with its own small state machine.
type Reviewer struct {
	UserID  string
	Status  ReviewerStatus
	Comment string
	ActedAt *time.Time
}

// ChecklistItem is a toggleable review checklist entry.
type ChecklistItem struct {
	Label  string
	Done   bool
	DoneBy string
	DoneAt *time.Time
}

// Review gates a work item's transition into the done column. Open reviews
// (pending or changes_requested) block the transition.
type Review struct {
	ID                string
	ItemID            string
	RequestedBy       string
	RequiredApprovals int
	Reviewers         []Reviewer
	Checklist         []ChecklistItem
	Status            ReviewStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// Open reports whether the review still blocks a done transition.
func (r *Review) Open() bool {
	return r.Status == ReviewPending || r.Status == ReviewChangesRequested
}
