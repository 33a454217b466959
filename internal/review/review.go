// Package review implements the approval state machine gating the done
// transition. Reviewer records carry their own status and may flip between
// approved and changes_requested; the overall review status is derived from
// them, except for the terminal cancelled/expired states.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/board/internal/models"
)

// ErrTerminal is returned for any reviewer action against a cancelled or
// expired review.
var ErrTerminal = errors.New("review is cancelled or expired")

// DeriveStatus computes the overall status from the reviewer set:
// changes_requested if any reviewer requested changes, approved once enough
// approvals are in, pending otherwise. Terminal states are preserved.
func DeriveStatus(r *models.Review) models.ReviewStatus {
	if r.Status.Terminal() {
		return r.Status
	}

	approvals := 0
	for _, rev := range r.Reviewers {
		switch rev.Status {
		case models.ReviewerChangesRequested:
			return models.ReviewChangesRequested
		case models.ReviewerApproved:
			approvals++
		}
	}
	if approvals >= r.RequiredApprovals {
		return models.ReviewApproved
	}
	return models.ReviewPending
}

// act records a reviewer verdict and re-derives the overall status. Only a
// listed reviewer may act, and never on a terminal review.
func act(r *models.Review, userID string, status models.ReviewerStatus, comment string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}

	for i := range r.Reviewers {
		if r.Reviewers[i].UserID != userID {
			continue
		}
		r.Reviewers[i].Status = status
		r.Reviewers[i].Comment = comment
		r.Reviewers[i].ActedAt = &now
		r.Status = DeriveStatus(r)
		r.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("user %s is not a reviewer on this review", userID)
}

// Approve records an approval from the given reviewer.
func Approve(r *models.Review, userID, comment string, now time.Time) error {
	return act(r, userID, models.ReviewerApproved, comment, now)
}

// RequestChanges records a changes-requested verdict from the given reviewer.
func RequestChanges(r *models.Review, userID, comment string, now time.Time) error {
	return act(r, userID, models.ReviewerChangesRequested, comment, now)
}

// Cancel moves the review into its terminal cancelled state. Only the
// original requester may cancel.
func Cancel(r *models.Review, userID string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}
	if userID != r.RequestedBy {
		return fmt.Errorf("only the requester (%s) may cancel this review", r.RequestedBy)
	}
	r.Status = models.ReviewCancelled
	r.UpdatedAt = now
	return nil
}

// Expire moves the review into its terminal expired state.
func Expire(r *models.Review, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}
	r.Status = models.ReviewExpired
	r.UpdatedAt = now
	return nil
}

// AddReviewer appends a pending reviewer. Duplicates are rejected.
func AddReviewer(r *models.Review, userID string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}
	for _, rev := range r.Reviewers {
		if rev.UserID == userID {
			return fmt.Errorf("user %s is already a reviewer", userID)
		}
	}
	r.Reviewers = append(r.Reviewers, models.Reviewer{UserID: userID, Status: models.ReviewerPending})
	r.Status = DeriveStatus(r)
	r.UpdatedAt = now
	return nil
}

// RemoveReviewer drops a reviewer and re-derives the overall status, which
// may flip the review to approved when the removed reviewer was the last
// holdout.
func RemoveReviewer(r *models.Review, userID string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}
	for i, rev := range r.Reviewers {
		if rev.UserID != userID {
			continue
		}
		r.Reviewers = append(r.Reviewers[:i], r.Reviewers[i+1:]...)
		r.Status = DeriveStatus(r)
		r.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("user %s is not a reviewer on this review", userID)
}

// ToggleChecklist flips a checklist entry by index, stamping who toggled it.
func ToggleChecklist(r *models.Review, index int, userID string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.Status)
	}
	if index < 0 || index >= len(r.Checklist) {
		return fmt.Errorf("checklist index %d out of range", index)
	}
	item := &r.Checklist[index]
	item.Done = !item.Done
	if item.Done {
		item.DoneBy = userID
		item.DoneAt = &now
	} else {
		item.DoneBy = ""
		item.DoneAt = nil
	}
	r.UpdatedAt = now
	return nil
}

// OutstandingCounts tallies the open reviews blocking a done transition:
// reviews still pending and reviews with changes requested.
func OutstandingCounts(reviews []*models.Review) (pending, changesRequested int) {
	for _, r := range reviews {
		switch r.Status {
		case models.ReviewPending:
			pending++
		case models.ReviewChangesRequested:
			changesRequested++
		}
	}
	return pending, changesRequested
}
