// Package board is the lifecycle engine: every mutation of a work item goes
// through here. The engine validates input, applies the ordering and review
// policies, and hands the store items together with their changelog entries
// so state and history commit atomically. Reads for analytics bypass the
// engine entirely.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/rank"
	"github.com/joescharf/board/internal/review"
	"github.com/joescharf/board/internal/store"
)

// maxHierarchyDepth bounds the parent ancestor walk. Deeper trees are
// rejected rather than traversed, which also catches cycles that slip past
// the direct check.
const maxHierarchyDepth = 10

var projectKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Engine coordinates item lifecycle operations over a Store.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine. A nil logger falls back to slog.Default.
func New(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// --- Projects & sprints ---

// CreateProject validates the key format and creates the project. The key
// becomes the prefix of every item key in the project, so it is immutable
// in spirit: nothing in the engine ever rewrites it.
func (e *Engine) CreateProject(ctx context.Context, key, name, description string) (*models.Project, error) {
	if !projectKeyRe.MatchString(key) {
		return nil, validationf("project key %q must be 2-10 uppercase alphanumerics starting with a letter", key)
	}
	if name == "" {
		return nil, validationf("project name is required")
	}

	p := &models.Project{Key: key, Name: name, Description: description}
	if err := e.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateSprint validates the window and creates the sprint in planned state.
func (e *Engine) CreateSprint(ctx context.Context, projectID, key, name, goal string, start, end time.Time) (*models.Sprint, error) {
	if key == "" || name == "" {
		return nil, validationf("sprint key and name are required")
	}
	if end.Before(start) {
		return nil, validationf("sprint end date %s is before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if _, err := e.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	sp := &models.Sprint{
		ProjectID: projectID,
		Key:       key,
		Name:      name,
		Goal:      goal,
		StartDate: start,
		EndDate:   end,
		Status:    models.SprintPlanned,
	}
	if err := e.store.CreateSprint(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// StartSprint moves a planned sprint to active.
func (e *Engine) StartSprint(ctx context.Context, sprintID string) (*models.Sprint, error) {
	return e.transitionSprint(ctx, sprintID, models.SprintPlanned, models.SprintActive)
}

// CompleteSprint moves an active sprint to completed, making it part of the
// velocity history.
func (e *Engine) CompleteSprint(ctx context.Context, sprintID string) (*models.Sprint, error) {
	return e.transitionSprint(ctx, sprintID, models.SprintActive, models.SprintCompleted)
}

func (e *Engine) transitionSprint(ctx context.Context, sprintID string, from, to models.SprintStatus) (*models.Sprint, error) {
	sp, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if sp.Status != from {
		return nil, conflictf("sprint %s is %s, not %s", sp.Key, sp.Status, from)
	}
	sp.Status = to
	if err := e.store.UpdateSprint(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// --- Item creation ---

// CreateItemParams carries caller input for CreateItem. Zero-valued enum
// fields receive defaults (backlog / task / medium).
type CreateItemParams struct {
	ProjectID   string
	Title       string
	Summary     string
	Type        models.ItemType
	Status      models.ItemStatus
	Priority    models.ItemPriority
	StoryPoints float64
	SprintID    string
	DueDate     *time.Time
	ParentID    string
	EpicID      string
	Assignee    string
	Labels      []string
	ActorID     string
}

// CreateItem allocates the project-scoped key, assigns an initial rank at
// the tail of the target column, validates hierarchy references, and writes
// the item with its changelog entries in one transaction. The creation
// entry gives the history reconstructor a baseline status.
func (e *Engine) CreateItem(ctx context.Context, p CreateItemParams) (*models.WorkItem, error) {
	if p.Title == "" {
		return nil, validationf("item title is required")
	}
	if p.Type == "" {
		p.Type = models.TypeTask
	}
	if p.Status == "" {
		p.Status = models.StatusBacklog
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if !p.Status.Valid() {
		return nil, validationf("unknown status %q", p.Status)
	}
	switch p.Type {
	case models.TypeTask, models.TypeBug, models.TypeStory, models.TypeEpic, models.TypeSubtask:
	default:
		return nil, validationf("unknown item type %q", p.Type)
	}

	if p.EpicID != "" {
		if err := e.checkEpicRef(ctx, p.ProjectID, p.Type, p.EpicID); err != nil {
			return nil, err
		}
	}
	if p.ParentID != "" {
		if err := e.checkParentRef(ctx, p.ProjectID, "", p.ParentID); err != nil {
			return nil, err
		}
	}
	if p.SprintID != "" {
		if err := e.checkSprintRef(ctx, p.ProjectID, p.SprintID); err != nil {
			return nil, err
		}
	}

	now := e.now()
	item := &models.WorkItem{
		ProjectID:   p.ProjectID,
		Title:       p.Title,
		Summary:     p.Summary,
		Type:        p.Type,
		Status:      p.Status,
		Priority:    p.Priority,
		StoryPoints: p.StoryPoints,
		SprintID:    p.SprintID,
		DueDate:     p.DueDate,
		ParentID:    p.ParentID,
		EpicID:      p.EpicID,
		Assignee:    p.Assignee,
		Labels:      p.Labels,
		Resolution:  models.ResolutionUnresolved,
	}
	entries := []*models.ChangeEntry{{
		Field:    models.FieldStatus,
		OldValue: "",
		NewValue: string(p.Status),
		ActorID:  p.ActorID,
		Meta:     map[string]string{"event": "created"},
		At:       now,
	}}
	if p.SprintID != "" {
		// Sprint membership must be reconstructable, so the initial
		// assignment gets its own entry too. It commits with the item:
		// a member without an assignment entry would read as a member
		// at every past instant.
		entries = append(entries, &models.ChangeEntry{
			Field:    models.FieldSprint,
			OldValue: "",
			NewValue: p.SprintID,
			ActorID:  p.ActorID,
			At:       now,
		})
	}

	// The store resolves the column tail inside the insert transaction, so
	// concurrent creates into one column cannot share a rank.
	if err := e.store.CreateItem(ctx, item, rank.Between, entries); err != nil {
		return nil, err
	}
	return item, nil
}

// --- Moves & transitions ---

// MoveParams positions an item within a column. Status names the target
// column (may equal the current one for a pure reorder); AfterID/BeforeID
// name neighbor items, either or both may be empty.
type MoveParams struct {
	Status   models.ItemStatus
	AfterID  string
	BeforeID string
	ActorID  string
}

// MoveItem moves an item to a column position. Neighbor ranks are resolved
// inside the write transaction; a fragmented gap triggers one rebalance and
// retry before failing. Entering done is gated on open reviews and stamps
// the resolution; leaving done clears it.
func (e *Engine) MoveItem(ctx context.Context, itemID string, p MoveParams) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = item.Status
	}
	if !p.Status.Valid() {
		return nil, validationf("unknown status %q", p.Status)
	}

	if err := e.checkNeighbor(ctx, item, p.Status, p.AfterID); err != nil {
		return nil, err
	}
	if err := e.checkNeighbor(ctx, item, p.Status, p.BeforeID); err != nil {
		return nil, err
	}

	now := e.now()
	oldStatus := item.Status
	entries := []*models.ChangeEntry{}

	if p.Status != oldStatus {
		if p.Status == models.StatusDone {
			if err := e.checkDoneGate(ctx, item.ID); err != nil {
				return nil, err
			}
		}
		e.applyResolution(item, oldStatus, p.Status, now)
		item.Status = p.Status
		entries = append(entries, &models.ChangeEntry{
			ItemID:   item.ID,
			Field:    models.FieldStatus,
			OldValue: string(oldStatus),
			NewValue: string(p.Status),
			ActorID:  p.ActorID,
			At:       now,
		})
	}

	rankEntry := &models.ChangeEntry{
		ItemID:   item.ID,
		Field:    models.FieldRank,
		OldValue: item.Rank,
		ActorID:  p.ActorID,
		Meta:     map[string]string{"column": string(p.Status)},
		At:       now,
	}
	entries = append(entries, rankEntry)

	rankFn := func(prev, next string) (string, error) {
		r, err := rank.Between(prev, next)
		if err != nil {
			return "", err
		}
		rankEntry.NewValue = r
		return r, nil
	}

	err = e.store.MoveItem(ctx, item, p.AfterID, p.BeforeID, rankFn, entries)
	if errors.Is(err, rank.ErrNoRoom) {
		// The gap between the neighbors is exhausted. Rebalance the column
		// and retry once; the neighbors keep their relative positions.
		if rbErr := e.store.RebalanceColumn(ctx, item.ProjectID, p.Status, rank.Spread); rbErr != nil {
			return nil, fmt.Errorf("rebalance before retry: %w", rbErr)
		}
		err = e.store.MoveItem(ctx, item, p.AfterID, p.BeforeID, rankFn, entries)
	}
	if err != nil {
		return nil, err
	}

	e.maybeRebalance(ctx, item.ProjectID, p.Status)
	return item, nil
}

// TransitionStatus changes an item's column, appending it at the column
// tail. Same-status calls are a no-op.
func (e *Engine) TransitionStatus(ctx context.Context, itemID string, status models.ItemStatus, actorID string) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status == status {
		return item, nil
	}
	return e.MoveItem(ctx, itemID, MoveParams{Status: status, ActorID: actorID})
}

// checkDoneGate blocks the done transition while any review on the item is
// still open.
func (e *Engine) checkDoneGate(ctx context.Context, itemID string) error {
	reviews, err := e.store.ListItemReviews(ctx, itemID)
	if err != nil {
		return err
	}
	pending, changes := review.OutstandingCounts(reviews)
	if pending > 0 || changes > 0 {
		return &GateBlockedError{Pending: pending, ChangesRequested: changes}
	}
	return nil
}

// applyResolution stamps the resolution entering done and clears it on the
// way out. An explicit resolution (wont_fix, duplicate, ...) set before the
// transition survives; only the default is automated.
func (e *Engine) applyResolution(item *models.WorkItem, from, to models.ItemStatus, now time.Time) {
	if to == models.StatusDone {
		if !item.Resolved() {
			item.Resolution = models.ResolutionDone
		}
		item.ResolutionDate = &now
		return
	}
	if from == models.StatusDone {
		item.Resolution = models.ResolutionUnresolved
		item.ResolutionDate = nil
	}
}

func (e *Engine) checkNeighbor(ctx context.Context, item *models.WorkItem, status models.ItemStatus, neighborID string) error {
	if neighborID == "" {
		return nil
	}
	if neighborID == item.ID {
		return validationf("item cannot neighbor itself")
	}
	n, err := e.store.GetItem(ctx, neighborID)
	if err != nil {
		return err
	}
	if n.ProjectID != item.ProjectID || n.Status != status {
		return validationf("neighbor %s is not in the target column", n.Key)
	}
	return nil
}

// maybeRebalance runs a post-commit fragmentation check. Best effort: the
// move already committed, so failures here are logged and swallowed.
func (e *Engine) maybeRebalance(ctx context.Context, projectID string, status models.ItemStatus) {
	ranks, err := e.store.ColumnRanks(ctx, projectID, status)
	if err != nil {
		e.logger.Warn("rank fragmentation check failed", "project", projectID, "status", status, "error", err)
		return
	}
	if !rank.NeedsRebalance(ranks) {
		return
	}
	if err := e.store.RebalanceColumn(ctx, projectID, status, rank.Spread); err != nil {
		e.logger.Warn("column rebalance failed", "project", projectID, "status", status, "error", err)
		return
	}
	e.logger.Info("rebalanced column", "project", projectID, "status", status, "items", len(ranks))
}

// --- Hierarchy ---

// SetEpic assigns or clears (empty epicID) the item's epic.
func (e *Engine) SetEpic(ctx context.Context, itemID, epicID, actorID string) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type == models.TypeEpic {
		return nil, validationf("an epic cannot belong to an epic")
	}
	if epicID != "" {
		if err := e.checkEpicRef(ctx, item.ProjectID, item.Type, epicID); err != nil {
			return nil, err
		}
	}
	if item.EpicID == epicID {
		return item, nil
	}

	entry := &models.ChangeEntry{
		ItemID:   item.ID,
		Field:    models.FieldEpic,
		OldValue: item.EpicID,
		NewValue: epicID,
		ActorID:  actorID,
		At:       e.now(),
	}
	item.EpicID = epicID
	if err := e.store.UpdateItemsWithLog(ctx, []*models.WorkItem{item}, []*models.ChangeEntry{entry}); err != nil {
		return nil, err
	}
	return item, nil
}

// SetParent assigns or clears (empty parentID) the item's parent. The
// ancestor chain is walked upward to reject cycles and over-deep trees.
func (e *Engine) SetParent(ctx context.Context, itemID, parentID, actorID string) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		if err := e.checkParentRef(ctx, item.ProjectID, item.ID, parentID); err != nil {
			return nil, err
		}
	}
	if item.ParentID == parentID {
		return item, nil
	}

	entry := &models.ChangeEntry{
		ItemID:   item.ID,
		Field:    models.FieldParent,
		OldValue: item.ParentID,
		NewValue: parentID,
		ActorID:  actorID,
		At:       e.now(),
	}
	item.ParentID = parentID
	if err := e.store.UpdateItemsWithLog(ctx, []*models.WorkItem{item}, []*models.ChangeEntry{entry}); err != nil {
		return nil, err
	}
	return item, nil
}

func (e *Engine) checkEpicRef(ctx context.Context, projectID string, itemType models.ItemType, epicID string) error {
	if itemType == models.TypeEpic {
		return validationf("an epic cannot belong to an epic")
	}
	epic, err := e.store.GetItem(ctx, epicID)
	if err != nil {
		return err
	}
	if epic.Type != models.TypeEpic {
		return validationf("item %s is a %s, not an epic", epic.Key, epic.Type)
	}
	if epic.ProjectID != projectID {
		return validationf("epic %s belongs to a different project", epic.Key)
	}
	return nil
}

// checkParentRef validates the parent and walks its ancestor chain. itemID
// is empty for not-yet-created items, which cannot be part of a cycle.
func (e *Engine) checkParentRef(ctx context.Context, projectID, itemID, parentID string) error {
	if parentID == itemID {
		return conflictf("item cannot be its own parent")
	}
	parent, err := e.store.GetItem(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Type == models.TypeEpic {
		return validationf("parent %s is an epic; epic membership uses the epic field", parent.Key)
	}
	if parent.ProjectID != projectID {
		return validationf("parent %s belongs to a different project", parent.Key)
	}

	cur := parent
	for depth := 0; cur.ParentID != ""; depth++ {
		if depth >= maxHierarchyDepth {
			return validationf("hierarchy deeper than %d levels", maxHierarchyDepth)
		}
		if cur.ParentID == itemID {
			return conflictf("setting parent %s would create a cycle", parent.Key)
		}
		cur, err = e.store.GetItem(ctx, cur.ParentID)
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
	}
	return nil
}

// --- Links ---

// AddLink creates a symmetric link between two items; both endpoints update
// in one transaction.
func (e *Engine) AddLink(ctx context.Context, itemID, otherID, actorID string) error {
	if itemID == otherID {
		return validationf("item cannot link to itself")
	}
	a, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	b, err := e.store.GetItem(ctx, otherID)
	if err != nil {
		return err
	}
	if containsString(a.Links, b.ID) {
		return conflictf("%s and %s are already linked", a.Key, b.Key)
	}

	now := e.now()
	a.Links = append(a.Links, b.ID)
	b.Links = append(b.Links, a.ID)
	entries := []*models.ChangeEntry{
		linkEntry(a, b, "linked", actorID, now),
		linkEntry(b, a, "linked", actorID, now),
	}
	return e.store.UpdateItemsWithLog(ctx, []*models.WorkItem{a, b}, entries)
}

// RemoveLink removes a symmetric link from both endpoints.
func (e *Engine) RemoveLink(ctx context.Context, itemID, otherID, actorID string) error {
	a, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	b, err := e.store.GetItem(ctx, otherID)
	if err != nil {
		return err
	}
	if !containsString(a.Links, b.ID) {
		return conflictf("%s and %s are not linked", a.Key, b.Key)
	}

	now := e.now()
	a.Links = removeString(a.Links, b.ID)
	b.Links = removeString(b.Links, a.ID)
	entries := []*models.ChangeEntry{
		linkEntry(a, b, "unlinked", actorID, now),
		linkEntry(b, a, "unlinked", actorID, now),
	}
	return e.store.UpdateItemsWithLog(ctx, []*models.WorkItem{a, b}, entries)
}

func linkEntry(item, other *models.WorkItem, event, actorID string, now time.Time) *models.ChangeEntry {
	return &models.ChangeEntry{
		ItemID:   item.ID,
		Field:    models.FieldLink,
		NewValue: other.ID,
		ActorID:  actorID,
		Meta:     map[string]string{"event": event, "linked_key": other.Key},
		At:       now,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// --- Sprint assignment ---

// AssignSprint moves the item into a sprint (or out, with empty sprintID)
// and records the membership change for the reconstructor.
func (e *Engine) AssignSprint(ctx context.Context, itemID, sprintID, actorID string) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if sprintID != "" {
		if err := e.checkSprintRef(ctx, item.ProjectID, sprintID); err != nil {
			return nil, err
		}
	}
	if item.SprintID == sprintID {
		return item, nil
	}

	entry := &models.ChangeEntry{
		ItemID:   item.ID,
		Field:    models.FieldSprint,
		OldValue: item.SprintID,
		NewValue: sprintID,
		ActorID:  actorID,
		At:       e.now(),
	}
	item.SprintID = sprintID
	if err := e.store.UpdateItemsWithLog(ctx, []*models.WorkItem{item}, []*models.ChangeEntry{entry}); err != nil {
		return nil, err
	}
	return item, nil
}

func (e *Engine) checkSprintRef(ctx context.Context, projectID, sprintID string) error {
	sp, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return err
	}
	if sp.ProjectID != projectID {
		return validationf("sprint %s belongs to a different project", sp.Key)
	}
	if sp.Status == models.SprintCompleted {
		return conflictf("sprint %s is completed", sp.Key)
	}
	return nil
}

// --- Delete ---

// DeleteItem soft-deletes: the row stays for history, every read path
// filters it out, and the key is never reissued.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	return e.store.SoftDeleteItem(ctx, itemID)
}

// --- Reviews ---

// RequestReview opens a review gating the item's done transition.
func (e *Engine) RequestReview(ctx context.Context, itemID, requestedBy string, reviewerIDs []string, requiredApprovals int, checklist []string) (*models.Review, error) {
	if len(reviewerIDs) == 0 {
		return nil, validationf("at least one reviewer is required")
	}
	if requiredApprovals <= 0 {
		requiredApprovals = 1
	}
	if requiredApprovals > len(reviewerIDs) {
		return nil, validationf("%d approvals required but only %d reviewer(s)", requiredApprovals, len(reviewerIDs))
	}
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	r := &models.Review{
		ItemID:            item.ID,
		RequestedBy:       requestedBy,
		RequiredApprovals: requiredApprovals,
		Status:            models.ReviewPending,
	}
	for _, id := range reviewerIDs {
		if seen[id] {
			return nil, validationf("duplicate reviewer %s", id)
		}
		seen[id] = true
		r.Reviewers = append(r.Reviewers, models.Reviewer{UserID: id, Status: models.ReviewerPending})
	}
	for _, label := range checklist {
		r.Checklist = append(r.Checklist, models.ChecklistItem{Label: label})
	}

	if err := e.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// reviewAction loads a review, applies a pure state-machine function, and
// persists the result.
func (e *Engine) reviewAction(ctx context.Context, reviewID string, fn func(*models.Review, time.Time) error) (*models.Review, error) {
	r, err := e.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := fn(r, e.now()); err != nil {
		if errors.Is(err, review.ErrTerminal) {
			return nil, err
		}
		// Everything else the state machine rejects is caller input:
		// unknown reviewer, wrong canceller, bad checklist index.
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := e.store.UpdateReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ApproveReview records an approval from the given reviewer.
func (e *Engine) ApproveReview(ctx context.Context, reviewID, userID, comment string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.Approve(r, userID, comment, now)
	})
}

// RequestReviewChanges records a changes-requested verdict.
func (e *Engine) RequestReviewChanges(ctx context.Context, reviewID, userID, comment string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.RequestChanges(r, userID, comment, now)
	})
}

// CancelReview cancels the review; only the requester may.
func (e *Engine) CancelReview(ctx context.Context, reviewID, userID string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.Cancel(r, userID, now)
	})
}

// ExpireReview moves the review into its terminal expired state.
func (e *Engine) ExpireReview(ctx context.Context, reviewID string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, review.Expire)
}

// AddReviewer adds a pending reviewer to an open review.
func (e *Engine) AddReviewer(ctx context.Context, reviewID, userID string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.AddReviewer(r, userID, now)
	})
}

// RemoveReviewer removes a reviewer; the overall status is re-derived.
func (e *Engine) RemoveReviewer(ctx context.Context, reviewID, userID string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.RemoveReviewer(r, userID, now)
	})
}

// ToggleChecklistItem flips one checklist entry, stamping the actor.
func (e *Engine) ToggleChecklistItem(ctx context.Context, reviewID string, index int, userID string) (*models.Review, error) {
	return e.reviewAction(ctx, reviewID, func(r *models.Review, now time.Time) error {
		return review.ToggleChecklist(r, index, userID, now)
	})
}
