package store

import (
	"context"
	"errors"

	"github.com/joescharf/board/internal/models"
)

// ErrNotFound is wrapped by lookups that fail to resolve (including
// soft-deleted rows). Callers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// ItemListFilter specifies filters for listing work items. Soft-deleted
// items are excluded unless IncludeDeleted is set.
type ItemListFilter struct {
	ProjectID      string
	Status         models.ItemStatus
	Type           models.ItemType
	SprintID       string
	Assignee       string
	Label          string
	EpicID         string
	IncludeDeleted bool
}

// RankFunc computes a rank strictly between two neighbor ranks; either may
// be empty. Supplied by the lifecycle engine so the store stays free of
// ordering policy.
type RankFunc func(prev, next string) (string, error)

// FreshRanksFunc returns n evenly-spaced ranks for a column rebalance.
type FreshRanksFunc func(n int) []string

// Store defines the persistence interface for the board.
//
// The compound methods (CreateItem, MoveItem, UpdateItemsWithLog,
// RebalanceColumn) each run as a single transaction: the field mutation and
// its changelog entries commit or roll back together, and MoveItem re-reads
// neighbor ranks inside the transaction that writes the new rank.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error

	// Work items. CreateItem allocates the project-scoped number and key
	// atomically with the insert; when newRank is non-nil the item's rank is
	// derived from the column tail read inside the same transaction, and all
	// entries commit or roll back with the item.
	CreateItem(ctx context.Context, item *models.WorkItem, newRank RankFunc, entries []*models.ChangeEntry) error
	GetItem(ctx context.Context, id string) (*models.WorkItem, error)
	GetItemByKey(ctx context.Context, key string) (*models.WorkItem, error)
	ListItems(ctx context.Context, filter ItemListFilter) ([]*models.WorkItem, error)
	UpdateItemsWithLog(ctx context.Context, items []*models.WorkItem, entries []*models.ChangeEntry) error
	MoveItem(ctx context.Context, item *models.WorkItem, afterID, beforeID string, newRank RankFunc, entries []*models.ChangeEntry) error
	SoftDeleteItem(ctx context.Context, id string) error

	// Column maintenance
	ColumnRanks(ctx context.Context, projectID string, status models.ItemStatus) ([]string, error)
	RebalanceColumn(ctx context.Context, projectID string, status models.ItemStatus, fresh FreshRanksFunc) error

	// Changelog (append-only; no update or delete exists by design)
	ListChanges(ctx context.Context, itemID string) ([]models.ChangeEntry, error)
	ListChangesForItems(ctx context.Context, itemIDs []string) (map[string][]models.ChangeEntry, error)

	// Sprints
	CreateSprint(ctx context.Context, s *models.Sprint) error
	GetSprint(ctx context.Context, id string) (*models.Sprint, error)
	GetSprintByKey(ctx context.Context, projectID, key string) (*models.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error)
	UpdateSprint(ctx context.Context, s *models.Sprint) error
	// ListSprintItems returns every item ever associated with the sprint:
	// current members plus anything whose changelog shows an assignment.
	ListSprintItems(ctx context.Context, sprintID string) ([]*models.WorkItem, error)

	// Reviews
	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListItemReviews(ctx context.Context, itemID string) ([]*models.Review, error)
	UpdateReview(ctx context.Context, r *models.Review) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
