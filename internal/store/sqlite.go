package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/board/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// concurrent mutations queue instead of failing with "database is locked".
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, key, name, description, next_item_num, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Key, p.Name, p.Description, p.NextItemNum, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanProject(row *sql.Row, what string) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.NextItemNum, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, name, description, next_item_num, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	return s.scanProject(row, id)
}

func (s *SQLiteStore) GetProjectByKey(ctx context.Context, key string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, name, description, next_item_num, created_at, updated_at
		FROM projects WHERE key = ?`, key)
	return s.scanProject(row, key)
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, name, description, next_item_num, created_at, updated_at
		FROM projects ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.NextItemNum, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET key=?, name=?, description=?, updated_at=? WHERE id=?`,
		p.Key, p.Name, p.Description, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// --- Work items ---

const itemColumns = `id, project_id, num, key, title, summary, type, status, priority, rank,
	story_points, sprint_id, due_date, parent_id, epic_id, links, assignee, labels,
	resolution, resolution_date, created_at, updated_at, deleted_at`

func scanItem(scan func(dest ...any) error) (*models.WorkItem, error) {
	it := &models.WorkItem{}
	var itemType, status, priority, resolution, links, labels string
	var dueDate, resolutionDate, deletedAt sql.NullTime

	err := scan(&it.ID, &it.ProjectID, &it.Num, &it.Key, &it.Title, &it.Summary,
		&itemType, &status, &priority, &it.Rank,
		&it.StoryPoints, &it.SprintID, &dueDate, &it.ParentID, &it.EpicID,
		&links, &it.Assignee, &labels,
		&resolution, &resolutionDate, &it.CreatedAt, &it.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	it.Type = models.ItemType(itemType)
	it.Status = models.ItemStatus(status)
	it.Priority = models.ItemPriority(priority)
	it.Resolution = models.Resolution(resolution)
	if dueDate.Valid {
		it.DueDate = &dueDate.Time
	}
	if resolutionDate.Valid {
		it.ResolutionDate = &resolutionDate.Time
	}
	if deletedAt.Valid {
		it.DeletedAt = &deletedAt.Time
	}
	_ = json.Unmarshal([]byte(links), &it.Links)
	_ = json.Unmarshal([]byte(labels), &it.Labels)
	return it, nil
}

func itemArgs(it *models.WorkItem) []any {
	linksJSON, err := json.Marshal(it.Links)
	if err != nil {
		linksJSON = []byte("[]")
	}
	labelsJSON, err := json.Marshal(it.Labels)
	if err != nil {
		labelsJSON = []byte("[]")
	}
	return []any{
		it.ID, it.ProjectID, it.Num, it.Key, it.Title, it.Summary,
		string(it.Type), string(it.Status), string(it.Priority), it.Rank,
		it.StoryPoints, it.SprintID, it.DueDate, it.ParentID, it.EpicID,
		string(linksJSON), it.Assignee, string(labelsJSON),
		string(it.Resolution), it.ResolutionDate, it.CreatedAt, it.UpdatedAt, it.DeletedAt,
	}
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertChangeEntry(ctx context.Context, ex execer, e *models.ChangeEntry) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil || e.Meta == nil {
		metaJSON = []byte("{}")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO change_entries (id, item_id, field, old_value, new_value, actor_id, meta, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ItemID, e.Field, e.OldValue, e.NewValue, e.ActorID, string(metaJSON), e.At,
	)
	if err != nil {
		return fmt.Errorf("append change entry: %w", err)
	}
	return nil
}

func updateItem(ctx context.Context, ex execer, it *models.WorkItem) error {
	it.UpdatedAt = time.Now().UTC()
	args := itemArgs(it)
	// Shift id to the WHERE position.
	args = append(args[1:], it.ID)
	result, err := ex.ExecContext(ctx,
		`UPDATE work_items SET project_id=?, num=?, key=?, title=?, summary=?, type=?, status=?,
		priority=?, rank=?, story_points=?, sprint_id=?, due_date=?, parent_id=?, epic_id=?,
		links=?, assignee=?, labels=?, resolution=?, resolution_date=?, created_at=?, updated_at=?, deleted_at=?
		WHERE id=?`, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("item %s: %w", it.ID, ErrNotFound)
	}
	return nil
}

// CreateItem allocates the next project-scoped number, derives the key, and
// inserts the item together with its changelog entries, all in one
// transaction. Two concurrent creates can never share a number: the
// allocation is a single UPDATE..RETURNING, not a read-then-write. The
// initial rank is likewise derived from the column tail read inside this
// transaction, so concurrent creates into one column get distinct ranks.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *models.WorkItem, newRank RankFunc, entries []*models.ChangeEntry) error {
	if item.ID == "" {
		item.ID = newULID()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var projectKey string
	err = tx.QueryRowContext(ctx, "SELECT key FROM projects WHERE id = ?", item.ProjectID).Scan(&projectKey)
	if err == sql.ErrNoRows {
		return fmt.Errorf("project %s: %w", item.ProjectID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("resolve project key: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`UPDATE projects SET next_item_num = next_item_num + 1, updated_at = ? WHERE id = ?
		RETURNING next_item_num`,
		now, item.ProjectID,
	).Scan(&item.Num)
	if err != nil {
		return fmt.Errorf("allocate item number: %w", err)
	}
	item.Key = fmt.Sprintf("%s-%d", projectKey, item.Num)

	if newRank != nil {
		var tail string
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(rank), '') FROM work_items
			WHERE project_id = ? AND status = ? AND deleted_at IS NULL`,
			item.ProjectID, string(item.Status),
		).Scan(&tail)
		if err != nil {
			return fmt.Errorf("resolve column tail: %w", err)
		}
		r, err := newRank(tail, "")
		if err != nil {
			return fmt.Errorf("compute rank: %w", err)
		}
		item.Rank = r
	}

	query := fmt.Sprintf(`INSERT INTO work_items (%s) VALUES (%s)`,
		itemColumns, strings.TrimSuffix(strings.Repeat("?, ", 23), ", "))
	if _, err := tx.ExecContext(ctx, query, itemArgs(item)...); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	for _, e := range entries {
		if e.ItemID == "" {
			e.ItemID = item.ID
		}
		if err := insertChangeEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getItem(ctx context.Context, where string, arg any) (*models.WorkItem, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM work_items WHERE %s AND deleted_at IS NULL`, itemColumns, where), arg)
	it, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.WorkItem, error) {
	return s.getItem(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetItemByKey(ctx context.Context, key string) (*models.WorkItem, error) {
	return s.getItem(ctx, "key = ?", key)
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemListFilter) ([]*models.WorkItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_items`, itemColumns)
	var conditions []string
	var args []any

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.SprintID != "" {
		conditions = append(conditions, "sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.Assignee != "" {
		conditions = append(conditions, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.EpicID != "" {
		conditions = append(conditions, "epic_id = ?")
		args = append(args, filter.EpicID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY project_id,
		CASE status WHEN 'backlog' THEN 0 WHEN 'todo' THEN 1 WHEN 'in_progress' THEN 2 WHEN 'done' THEN 3 ELSE 4 END,
		rank`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.WorkItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		// Labels live in a JSON column; filter here rather than in SQL.
		if filter.Label != "" && !hasLabel(it, filter.Label) {
			continue
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func hasLabel(it *models.WorkItem, label string) bool {
	for _, l := range it.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// UpdateItemsWithLog updates the given items and appends their changelog
// entries in a single transaction; a failure anywhere rolls back everything.
func (s *SQLiteStore) UpdateItemsWithLog(ctx context.Context, items []*models.WorkItem, entries []*models.ChangeEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range items {
		if err := updateItem(ctx, tx, it); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := insertChangeEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MoveItem writes the item's new column and rank. Neighbor ranks are
// resolved inside the same transaction that writes the update, so two
// concurrent moves into the same gap cannot both succeed on stale reads.
func (s *SQLiteStore) MoveItem(ctx context.Context, item *models.WorkItem, afterID, beforeID string, newRank RankFunc, entries []*models.ChangeEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	neighborRank := func(id string) (string, error) {
		if id == "" {
			return "", nil
		}
		var r string
		err := tx.QueryRowContext(ctx,
			"SELECT rank FROM work_items WHERE id = ? AND deleted_at IS NULL", id).Scan(&r)
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("neighbor item %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("resolve neighbor rank: %w", err)
		}
		return r, nil
	}

	prev, err := neighborRank(afterID)
	if err != nil {
		return err
	}
	next, err := neighborRank(beforeID)
	if err != nil {
		return err
	}

	// No position requested: keep columns ordered by appending to the end.
	if afterID == "" && beforeID == "" {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(rank), '') FROM work_items
			WHERE project_id = ? AND status = ? AND deleted_at IS NULL AND id != ?`,
			item.ProjectID, string(item.Status), item.ID,
		).Scan(&prev)
		if err != nil {
			return fmt.Errorf("resolve column tail: %w", err)
		}
	}

	r, err := newRank(prev, next)
	if err != nil {
		return fmt.Errorf("compute rank: %w", err)
	}
	item.Rank = r

	if err := updateItem(ctx, tx, item); err != nil {
		return err
	}
	for _, e := range entries {
		if err := insertChangeEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SoftDeleteItem(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE work_items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Column maintenance ---

func (s *SQLiteStore) ColumnRanks(ctx context.Context, projectID string, status models.ItemStatus) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank FROM work_items
		WHERE project_id = ? AND status = ? AND deleted_at IS NULL ORDER BY rank`,
		projectID, string(status))
	if err != nil {
		return nil, fmt.Errorf("column ranks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ranks []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		ranks = append(ranks, r)
	}
	return ranks, rows.Err()
}

// RebalanceColumn reassigns fresh evenly-spaced ranks to every live item in
// the column, preserving the current relative order. Idempotent: running it
// twice leaves the same order with equivalent spacing.
func (s *SQLiteStore) RebalanceColumn(ctx context.Context, projectID string, status models.ItemStatus, fresh FreshRanksFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM work_items
		WHERE project_id = ? AND status = ? AND deleted_at IS NULL ORDER BY rank, id`,
		projectID, string(status))
	if err != nil {
		return fmt.Errorf("list column items: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	now := time.Now().UTC()
	for i, r := range fresh(len(ids)) {
		if _, err := tx.ExecContext(ctx,
			"UPDATE work_items SET rank = ?, updated_at = ? WHERE id = ?",
			r, now, ids[i]); err != nil {
			return fmt.Errorf("rebalance rank: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Changelog ---

const changeColumns = `id, item_id, field, old_value, new_value, actor_id, meta, at`

func scanChange(scan func(dest ...any) error) (models.ChangeEntry, error) {
	var e models.ChangeEntry
	var metaJSON string
	err := scan(&e.ID, &e.ItemID, &e.Field, &e.OldValue, &e.NewValue, &e.ActorID, &metaJSON, &e.At)
	if err != nil {
		return e, err
	}
	_ = json.Unmarshal([]byte(metaJSON), &e.Meta)
	return e, nil
}

func (s *SQLiteStore) ListChanges(ctx context.Context, itemID string) ([]models.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM change_entries WHERE item_id = ? ORDER BY at, id`, changeColumns),
		itemID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.ChangeEntry
	for rows.Next() {
		e, err := scanChange(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan change entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ListChangesForItems(ctx context.Context, itemIDs []string) (map[string][]models.ChangeEntry, error) {
	out := make(map[string][]models.ChangeEntry, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(itemIDs))
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM change_entries WHERE item_id IN (%s) ORDER BY at, id`,
		changeColumns, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list changes for items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		e, err := scanChange(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan change entry: %w", err)
		}
		out[e.ItemID] = append(out[e.ItemID], e)
	}
	return out, rows.Err()
}

// --- Sprints ---

func (s *SQLiteStore) CreateSprint(ctx context.Context, sp *models.Sprint) error {
	if sp.ID == "" {
		sp.ID = newULID()
	}
	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sprints (id, project_id, key, name, goal, start_date, end_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, sp.Key, sp.Name, sp.Goal, sp.StartDate, sp.EndDate,
		string(sp.Status), sp.CreatedAt, sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanSprint(row *sql.Row, what string) (*models.Sprint, error) {
	sp := &models.Sprint{}
	var status string
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Key, &sp.Name, &sp.Goal,
		&sp.StartDate, &sp.EndDate, &status, &sp.CreatedAt, &sp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sprint %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	sp.Status = models.SprintStatus(status)
	return sp, nil
}

func (s *SQLiteStore) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, key, name, goal, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE id = ?`, id)
	return s.scanSprint(row, id)
}

func (s *SQLiteStore) GetSprintByKey(ctx context.Context, projectID, key string) (*models.Sprint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, key, name, goal, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE project_id = ? AND key = ?`, projectID, key)
	return s.scanSprint(row, key)
}

func (s *SQLiteStore) ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error) {
	query := `SELECT id, project_id, key, name, goal, start_date, end_date, status, created_at, updated_at
		FROM sprints`
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY start_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*models.Sprint
	for rows.Next() {
		sp := &models.Sprint{}
		var status string
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Key, &sp.Name, &sp.Goal,
			&sp.StartDate, &sp.EndDate, &status, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sp.Status = models.SprintStatus(status)
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

func (s *SQLiteStore) UpdateSprint(ctx context.Context, sp *models.Sprint) error {
	sp.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE sprints SET key=?, name=?, goal=?, start_date=?, end_date=?, status=?, updated_at=? WHERE id=?`,
		sp.Key, sp.Name, sp.Goal, sp.StartDate, sp.EndDate, string(sp.Status), sp.UpdatedAt, sp.ID,
	)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("sprint %s: %w", sp.ID, ErrNotFound)
	}
	return nil
}

// ListSprintItems returns items ever associated with the sprint: current
// members plus items whose changelog records an assignment into it. Past
// members matter because analytics reconstructs their membership per day.
func (s *SQLiteStore) ListSprintItems(ctx context.Context, sprintID string) ([]*models.WorkItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_items
		WHERE deleted_at IS NULL AND (sprint_id = ? OR id IN (
			SELECT item_id FROM change_entries WHERE field = 'sprint' AND new_value = ?
		))
		ORDER BY num`, itemColumns)

	rows, err := s.db.QueryContext(ctx, query, sprintID, sprintID)
	if err != nil {
		return nil, fmt.Errorf("list sprint items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.WorkItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- Reviews ---

func reviewArgs(r *models.Review) (reviewers, checklist string) {
	rj, err := json.Marshal(r.Reviewers)
	if err != nil {
		rj = []byte("[]")
	}
	cj, err := json.Marshal(r.Checklist)
	if err != nil {
		cj = []byte("[]")
	}
	return string(rj), string(cj)
}

func (s *SQLiteStore) CreateReview(ctx context.Context, r *models.Review) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	reviewers, checklist := reviewArgs(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, item_id, requested_by, required_approvals, reviewers, checklist, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, r.RequestedBy, r.RequiredApprovals, reviewers, checklist,
		string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func scanReview(scan func(dest ...any) error) (*models.Review, error) {
	r := &models.Review{}
	var status, reviewers, checklist string
	var deletedAt sql.NullTime
	err := scan(&r.ID, &r.ItemID, &r.RequestedBy, &r.RequiredApprovals,
		&reviewers, &checklist, &status, &r.CreatedAt, &r.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.ReviewStatus(status)
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	_ = json.Unmarshal([]byte(reviewers), &r.Reviewers)
	_ = json.Unmarshal([]byte(checklist), &r.Checklist)
	return r, nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, item_id, requested_by, required_approvals, reviewers, checklist, status, created_at, updated_at, deleted_at
		FROM reviews WHERE id = ? AND deleted_at IS NULL`, id)
	r, err := scanReview(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListItemReviews(ctx context.Context, itemID string) ([]*models.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, requested_by, required_approvals, reviewers, checklist, status, created_at, updated_at, deleted_at
		FROM reviews WHERE item_id = ? AND deleted_at IS NULL ORDER BY created_at`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list item reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.Review
	for rows.Next() {
		r, err := scanReview(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *SQLiteStore) UpdateReview(ctx context.Context, r *models.Review) error {
	r.UpdatedAt = time.Now().UTC()
	reviewers, checklist := reviewArgs(r)
	result, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET required_approvals=?, reviewers=?, checklist=?, status=?, updated_at=?, deleted_at=? WHERE id=?`,
		r.RequiredApprovals, reviewers, checklist, string(r.Status), r.UpdatedAt, r.DeletedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("review %s: %w", r.ID, ErrNotFound)
	}
	return nil
}
