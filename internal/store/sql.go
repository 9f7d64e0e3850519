// internal/store/sql.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tasksync/internal/models"
	"tasksync/internal/timestamp"
	"tasksync/pkg/auth"
)

// SQLTaskStore implements TaskStore and ProfileStore over a SQL
// database. One implementation serves both modes: Postgres for the
// shared account backend, SQLite for the local guest cache.
type SQLTaskStore struct {
	db       *sqlx.DB
	identity auth.Provider
	hub      *hub
	listener *pq.Listener
}

func NewSQLTaskStore(db *sqlx.DB, identity auth.Provider) *SQLTaskStore {
	return &SQLTaskStore{
		db:       db,
		identity: identity,
		hub:      newHub(),
	}
}

// taskRow is the database shape of a task. Conversion to the
// client-visible models.Task happens at every query boundary.
type taskRow struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	IsCompleted bool         `db:"is_completed"`
	Priority    string       `db:"priority"`
	Category    string       `db:"category"`
	DueDate     sql.NullTime `db:"due_date"`
	Tags        models.Tags  `db:"tags"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func rowToTask(r taskRow) models.Task {
	t := models.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		IsCompleted: r.IsCompleted,
		Priority:    models.Priority(r.Priority),
		Category:    r.Category,
		Tags:        r.Tags,
		CreatedAt:   timestamp.Canonical(r.CreatedAt),
		UpdatedAt:   timestamp.Canonical(r.UpdatedAt),
	}
	if r.DueDate.Valid {
		t.DueDate = timestamp.Canonical(r.DueDate.Time)
	}
	return t
}

func rowsToTasks(rows []taskRow) []models.Task {
	tasks := make([]models.Task, len(rows))
	for i, r := range rows {
		tasks[i] = rowToTask(r)
	}
	return tasks
}

func (s *SQLTaskStore) owner(ctx context.Context) (string, error) {
	id, err := s.identity.CurrentUserID(ctx)
	if err != nil || id == "" {
		return "", ErrAuthRequired
	}
	return id, nil
}

const taskColumns = "id, user_id, title, description, is_completed, priority, category, due_date, tags, created_at, updated_at"

func (s *SQLTaskStore) Create(ctx context.Context, input models.TaskInput) (models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.Task{}, err
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return models.Task{}, err
	}

	now := time.Now().UTC()
	row := taskRow{
		ID:          uuid.New().String(),
		UserID:      owner,
		Title:       input.Title,
		Description: input.Description,
		IsCompleted: false,
		Priority:    string(input.Priority),
		Category:    input.Category,
		Tags:        models.Tags(input.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.DueDate != nil {
		row.DueDate = sql.NullTime{Time: input.DueDate.UTC(), Valid: true}
	}

	q := s.db.Rebind(`INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, q,
		row.ID, row.UserID, row.Title, row.Description, row.IsCompleted,
		row.Priority, row.Category, row.DueDate, row.Tags, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return models.Task{}, transient("create task", err)
	}

	s.notifyTasks(ctx, owner)
	return rowToTask(row), nil
}

func (s *SQLTaskStore) GetByID(ctx context.Context, id string) (models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.Task{}, err
	}
	return s.getRow(ctx, owner, id)
}

func (s *SQLTaskStore) getRow(ctx context.Context, owner, id string) (models.Task, error) {
	var row taskRow
	q := s.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, id, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, transient("get task", err)
	}
	return rowToTask(row), nil
}

func (s *SQLTaskStore) List(ctx context.Context, opts ListOptions) ([]models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.listOwner(ctx, owner, opts)
}

func (s *SQLTaskStore) listOwner(ctx context.Context, owner string, opts ListOptions) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? ORDER BY ` + orderClause(opts.SortBy, opts.SortOrder)
	args := []interface{}{owner}

	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, transient("list tasks", err)
	}
	return rowsToTasks(rows), nil
}

// orderClause maps the sort field to SQL. The id tie-break keeps the
// order total even across equal field values.
func orderClause(sortBy models.SortBy, order models.SortOrder) string {
	dir := "DESC"
	if order == models.SortAsc {
		dir = "ASC"
	}

	var field string
	switch sortBy {
	case models.SortByDueDate:
		field = "due_date"
	case models.SortByTitle:
		field = "LOWER(title)"
	case models.SortByPriority:
		field = "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END"
	default:
		field = "created_at"
	}

	return fmt.Sprintf("%s %s, id ASC", field, dir)
}

func (s *SQLTaskStore) Update(ctx context.Context, id string, update models.TaskUpdate) (models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.Task{}, err
	}
	if err := update.Validate(); err != nil {
		return models.Task{}, err
	}

	sets, args := buildUpdate(update, time.Now().UTC())
	args = append(args, id, owner)

	q := s.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return models.Task{}, transient("update task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Task{}, ErrNotFound
	}

	s.notifyTasks(ctx, owner)
	return s.getRow(ctx, owner, id)
}

// buildUpdate turns a partial update into SET fragments. Fields merge:
// absent fields keep their stored value, updated_at always refreshes.
func buildUpdate(update models.TaskUpdate, now time.Time) ([]string, []interface{}) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{now}

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*update.Title))
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*update.Description))
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*update.Priority))
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, strings.TrimSpace(*update.Category))
	}
	if update.IsCompleted != nil {
		sets = append(sets, "is_completed = ?")
		args = append(args, *update.IsCompleted)
	}
	if update.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if update.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, update.DueDate.UTC())
	}
	if update.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, models.Tags(update.Tags))
	}

	return sets, args
}

// ToggleCompletion flips is_completed atomically: the current value is
// read inside a transaction and the write is guarded by it. When two
// toggles race and both read the same value, the loser's guarded write
// matches no row and the flip that already landed stands - a net single
// flip, never a double-flip back.
func (s *SQLTaskStore) ToggleCompletion(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return transient("toggle task", err)
	}

	observed, err := readCompletion(ctx, tx, owner, id)
	if err != nil {
		return rollback(tx, err)
	}

	// A lost race (applied == false) means the intended flip already
	// landed; commit without writing.
	if _, err := compareAndFlip(ctx, tx, owner, id, observed, time.Now().UTC()); err != nil {
		return rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return transient("toggle task", err)
	}

	s.notifyTasks(ctx, owner)
	return nil
}

func readCompletion(ctx context.Context, e sqlx.ExtContext, owner, id string) (bool, error) {
	var completed bool
	q := e.Rebind(`SELECT is_completed FROM tasks WHERE id = ? AND user_id = ?`)
	if err := sqlx.GetContext(ctx, e, &completed, q, id, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, transient("toggle task", err)
	}
	return completed, nil
}

func compareAndFlip(ctx context.Context, e sqlx.ExtContext, owner, id string, observed bool, now time.Time) (bool, error) {
	q := e.Rebind(`UPDATE tasks SET is_completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_completed = ?`)
	res, err := e.ExecContext(ctx, q, !observed, now, id, owner, observed)
	if err != nil {
		return false, transient("toggle task", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, transient("toggle task", err)
	}
	if n > 0 {
		return true, nil
	}

	// Guard missed: either the row is gone or another toggle won.
	var count int
	cq := e.Rebind(`SELECT COUNT(*) FROM tasks WHERE id = ? AND user_id = ?`)
	if err := sqlx.GetContext(ctx, e, &count, cq, id, owner); err != nil {
		return false, transient("toggle task", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *SQLTaskStore) Delete(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}

	q := s.db.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, id, owner)
	if err != nil {
		return transient("delete task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.notifyTasks(ctx, owner)
	return nil
}

// DeleteCompleted removes every completed task for the owner in one
// transaction: either all matched records go or none do. The count of
// removed records is returned.
func (s *SQLTaskStore) DeleteCompleted(ctx context.Context) (int, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, transient("delete completed tasks", err)
	}

	q := tx.Rebind(`DELETE FROM tasks WHERE user_id = ? AND is_completed = ?`)
	res, err := tx.ExecContext(ctx, q, owner, true)
	if err != nil {
		return 0, rollback(tx, transient("delete completed tasks", err))
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, rollback(tx, transient("delete completed tasks", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, transient("delete completed tasks", err)
	}

	if count > 0 {
		s.notifyTasks(ctx, owner)
	}
	return int(count), nil
}

func (s *SQLTaskStore) Search(ctx context.Context, term string) ([]models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	// No full-text index on the backend: fetch all owner records and
	// filter client-side. O(total task count), not paginated.
	all, err := s.listOwner(ctx, owner, ListOptions{SortBy: models.SortByCreatedAt, SortOrder: models.SortDesc})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	matched := make([]models.Task, 0, len(all))
	for _, t := range all {
		if taskMatches(t, needle) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func taskMatches(t models.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(t.Category), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *SQLTaskStore) ByPriority(ctx context.Context, p models.Priority) ([]models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	var rows []taskRow
	q := s.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = ? AND priority = ? ORDER BY created_at DESC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, owner, string(p)); err != nil {
		return nil, transient("list tasks by priority", err)
	}
	return rowsToTasks(rows), nil
}

func (s *SQLTaskStore) ByCompletion(ctx context.Context, completed bool) ([]models.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	var rows []taskRow
	q := s.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = ? AND is_completed = ? ORDER BY created_at DESC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, owner, completed); err != nil {
		return nil, transient("list tasks by completion", err)
	}
	return rowsToTasks(rows), nil
}

func (s *SQLTaskStore) Stats(ctx context.Context) (Stats, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return Stats{}, err
	}

	all, err := s.listOwner(ctx, owner, ListOptions{})
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, t := range all {
		st.Total++
		if t.IsCompleted {
			st.Completed++
		} else {
			st.Pending++
		}
		switch t.Priority {
		case models.PriorityHigh:
			st.HighPriority++
		case models.PriorityMedium:
			st.MediumPriority++
		case models.PriorityLow:
			st.LowPriority++
		}
	}
	return st, nil
}

// BatchUpdate applies several field patches in one transaction. Any
// failing patch rolls back the whole batch.
func (s *SQLTaskStore) BatchUpdate(ctx context.Context, patches []BatchPatch) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	for _, p := range patches {
		if err := p.Update.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return transient("batch update", err)
	}

	now := time.Now().UTC()
	for _, p := range patches {
		sets, args := buildUpdate(p.Update, now)
		args = append(args, p.ID, owner)

		q := tx.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return rollback(tx, transient("batch update", err))
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return rollback(tx, fmt.Errorf("batch update %s: %w", p.ID, ErrNotFound))
		}
	}

	if err := tx.Commit(); err != nil {
		return transient("batch update", err)
	}

	s.notifyTasks(ctx, owner)
	return nil
}

func (s *SQLTaskStore) Subscribe(ctx context.Context, onChange SnapshotFunc, sortBy models.SortBy, order models.SortOrder) (UnsubscribeFunc, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	opts := ListOptions{SortBy: sortBy, SortOrder: order}
	ch := s.hub.subscribe(taskKey(owner))

	var stopped atomic.Bool
	go func() {
		deliver := func() {
			tasks, err := s.listOwner(ctx, owner, opts)
			if err != nil {
				log.Printf("task subscription query failed: %v", err)
				return
			}
			if !stopped.Load() {
				onChange(tasks)
			}
		}

		deliver() // initial snapshot
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			s.hub.unsubscribe(taskKey(owner), ch)
		})
	}, nil
}

// Helper function for transaction rollback
func rollback(tx *sqlx.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

func taskKey(owner string) string    { return "tasks:" + owner }
func profileKey(owner string) string { return "profile:" + owner }
