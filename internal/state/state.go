// internal/state/state.go
package state

import (
	"context"
	"sync"

	"tasksync/internal/models"
	"tasksync/internal/query"
	"tasksync/internal/store"
	"tasksync/internal/timestamp"
)

// Snapshot is a copy of the client-visible state at one instant.
type Snapshot struct {
	Tasks       []models.Task
	Loading     bool
	Error       string
	Filter      models.Filter
	SortBy      models.SortBy
	SortOrder   models.SortOrder
	SearchQuery string
}

// Store merges asynchronous remote results with synchronous local
// intent and is the single source of truth for the presentation layer.
// It is an explicitly constructed, injected instance - never global.
//
// Remote snapshots always win: SetTasks is an unconditional replace, so
// an optimistic patch that loses the race with a snapshot is reverted
// and re-delivered by the next snapshot.
type Store struct {
	remote store.TaskStore

	mu          sync.Mutex
	tasks       []models.Task
	loading     bool
	err         string
	filter      models.Filter
	sortBy      models.SortBy
	sortOrder   models.SortOrder
	searchQuery string
}

func NewStore(remote store.TaskStore) *Store {
	return &Store{
		remote:    remote,
		filter:    models.FilterAll,
		sortBy:    models.SortByCreatedAt,
		sortOrder: models.SortDesc,
	}
}

// Fetch replaces tasks with a fresh page from the remote store. On
// failure the previous tasks are kept and only the error is recorded.
func (s *Store) Fetch(ctx context.Context, limit int) error {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	opts := store.ListOptions{Limit: limit, SortBy: s.sortBy, SortOrder: s.sortOrder}
	s.mu.Unlock()

	tasks, err := s.remote.List(ctx, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
		return err
	}
	s.tasks = dedupeByID(tasks)
	return nil
}

// Create delegates to the remote store. The new record is not spliced
// into tasks here: the live subscription delivers it, which prevents
// double-insertion.
func (s *Store) Create(ctx context.Context, input models.TaskInput) (models.Task, error) {
	created, err := s.remote.Create(ctx, input)
	if err != nil {
		s.fail(err)
		return models.Task{}, err
	}
	return created, nil
}

// Update patches the matching in-memory element on success. When no
// element with that id is present it is a no-op; the record arrives via
// subscription or fetch.
func (s *Store) Update(ctx context.Context, id string, update models.TaskUpdate) error {
	updated, err := s.remote.Update(ctx, id, update)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i] = updated
			break
		}
	}
	return nil
}

// Toggle flips isCompleted on the matching in-memory element after the
// remote flip succeeds. On rejection state is left untouched.
func (s *Store) Toggle(ctx context.Context, id string) error {
	if err := s.remote.ToggleCompletion(ctx, id); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].IsCompleted = !s.tasks[i].IsCompleted
			break
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.remote.Delete(ctx, id); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return nil
}

func (s *Store) DeleteCompleted(ctx context.Context) (int, error) {
	count, err := s.remote.DeleteCompleted(ctx)
	if err != nil {
		s.fail(err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.IsCompleted {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return count, nil
}

// SetTasks unconditionally replaces the task list; the subscription
// callback uses it, so the remote snapshot always wins over optimistic
// patches. Timestamps are re-normalized as defense in depth and
// duplicate ids are dropped keeping the first occurrence.
func (s *Store) SetTasks(tasks []models.Task) {
	normalized := make([]models.Task, len(tasks))
	for i, t := range tasks {
		t.CreatedAt = renormalize(t.CreatedAt)
		t.UpdatedAt = renormalize(t.UpdatedAt)
		t.DueDate = renormalize(t.DueDate)
		normalized[i] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = dedupeByID(normalized)
}

func (s *Store) SetFilter(f models.Filter) {
	if !f.IsValid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

func (s *Store) SetSorting(sortBy models.SortBy, order models.SortOrder) {
	if !sortBy.IsValid() || !order.IsValid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortBy = sortBy
	s.sortOrder = order
}

func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = q
}

// ClearError resets the error without touching tasks.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]models.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return Snapshot{
		Tasks:       tasks,
		Loading:     s.loading,
		Error:       s.err,
		Filter:      s.filter,
		SortBy:      s.sortBy,
		SortOrder:   s.sortOrder,
		SearchQuery: s.searchQuery,
	}
}

// Visible returns the filtered, searched and sorted projection of the
// current task list.
func (s *Store) Visible() []models.Task {
	s.mu.Lock()
	tasks := make([]models.Task, len(s.tasks))
	copy(tasks, s.tasks)
	filter, sortBy, order, search := s.filter, s.sortBy, s.sortOrder, s.searchQuery
	s.mu.Unlock()

	return query.Project(tasks, filter, sortBy, order, search)
}

// StartSync attaches the live feed: every remote snapshot replaces the
// task list via SetTasks. onUpdate, when non-nil, runs after each
// applied snapshot. The returned stop function releases the feed and is
// safe to call more than once.
func (s *Store) StartSync(ctx context.Context, onUpdate func()) (store.UnsubscribeFunc, error) {
	s.mu.Lock()
	sortBy, order := s.sortBy, s.sortOrder
	s.mu.Unlock()

	unsubscribe, err := s.remote.Subscribe(ctx, func(tasks []models.Task) {
		s.SetTasks(tasks)
		if onUpdate != nil {
			onUpdate()
		}
	}, sortBy, order)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	return unsubscribe, nil
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err.Error()
}

func renormalize(v string) string {
	if v == "" {
		return ""
	}
	normalized, err := timestamp.Normalize(v)
	if err != nil {
		return v
	}
	return normalized
}

func dedupeByID(tasks []models.Task) []models.Task {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
