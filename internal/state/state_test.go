package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/models"
	"tasksync/internal/store"
)

// fakeStore is an in-memory TaskStore with injectable failures, in the
// spirit of the mock service implementations used for development.
type fakeStore struct {
	tasks    []models.Task
	failWith error
	snapshot store.SnapshotFunc
	nextID   int
}

func (f *fakeStore) Create(ctx context.Context, input models.TaskInput) (models.Task, error) {
	if f.failWith != nil {
		return models.Task{}, f.failWith
	}
	f.nextID++
	t := models.Task{
		ID:          string(rune('a' + f.nextID)),
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		CreatedAt:   "2024-01-01T00:00:00Z",
		UpdatedAt:   "2024-01-01T00:00:00Z",
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (models.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, store.ErrNotFound
}

func (f *fakeStore) List(ctx context.Context, opts store.ListOptions) ([]models.Task, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]models.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, update models.TaskUpdate) (models.Task, error) {
	if f.failWith != nil {
		return models.Task{}, f.failWith
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			if update.Title != nil {
				f.tasks[i].Title = *update.Title
			}
			return f.tasks[i], nil
		}
	}
	return models.Task{}, store.ErrNotFound
}

func (f *fakeStore) ToggleCompletion(ctx context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].IsCompleted = !f.tasks[i].IsCompleted
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) DeleteCompleted(ctx context.Context) (int, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	kept := f.tasks[:0]
	count := 0
	for _, t := range f.tasks {
		if t.IsCompleted {
			count++
		} else {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return count, nil
}

func (f *fakeStore) Search(ctx context.Context, term string) ([]models.Task, error) {
	return nil, nil
}

func (f *fakeStore) ByPriority(ctx context.Context, p models.Priority) ([]models.Task, error) {
	return nil, nil
}

func (f *fakeStore) ByCompletion(ctx context.Context, completed bool) ([]models.Task, error) {
	return nil, nil
}

func (f *fakeStore) Stats(ctx context.Context) (store.Stats, error) {
	return store.Stats{}, nil
}

func (f *fakeStore) BatchUpdate(ctx context.Context, patches []store.BatchPatch) error {
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, onChange store.SnapshotFunc, sortBy models.SortBy, order models.SortOrder) (store.UnsubscribeFunc, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.snapshot = onChange
	return func() { f.snapshot = nil }, nil
}

func seeded() *fakeStore {
	return &fakeStore{tasks: []models.Task{
		{ID: "1", Title: "Buy milk", Priority: models.PriorityLow, CreatedAt: "2024-01-01T10:00:00Z", UpdatedAt: "2024-01-01T10:00:00Z"},
		{ID: "2", Title: "Pay rent", Priority: models.PriorityHigh, IsCompleted: true, CreatedAt: "2024-01-02T10:00:00Z", UpdatedAt: "2024-01-02T10:00:00Z"},
		{ID: "3", Title: "Call mom", Priority: models.PriorityMedium, CreatedAt: "2024-01-03T10:00:00Z", UpdatedAt: "2024-01-03T10:00:00Z"},
	}}
}

func TestFetch_ReplacesTasks(t *testing.T) {
	s := NewStore(seeded())

	require.NoError(t, s.Fetch(context.Background(), 0))

	snap := s.Snapshot()
	assert.Len(t, snap.Tasks, 3)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
}

func TestFetch_ErrorKeepsTasks(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	fake.failWith = errors.New("network down")
	err := s.Fetch(context.Background(), 0)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Tasks, 3, "tasks must survive a failed fetch")
	assert.Equal(t, "network down", snap.Error)
	assert.False(t, snap.Loading)
}

func TestCreate_DoesNotSpliceLocally(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	_, err := s.Create(context.Background(), models.TaskInput{Title: "New", Description: "d"})
	require.NoError(t, err)

	// The subscription is expected to deliver the new record; splicing
	// it here would double-insert.
	assert.Len(t, s.Snapshot().Tasks, 3)
}

func TestCreate_ErrorSurfaced(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	fake.failWith = errors.New("quota exceeded")
	_, err := s.Create(context.Background(), models.TaskInput{Title: "New", Description: "d"})
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "quota exceeded", snap.Error)
	assert.Len(t, snap.Tasks, 3)
}

func TestUpdate_PatchesInPlace(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	title := "Buy oat milk"
	require.NoError(t, s.Update(context.Background(), "1", models.TaskUpdate{Title: &title}))

	snap := s.Snapshot()
	assert.Equal(t, "Buy oat milk", snap.Tasks[0].Title)
	assert.Equal(t, "1", snap.Tasks[0].ID)
}

func TestUpdate_MissingIDIsNoOp(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	// No fetch: local list is empty, the update settles remotely only.
	title := "x"
	require.NoError(t, s.Update(context.Background(), "1", models.TaskUpdate{Title: &title}))
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestToggle_FlipsInPlace(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	require.NoError(t, s.Toggle(context.Background(), "1"))
	assert.True(t, s.Snapshot().Tasks[0].IsCompleted)
}

func TestToggle_ErrorLeavesStateUntouched(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	fake.failWith = store.ErrNotFound
	err := s.Toggle(context.Background(), "1")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.Tasks[0].IsCompleted)
	assert.NotEmpty(t, snap.Error)
}

func TestDelete_RemovesByID(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	require.NoError(t, s.Delete(context.Background(), "2"))

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 2)
	for _, task := range snap.Tasks {
		assert.NotEqual(t, "2", task.ID)
	}
}

func TestDeleteCompleted_RemovesCompleted(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	count, err := s.DeleteCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for _, task := range s.Snapshot().Tasks {
		assert.False(t, task.IsCompleted)
	}
}

func TestSetTasks_ReplacesAndDedupes(t *testing.T) {
	s := NewStore(seeded())

	s.SetTasks([]models.Task{
		{ID: "1", Title: "first"},
		{ID: "1", Title: "duplicate"},
		{ID: "2", Title: "second"},
	})

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, "first", snap.Tasks[0].Title, "first occurrence wins")
}

func TestSetTasks_RenormalizesTimestamps(t *testing.T) {
	s := NewStore(seeded())

	s.SetTasks([]models.Task{
		{ID: "1", CreatedAt: "2024-03-01T12:00:00+02:00", UpdatedAt: "2024-03-01T12:00:00+02:00"},
	})

	got := s.Snapshot().Tasks[0]
	assert.Equal(t, "2024-03-01T10:00:00Z", got.CreatedAt)
	assert.Equal(t, "2024-03-01T10:00:00Z", got.UpdatedAt)
	assert.Empty(t, got.DueDate)
}

func TestSetters(t *testing.T) {
	s := NewStore(seeded())

	s.SetFilter(models.FilterPending)
	s.SetSorting(models.SortByPriority, models.SortAsc)
	s.SetSearchQuery("milk")

	snap := s.Snapshot()
	assert.Equal(t, models.FilterPending, snap.Filter)
	assert.Equal(t, models.SortByPriority, snap.SortBy)
	assert.Equal(t, models.SortAsc, snap.SortOrder)
	assert.Equal(t, "milk", snap.SearchQuery)

	// Illegal values never land.
	s.SetFilter("bogus")
	s.SetSorting("bogus", "sideways")
	snap = s.Snapshot()
	assert.Equal(t, models.FilterPending, snap.Filter)
	assert.Equal(t, models.SortByPriority, snap.SortBy)
}

func TestClearError(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)
	require.NoError(t, s.Fetch(context.Background(), 0))

	fake.failWith = errors.New("boom")
	_ = s.Fetch(context.Background(), 0)
	require.NotEmpty(t, s.Snapshot().Error)

	s.ClearError()
	snap := s.Snapshot()
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Tasks, 3)
}

func TestVisible_AppliesProjection(t *testing.T) {
	s := NewStore(seeded())
	require.NoError(t, s.Fetch(context.Background(), 0))

	s.SetFilter(models.FilterPending)
	s.SetSorting(models.SortByPriority, models.SortDesc)

	visible := s.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "Call mom", visible[0].Title)
	assert.Equal(t, "Buy milk", visible[1].Title)
}

func TestStartSync_SnapshotAlwaysWins(t *testing.T) {
	fake := seeded()
	s := NewStore(fake)

	updates := 0
	stop, err := s.StartSync(context.Background(), func() { updates++ })
	require.NoError(t, err)
	defer stop()

	// Simulate a remote snapshot arriving over the live feed.
	fake.snapshot([]models.Task{{ID: "9", Title: "remote truth"}})

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "remote truth", snap.Tasks[0].Title)
	assert.Equal(t, 1, updates)

	stop()
	assert.Nil(t, fake.snapshot, "unsubscribe must release the feed")
	stop() // second call is a no-op
}

func TestStartSync_SubscribeError(t *testing.T) {
	fake := seeded()
	fake.failWith = errors.New("no listener")
	s := NewStore(fake)

	_, err := s.StartSync(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "no listener", s.Snapshot().Error)
}
