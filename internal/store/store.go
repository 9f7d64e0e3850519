// internal/store/store.go
package store

import (
	"context"

	"tasksync/internal/models"
)

// ListOptions control ordering and pagination of task queries. Every
// ordering uses the chosen field with id as the final tie-break, so the
// order is total and stable across pages and snapshots.
type ListOptions struct {
	Limit     int
	Offset    int
	SortBy    models.SortBy
	SortOrder models.SortOrder
}

// BatchPatch is one element of a batched update.
type BatchPatch struct {
	ID     string
	Update models.TaskUpdate
}

// Stats summarize the owner's task collection.
type Stats struct {
	Total          int
	Completed      int
	Pending        int
	HighPriority   int
	MediumPriority int
	LowPriority    int
}

// SnapshotFunc receives the complete ordered result set, not a diff.
type SnapshotFunc func(tasks []models.Task)

// UnsubscribeFunc releases a live subscription. Safe to call more than
// once; only the first call has an effect.
type UnsubscribeFunc func()

// TaskStore is the sole integration point with the backend for task
// persistence. Every operation resolves the current owner first and
// fails with ErrAuthRequired when none is established.
type TaskStore interface {
	Create(ctx context.Context, input models.TaskInput) (models.Task, error)
	GetByID(ctx context.Context, id string) (models.Task, error)
	List(ctx context.Context, opts ListOptions) ([]models.Task, error)
	Update(ctx context.Context, id string, update models.TaskUpdate) (models.Task, error)
	ToggleCompletion(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context) (int, error)

	// Search is a case-insensitive substring match over title,
	// description, tags and category. The backend has no full-text
	// index: this fetches every owner record and filters client-side,
	// so it is O(total task count) and not paginated.
	Search(ctx context.Context, term string) ([]models.Task, error)
	ByPriority(ctx context.Context, p models.Priority) ([]models.Task, error)
	ByCompletion(ctx context.Context, completed bool) ([]models.Task, error)

	Stats(ctx context.Context) (Stats, error)
	BatchUpdate(ctx context.Context, patches []BatchPatch) error

	// Subscribe establishes a live feed: an initial snapshot, then one
	// full ordered snapshot after every change to the owner's
	// collection, from this client or another.
	Subscribe(ctx context.Context, onChange SnapshotFunc, sortBy models.SortBy, order models.SortOrder) (UnsubscribeFunc, error)
}

// ProfileInput creates or overwrites the owner's profile document.
type ProfileInput struct {
	Email       string
	DisplayName string
	Preferences *models.Preferences // nil means defaults
}

// ProfileUpdate is a partial profile update; nil fields are unchanged.
type ProfileUpdate struct {
	Email       *string
	DisplayName *string
	Preferences *models.Preferences
}

// ProfileFunc receives the owner's current profile document.
type ProfileFunc func(profile models.UserProfile)

// ProfileStore persists the per-user profile/preferences document.
type ProfileStore interface {
	CreateProfile(ctx context.Context, input ProfileInput) (models.UserProfile, error)
	GetProfile(ctx context.Context) (models.UserProfile, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) (models.UserProfile, error)
	SubscribeProfile(ctx context.Context, onChange ProfileFunc) (UnsubscribeFunc, error)
}
