package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Priority levels
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Ordinal returns the sort weight of the priority (low=1, medium=2, high=3).
// Unknown priorities sort below low.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// Filter selects which tasks are shown
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
	FilterHigh      Filter = "high"
	FilterMedium    Filter = "medium"
	FilterLow       Filter = "low"
)

func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterCompleted, FilterPending, FilterHigh, FilterMedium, FilterLow:
		return true
	}
	return false
}

// SortBy selects the sort field
type SortBy string

const (
	SortByCreatedAt SortBy = "createdAt"
	SortByDueDate   SortBy = "dueDate"
	SortByPriority  SortBy = "priority"
	SortByTitle     SortBy = "title"
)

func (s SortBy) IsValid() bool {
	switch s {
	case SortByCreatedAt, SortByDueDate, SortByPriority, SortByTitle:
		return true
	}
	return false
}

// SortOrder selects the sort direction
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (s SortOrder) IsValid() bool {
	return s == SortAsc || s == SortDesc
}

// Tags is an insertion-ordered set of short strings, stored as a JSON
// array in a TEXT column so the same schema works on Postgres and SQLite.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return string(b), nil
}

func (t *Tags) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported tags type %T", src)
	}
}

// Task is the client-visible task record. Timestamps are canonical
// RFC3339 UTC strings; DueDate is empty when the task has no due date.
type Task struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	IsCompleted bool     `json:"isCompleted"`
	Priority    Priority `json:"priority"`
	Category    string   `json:"category,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        Tags     `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}
