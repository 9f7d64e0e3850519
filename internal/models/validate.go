// internal/models/validate.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Validation bounds
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
	MaxCategoryLength    = 100
	MaxTagLength         = 50
	MaxTagCount          = 20
)

// ValidationError reports malformed input caught before it reaches the
// remote store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TaskInput is the payload for creating a task.
type TaskInput struct {
	Title       string
	Description string
	Priority    Priority
	Category    string
	DueDate     *time.Time
	Tags        []string
}

// Normalize trims text fields, applies the default priority and removes
// duplicate tags while preserving insertion order.
func (in *TaskInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	in.Tags = dedupeTags(in.Tags)
}

func (in *TaskInput) Validate() error {
	if in.Title == "" {
		return invalid("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return invalid("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if in.Description == "" {
		return invalid("description", "description is required")
	}
	if len(in.Description) > MaxDescriptionLength {
		return invalid("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	}
	if !in.Priority.IsValid() {
		return invalid("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if len(in.Category) > MaxCategoryLength {
		return invalid("category", fmt.Sprintf("must be at most %d characters", MaxCategoryLength))
	}
	return validateTags(in.Tags)
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Priority     *Priority
	Category     *string
	IsCompleted  *bool
	DueDate      *time.Time
	ClearDueDate bool
	Tags         []string
}

func (u *TaskUpdate) Validate() error {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return invalid("title", "title is required")
		}
		if len(title) > MaxTitleLength {
			return invalid("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
		}
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		if desc == "" {
			return invalid("description", "description is required")
		}
		if len(desc) > MaxDescriptionLength {
			return invalid("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
		}
	}
	if u.Priority != nil && !u.Priority.IsValid() {
		return invalid("priority", fmt.Sprintf("unknown priority %q", *u.Priority))
	}
	if u.Category != nil && len(*u.Category) > MaxCategoryLength {
		return invalid("category", fmt.Sprintf("must be at most %d characters", MaxCategoryLength))
	}
	if u.Tags != nil {
		return validateTags(u.Tags)
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return invalid("tags", fmt.Sprintf("at most %d tags allowed", MaxTagCount))
	}
	for _, tag := range tags {
		if tag == "" {
			return invalid("tags", "empty tag")
		}
		if len(tag) > MaxTagLength {
			return invalid("tags", fmt.Sprintf("tag %q exceeds %d characters", tag, MaxTagLength))
		}
	}
	return nil
}

func dedupeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
