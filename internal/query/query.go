// internal/query/query.go
package query

import (
	"sort"
	"strings"
	"time"

	"tasksync/internal/models"
	"tasksync/internal/timestamp"
)

// Project computes the filtered, searched and sorted view of tasks.
// It is a pure function: the input slice is never mutated and identical
// inputs produce identical output.
//
// Order of operations: search, then filter, then a stable sort. Descending
// order inverts the same comparator used for ascending, so tie-breaking
// (input order) is identical in both directions.
func Project(tasks []models.Task, filter models.Filter, sortBy models.SortBy, order models.SortOrder, searchQuery string) []models.Task {
	out := make([]models.Task, 0, len(tasks))

	term := strings.ToLower(strings.TrimSpace(searchQuery))
	for _, t := range tasks {
		if term != "" && !matchesSearch(t, term) {
			continue
		}
		if !matchesFilter(t, filter) {
			continue
		}
		out = append(out, t)
	}

	cmp := comparator(sortBy)
	desc := order == models.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})

	return out
}

func matchesSearch(t models.Task, term string) bool {
	if strings.Contains(strings.ToLower(t.Title), term) ||
		strings.Contains(strings.ToLower(t.Description), term) ||
		strings.Contains(strings.ToLower(t.Category), term) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func matchesFilter(t models.Task, filter models.Filter) bool {
	switch filter {
	case models.FilterCompleted:
		return t.IsCompleted
	case models.FilterPending:
		return !t.IsCompleted
	case models.FilterHigh:
		return t.Priority == models.PriorityHigh
	case models.FilterMedium:
		return t.Priority == models.PriorityMedium
	case models.FilterLow:
		return t.Priority == models.PriorityLow
	default:
		return true
	}
}

// comparator returns a three-way comparison for the sort field.
func comparator(sortBy models.SortBy) func(a, b models.Task) int {
	switch sortBy {
	case models.SortByDueDate:
		return func(a, b models.Task) int {
			return compareInstants(a.DueDate, b.DueDate)
		}
	case models.SortByPriority:
		return func(a, b models.Task) int {
			return a.Priority.Ordinal() - b.Priority.Ordinal()
		}
	case models.SortByTitle:
		return func(a, b models.Task) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	default: // createdAt
		return func(a, b models.Task) int {
			return compareInstants(a.CreatedAt, b.CreatedAt)
		}
	}
}

// compareInstants compares two canonical timestamp strings as instants.
// Missing or unparseable values sort as the epoch, i.e. lowest.
func compareInstants(a, b string) int {
	ta, tb := asInstant(a), asInstant(b)
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	default:
		return 0
	}
}

func asInstant(s string) time.Time {
	if s == "" {
		return time.Unix(0, 0)
	}
	t, err := timestamp.ParseCanonical(s)
	if err != nil {
		return time.Unix(0, 0)
	}
	return t
}
