// internal/models/task_test.go
package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskInput_NormalizeDefaults(t *testing.T) {
	in := TaskInput{
		Title:       "  Buy milk  ",
		Description: " weekly groceries ",
		Category:    " home ",
		Tags:        []string{" a ", "b", "a", "", "b"},
	}

	in.Normalize()

	assert.Equal(t, "Buy milk", in.Title)
	assert.Equal(t, "weekly groceries", in.Description)
	assert.Equal(t, "home", in.Category)
	assert.Equal(t, PriorityMedium, in.Priority)
	assert.Equal(t, []string{"a", "b"}, in.Tags, "duplicates removed, insertion order kept")
}

func TestTaskInput_Validate(t *testing.T) {
	due := time.Now()
	valid := func() TaskInput {
		return TaskInput{
			Title:       "Buy milk",
			Description: "weekly groceries",
			Priority:    PriorityLow,
			DueDate:     &due,
			Tags:        []string{"home"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*TaskInput)
		wantErr string
	}{
		{"valid", func(in *TaskInput) {}, ""},
		{"missing title", func(in *TaskInput) { in.Title = "" }, "title"},
		{"title too long", func(in *TaskInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }, "title"},
		{"missing description", func(in *TaskInput) { in.Description = "" }, "description"},
		{"description too long", func(in *TaskInput) { in.Description = strings.Repeat("x", MaxDescriptionLength+1) }, "description"},
		{"bad priority", func(in *TaskInput) { in.Priority = "urgent" }, "priority"},
		{"category too long", func(in *TaskInput) { in.Category = strings.Repeat("x", MaxCategoryLength+1) }, "category"},
		{"tag too long", func(in *TaskInput) { in.Tags = []string{strings.Repeat("x", MaxTagLength+1)} }, "tags"},
		{"too many tags", func(in *TaskInput) {
			in.Tags = make([]string, MaxTagCount+1)
			for i := range in.Tags {
				in.Tags[i] = "t"
			}
		}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestTaskUpdate_Validate(t *testing.T) {
	empty := ""
	long := strings.Repeat("x", MaxTitleLength+1)
	bad := Priority("urgent")
	good := PriorityHigh

	assert.NoError(t, (&TaskUpdate{}).Validate(), "empty update only refreshes updatedAt")
	assert.NoError(t, (&TaskUpdate{Priority: &good}).Validate())
	assert.Error(t, (&TaskUpdate{Title: &empty}).Validate())
	assert.Error(t, (&TaskUpdate{Title: &long}).Validate())
	assert.Error(t, (&TaskUpdate{Description: &empty}).Validate())
	assert.Error(t, (&TaskUpdate{Priority: &bad}).Validate())
	assert.Error(t, (&TaskUpdate{Tags: []string{""}}).Validate())
}

func TestPriorityOrdinal(t *testing.T) {
	assert.Equal(t, 1, PriorityLow.Ordinal())
	assert.Equal(t, 2, PriorityMedium.Ordinal())
	assert.Equal(t, 3, PriorityHigh.Ordinal())
	assert.Equal(t, 0, Priority("critical").Ordinal())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, FilterAll.IsValid())
	assert.True(t, FilterLow.IsValid())
	assert.False(t, Filter("urgent").IsValid())

	assert.True(t, SortByDueDate.IsValid())
	assert.False(t, SortBy("updatedAt").IsValid())

	assert.True(t, SortAsc.IsValid())
	assert.False(t, SortOrder("random").IsValid())
}

func TestTags_ValueScanRoundTrip(t *testing.T) {
	original := Tags{"home", "urgent"}

	v, err := original.Value()
	require.NoError(t, err)

	var scanned Tags
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, original, scanned)

	var fromNil Tags
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, Tags{}, fromNil)
}

func TestPreferences_Defaults(t *testing.T) {
	p := DefaultPreferences()
	assert.Equal(t, PriorityMedium, p.DefaultPriority)
	assert.Equal(t, SortByCreatedAt, p.SortBy)
	assert.Equal(t, SortDesc, p.SortOrder)
	assert.True(t, p.NotificationsEnabled)
	assert.False(t, p.AutoDeleteCompleted)
}
