// internal/models/profile.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Preferences is the per-user settings document, stored as JSON text.
type Preferences struct {
	DefaultPriority      Priority  `json:"defaultPriority"`
	AutoDeleteCompleted  bool      `json:"autoDeleteCompleted"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	SortBy               SortBy    `json:"sortBy"`
	SortOrder            SortOrder `json:"sortOrder"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DefaultPriority:      PriorityMedium,
		AutoDeleteCompleted:  false,
		NotificationsEnabled: true,
		SortBy:               SortByCreatedAt,
		SortOrder:            SortDesc,
	}
}

func (p Preferences) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	return string(b), nil
}

func (p *Preferences) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = DefaultPreferences()
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported preferences type %T", src)
	}
}

// UserProfile is the client-visible profile record. Timestamps are
// canonical RFC3339 UTC strings, like Task.
type UserProfile struct {
	UserID      string      `json:"userId"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
}
