// internal/store/profile.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tasksync/internal/models"
	"tasksync/internal/timestamp"
)

type profileRow struct {
	UserID      string             `db:"user_id"`
	Email       string             `db:"email"`
	DisplayName string             `db:"display_name"`
	Preferences models.Preferences `db:"preferences"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

func rowToProfile(r profileRow) models.UserProfile {
	return models.UserProfile{
		UserID:      r.UserID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Preferences: r.Preferences,
		CreatedAt:   timestamp.Canonical(r.CreatedAt),
		UpdatedAt:   timestamp.Canonical(r.UpdatedAt),
	}
}

const profileColumns = "user_id, email, display_name, preferences, created_at, updated_at"

// CreateProfile writes the owner's profile document, overwriting any
// existing one (the profile is a singleton per owner).
func (s *SQLTaskStore) CreateProfile(ctx context.Context, input ProfileInput) (models.UserProfile, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}

	prefs := models.DefaultPreferences()
	if input.Preferences != nil {
		prefs = *input.Preferences
	}

	now := time.Now().UTC()
	row := profileRow{
		UserID:      owner,
		Email:       strings.TrimSpace(input.Email),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Preferences: prefs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q := s.db.Rebind(`INSERT INTO user_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			preferences = excluded.preferences,
			updated_at = excluded.updated_at`)
	_, err = s.db.ExecContext(ctx, q,
		row.UserID, row.Email, row.DisplayName, row.Preferences, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return models.UserProfile{}, transient("create profile", err)
	}

	s.notifyProfile(ctx, owner)
	return rowToProfile(row), nil
}

func (s *SQLTaskStore) GetProfile(ctx context.Context) (models.UserProfile, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	return s.getProfileRow(ctx, owner)
}

func (s *SQLTaskStore) getProfileRow(ctx context.Context, owner string) (models.UserProfile, error) {
	var row profileRow
	q := s.db.Rebind(`SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserProfile{}, ErrNotFound
		}
		return models.UserProfile{}, transient("get profile", err)
	}
	return rowToProfile(row), nil
}

func (s *SQLTaskStore) UpdateProfile(ctx context.Context, update ProfileUpdate) (models.UserProfile, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.TrimSpace(*update.Email))
	}
	if update.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, strings.TrimSpace(*update.DisplayName))
	}
	if update.Preferences != nil {
		sets = append(sets, "preferences = ?")
		args = append(args, *update.Preferences)
	}
	args = append(args, owner)

	q := s.db.Rebind(`UPDATE user_profiles SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return models.UserProfile{}, transient("update profile", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.UserProfile{}, ErrNotFound
	}

	s.notifyProfile(ctx, owner)
	return s.getProfileRow(ctx, owner)
}

func (s *SQLTaskStore) SubscribeProfile(ctx context.Context, onChange ProfileFunc) (UnsubscribeFunc, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	ch := s.hub.subscribe(profileKey(owner))

	var stopped atomic.Bool
	go func() {
		deliver := func() {
			profile, err := s.getProfileRow(ctx, owner)
			if err != nil {
				if !IsNotFound(err) {
					log.Printf("profile subscription query failed: %v", err)
				}
				return
			}
			if !stopped.Load() {
				onChange(profile)
			}
		}

		deliver()
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
			s.hub.unsubscribe(profileKey(owner), ch)
		})
	}, nil
}
