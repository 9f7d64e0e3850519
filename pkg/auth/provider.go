package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned when no owner identity is established.
var ErrNoIdentity = errors.New("no authenticated user")

// Provider exposes the current owner identifier, or ErrNoIdentity when
// no identity is established. The store treats the latter as a hard
// precondition failure for every operation.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Static is a fixed-identity provider, used for the guest/local mode
// and in tests.
type Static struct {
	UserID string
}

func NewStatic(userID string) *Static {
	return &Static{UserID: userID}
}

func (s *Static) CurrentUserID(ctx context.Context) (string, error) {
	if s == nil || s.UserID == "" {
		return "", ErrNoIdentity
	}
	return s.UserID, nil
}
