package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession is returned when a session id is unknown or expired.
var ErrNoSession = errors.New("no such session")

// Session is the ephemeral association between a request and a user.
// Lifecycle: created at login, destroyed at logout or when MaxAge passes.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store keeps live sessions. Implementations must enforce expiry: Get on
// an expired session behaves exactly like Get on an unknown id.
type Store interface {
	Create(ctx context.Context, userID int64, email string, maxAge time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
