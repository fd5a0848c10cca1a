package auth

import (
	"context"
	"time"
)

// RevocationMarkers carries the timestamps applicable to one token. A zero
// time means no marker exists at that scope.
type RevocationMarkers struct {
	Global time.Time
	User   time.Time
	Login  time.Time
}

// Revokes reports whether a token issued at iat is invalidated by any of the
// markers. A marker invalidates every token issued strictly before it.
func (m RevocationMarkers) Revokes(iat time.Time) bool {
	for _, ts := range [...]time.Time{m.Global, m.User, m.Login} {
		if !ts.IsZero() && iat.Before(ts) {
			return true
		}
	}
	return false
}

// RevocationRegistry records invalidation markers at three granularities.
// Writes are idempotent: revoking the same scope twice records the same or a
// later timestamp, never a counter. Markers carry a TTL of the access-token
// validity plus a buffer, so they expire once no token old enough to need
// them can still exist.
type RevocationRegistry interface {
	RevokeLogin(ctx context.Context, loginID string) error
	RevokeUser(ctx context.Context, userID string) error
	RevokeAll(ctx context.Context) error
	// Markers reads the global, per-user and per-login markers, pipelined
	// into a single round trip.
	Markers(ctx context.Context, userID, loginID string) (RevocationMarkers, error)
}
