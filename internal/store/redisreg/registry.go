// Package redisreg implements the revocation registry on Redis. Markers are
// epoch-millisecond timestamps stored under TTL-bearing keys; a token is
// revoked when its issue time precedes any applicable marker.
package redisreg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nimbus.cloud/internal/auth"
)

const (
	globalKey   = "token:global-user-exp"
	userKeyFmt  = "token:user-%s-exp"
	loginKeyFmt = "token:login-%s-exp"
)

var _ auth.RevocationRegistry = (*Registry)(nil)

// Registry stores revocation markers in Redis.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	now    auth.Clock
}

// Option configures Registry behavior.
type Option func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn auth.Clock) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// New constructs a Registry. ttl should be the access-token validity plus a
// buffer, so a marker expires only once every token it could invalidate has
// already died of old age.
func New(client *redis.Client, ttl time.Duration, opts ...Option) (*Registry, error) {
	if client == nil {
		return nil, errors.New("redisreg: client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("redisreg: marker ttl must be positive")
	}
	r := &Registry{client: client, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewClient builds the Redis client used by the registry.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// RevokeLogin invalidates access tokens of one login session issued before
// now.
func (r *Registry) RevokeLogin(ctx context.Context, loginID string) error {
	if loginID == "" {
		return fmt.Errorf("%w: login id is required", auth.ErrInvalidInput)
	}
	return r.mark(ctx, fmt.Sprintf(loginKeyFmt, loginID))
}

// RevokeUser invalidates all of a user's access tokens issued before now.
func (r *Registry) RevokeUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	return r.mark(ctx, fmt.Sprintf(userKeyFmt, userID))
}

// RevokeAll invalidates every access token issued before now, platform-wide.
func (r *Registry) RevokeAll(ctx context.Context) error {
	return r.mark(ctx, globalKey)
}

// mark writes the marker as a max-timestamp: a repeat call records the same
// or a later instant, never an earlier one. Two racing writers both carry
// "now", so the losing write is within clock skew of the winner, which the
// idempotence contract permits.
func (r *Registry) mark(ctx context.Context, key string) error {
	ts := r.now().UTC().UnixMilli()
	prev, err := r.client.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil && prev > ts {
		ts = prev
	}
	return r.client.Set(ctx, key, ts, r.ttl).Err()
}

// Markers reads the three applicable markers in one pipelined round trip.
func (r *Registry) Markers(ctx context.Context, userID, loginID string) (auth.RevocationMarkers, error) {
	var globalCmd, userCmd, loginCmd *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		globalCmd = p.Get(ctx, globalKey)
		userCmd = p.Get(ctx, fmt.Sprintf(userKeyFmt, userID))
		loginCmd = p.Get(ctx, fmt.Sprintf(loginKeyFmt, loginID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return auth.RevocationMarkers{}, err
	}
	markers := auth.RevocationMarkers{}
	if markers.Global, err = markerTime(globalCmd); err != nil {
		return auth.RevocationMarkers{}, err
	}
	if markers.User, err = markerTime(userCmd); err != nil {
		return auth.RevocationMarkers{}, err
	}
	if markers.Login, err = markerTime(loginCmd); err != nil {
		return auth.RevocationMarkers{}, err
	}
	return markers, nil
}

func markerTime(cmd *redis.StringCmd) (time.Time, error) {
	raw, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redisreg: malformed marker %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
