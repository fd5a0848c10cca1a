package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nimbus.cloud/internal/ids"
)

// Service orchestrates sign-in and revocation: credential check, snapshot
// resolution, token issuance and marker writes.
type Service struct {
	users       UserStore
	credentials CredentialStore
	resolver    *Resolver
	issuer      *Issuer
	revocations RevocationRegistry
	now         Clock
}

// NewService constructs the orchestration service.
func NewService(users UserStore, credentials CredentialStore, resolver *Resolver, issuer *Issuer, revocations RevocationRegistry, opts ...ServiceOption) (*Service, error) {
	if users == nil || credentials == nil || resolver == nil || issuer == nil || revocations == nil {
		return nil, errors.New("auth: all service collaborators are required")
	}
	s := &Service{
		users:       users,
		credentials: credentials,
		resolver:    resolver,
		issuer:      issuer,
		revocations: revocations,
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn Clock) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// SignInResult is a freshly minted login session.
type SignInResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	LoginID     string    `json:"loginId"`
	User        User      `json:"user"`
}

// SignIn authenticates a credential and issues an access token embedding the
// caller's resolved workspace snapshots. Credential failures are
// indistinguishable from unknown users.
func (s *Service) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return SignInResult{}, ErrUnauthorized
	}
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SignInResult{}, ErrUnauthorized
		}
		return SignInResult{}, err
	}
	ok, err := s.credentials.Verify(ctx, user.ID, password)
	if err != nil {
		return SignInResult{}, fmt.Errorf("%w: credential store: %v", ErrUnavailable, err)
	}
	if !ok {
		return SignInResult{}, ErrUnauthorized
	}
	snapshots, err := s.resolver.ResolveAll(ctx, user.ID)
	if err != nil {
		return SignInResult{}, err
	}
	loginID := ids.New()
	token, expiresAt, err := s.issuer.IssueAccessToken(user, loginID, snapshots)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		LoginID:     loginID,
		User:        user,
	}, nil
}

// SignOut records a per-login revocation marker; access tokens from that
// session are rejected from here on, everything else is untouched.
func (s *Service) SignOut(ctx context.Context, loginID string) error {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return fmt.Errorf("%w: login id is required", ErrInvalidInput)
	}
	return s.revocations.RevokeLogin(ctx, loginID)
}

// RevokeUserSessions invalidates every outstanding access token of one user,
// typically on credential change.
func (s *Service) RevokeUserSessions(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.revocations.RevokeUser(ctx, userID)
}

// RevokeAllSessions invalidates every outstanding access token platform-wide
// (security incident response).
func (s *Service) RevokeAllSessions(ctx context.Context) error {
	return s.revocations.RevokeAll(ctx)
}
