package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultAPITokenCacheTTL = 30 * time.Second

// Validator verifies presented credentials. Access tokens are checked
// against their signature, validity window and the revocation registry;
// API tokens against their persisted record. Both normalize into
// AuthenticationData.
type Validator struct {
	secret      []byte
	issuer      string
	audience    string
	revocations RevocationRegistry
	tokens      APITokenStore
	now         Clock

	// cacheTTL bounds storage load on the API token path at the cost of
	// delaying revocation visibility by at most the same duration.
	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cachedAPIToken
}

type cachedAPIToken struct {
	token   APIToken
	fetched time.Time
}

// ValidatorOption configures Validator behavior.
type ValidatorOption func(*Validator) error

// WithValidatorIssuer sets the expected iss claim.
func WithValidatorIssuer(name string) ValidatorOption {
	return func(v *Validator) error {
		if strings.TrimSpace(name) != "" {
			v.issuer = strings.TrimSpace(name)
		}
		return nil
	}
}

// WithValidatorAudience sets the expected aud claim.
func WithValidatorAudience(aud string) ValidatorOption {
	return func(v *Validator) error {
		if strings.TrimSpace(aud) != "" {
			v.audience = strings.TrimSpace(aud)
		}
		return nil
	}
}

// WithAPITokenCacheTTL tunes how long API token records are served from the
// in-process cache before the store is consulted again. Zero disables the
// cache.
func WithAPITokenCacheTTL(d time.Duration) ValidatorOption {
	return func(v *Validator) error {
		if d >= 0 {
			v.cacheTTL = d
		}
		return nil
	}
}

// WithValidatorClock overrides the time source (useful for tests).
func WithValidatorClock(fn Clock) ValidatorOption {
	return func(v *Validator) error {
		if fn != nil {
			v.now = fn
		}
		return nil
	}
}

// NewValidator constructs a Validator.
func NewValidator(secret string, revocations RevocationRegistry, tokens APITokenStore, opts ...ValidatorOption) (*Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	if revocations == nil {
		return nil, errors.New("auth: revocation registry is required")
	}
	v := &Validator{
		secret:      []byte(secret),
		issuer:      "nimbus",
		audience:    "nimbus.cloud",
		revocations: revocations,
		tokens:      tokens,
		now:         time.Now,
		cacheTTL:    defaultAPITokenCacheTTL,
		cache:       make(map[string]cachedAPIToken),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Validate authenticates the Authorization header value. API tokens are
// recognized by their prefix; everything else is treated as a JWT. An
// optional Bearer scheme is tolerated on both.
func (v *Validator) Validate(ctx context.Context, header, clientIP string) (AuthenticationData, error) {
	raw := strings.TrimSpace(header)
	if after, ok := strings.CutPrefix(raw, "Bearer "); ok {
		raw = strings.TrimSpace(after)
	}
	if raw == "" {
		return nil, ErrMalformedToken
	}
	if strings.HasPrefix(raw, APITokenPrefix) {
		token, err := v.ValidateAPIToken(ctx, raw, clientIP)
		if err != nil {
			return nil, err
		}
		return apiTokenData{token: token}, nil
	}
	return v.ValidateAccessToken(ctx, raw)
}

// ValidateAccessToken verifies signature and validity window, then consults
// the revocation registry. A registry failure denies; it is never read as
// "no markers found".
func (v *Validator) ValidateAccessToken(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformedToken
		}
		return v.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrMalformedToken)
	}
	if len(claims.Audience) > 0 && !audienceContains(claims.Audience, v.audience) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrMalformedToken)
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.User.ID == "" {
		return nil, fmt.Errorf("%w: identity claims missing", ErrMalformedToken)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: timestamps missing", ErrMalformedToken)
	}
	now := v.now().UTC()
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrMalformedToken)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	markers, err := v.revocations.Markers(ctx, claims.User.ID, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: revocation registry: %v", ErrUnavailable, err)
	}
	if markers.Revokes(claims.IssuedAt.Time) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// ValidateAPIToken looks up the record behind an opaque credential and
// checks liveness, revocation and the caller IP allow-list.
func (v *Validator) ValidateAPIToken(ctx context.Context, raw, clientIP string) (APIToken, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(raw), APITokenPrefix)
	if !ok {
		return APIToken{}, ErrMalformedToken
	}
	id, secret, ok := strings.Cut(body, ".")
	if !ok || id == "" || secret == "" {
		return APIToken{}, ErrMalformedToken
	}
	token, err := v.lookupAPIToken(ctx, id)
	if err != nil {
		return APIToken{}, err
	}
	// hash mismatch reads as not-found so a guessed id leaks nothing
	if !secretMatchesHash(secret, token.TokenHash) {
		return APIToken{}, ErrNotFound
	}
	if token.Revoked {
		return APIToken{}, ErrRevokedToken
	}
	now := v.now().UTC()
	if now.Before(token.NotBefore) {
		return APIToken{}, fmt.Errorf("%w: token not yet valid", ErrExpiredToken)
	}
	if token.Expiry != nil && !now.Before(*token.Expiry) {
		return APIToken{}, ErrExpiredToken
	}
	if len(token.AllowedIPs) > 0 {
		if !ipAllowed(clientIP, token.AllowedIPs) {
			return APIToken{}, ErrIPNotAllowed
		}
	}
	return token, nil
}

func (v *Validator) lookupAPIToken(ctx context.Context, id string) (APIToken, error) {
	if v.tokens == nil {
		return APIToken{}, fmt.Errorf("%w: api token store not configured", ErrUnavailable)
	}
	now := v.now()
	if v.cacheTTL > 0 {
		v.mu.Lock()
		entry, ok := v.cache[id]
		v.mu.Unlock()
		if ok && now.Sub(entry.fetched) < v.cacheTTL {
			return entry.token, nil
		}
	}
	token, err := v.tokens.GetAPIToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return APIToken{}, ErrNotFound
		}
		return APIToken{}, fmt.Errorf("%w: api token store: %v", ErrUnavailable, err)
	}
	if v.cacheTTL > 0 {
		v.mu.Lock()
		v.cache[id] = cachedAPIToken{token: token, fetched: now}
		v.mu.Unlock()
	}
	return token, nil
}

func secretMatchesHash(secret, expectedHash string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(actual) != len(expectedHash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHash)) == 1
}

func ipAllowed(clientIP string, blocks []string) bool {
	ip := net.ParseIP(strings.TrimSpace(clientIP))
	if ip == nil {
		return false
	}
	for _, block := range blocks {
		_, network, err := net.ParseCIDR(block)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
