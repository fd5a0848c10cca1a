package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nimbus.cloud/internal/ids"
)

const (
	// APITokenPrefix tags every API token secret so the validator can
	// disambiguate it from a JWT in the Authorization header.
	APITokenPrefix = "nbp_"

	defaultAccessTokenValidity = 72 * time.Hour
	apiTokenSecretBytes        = 32
)

// Claims is the access token payload. The per-workspace snapshots travel
// inside the token, which is what makes its validation DB-free.
type Claims struct {
	User        User                                   `json:"user"`
	Permissions map[string]WorkspacePermissionSnapshot `json:"workspacePermissions"`
	jwt.RegisteredClaims
}

// LoginID returns the login session id carried in the subject claim.
func (c *Claims) LoginID() string { return c.Subject }

// UserID returns the authenticated user's id.
func (c *Claims) UserID() string { return c.User.ID }

// WorkspacePermissions returns the embedded snapshot for a workspace.
func (c *Claims) WorkspacePermissions(workspaceID string) (WorkspacePermissionSnapshot, bool) {
	snap, ok := c.Permissions[workspaceID]
	return snap, ok
}

// Issuer mints signed access tokens and persisted API tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	validity time.Duration
	tokens   APITokenStore
	now      Clock
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer) error

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) error {
		if strings.TrimSpace(name) != "" {
			i.issuer = strings.TrimSpace(name)
		}
		return nil
	}
}

// WithAudience overrides the aud claim.
func WithAudience(aud string) IssuerOption {
	return func(i *Issuer) error {
		if strings.TrimSpace(aud) != "" {
			i.audience = strings.TrimSpace(aud)
		}
		return nil
	}
}

// WithAccessTokenValidity configures how long access tokens live.
func WithAccessTokenValidity(d time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if d > 0 {
			i.validity = d
		}
		return nil
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn Clock) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer signing with the given HS256 secret.
func NewIssuer(secret string, tokens APITokenStore, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	iss := &Issuer{
		secret:   []byte(secret),
		issuer:   "nimbus",
		audience: "nimbus.cloud",
		validity: defaultAccessTokenValidity,
		tokens:   tokens,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(iss); err != nil {
			return nil, err
		}
	}
	return iss, nil
}

// AccessTokenValidity returns the configured token lifetime. The revocation
// registry derives its marker TTL from it.
func (i *Issuer) AccessTokenValidity() time.Duration { return i.validity }

// IssueAccessToken signs a short-lived token embedding the resolved
// per-workspace snapshots.
func (i *Issuer) IssueAccessToken(user User, loginID string, snapshots map[string]WorkspacePermissionSnapshot) (string, time.Time, error) {
	if user.ID == "" || strings.TrimSpace(loginID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: user and login id are required", ErrInvalidInput)
	}
	now := i.now().UTC()
	exp := now.Add(i.validity)
	claims := &Claims{
		User:        user,
		Permissions: snapshots,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   loginID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// APITokenRequest describes a new API token.
type APITokenRequest struct {
	UserID     string
	Name       string
	Grants     map[string]WorkspacePermissionSnapshot
	NotBefore  time.Time
	Expiry     *time.Time
	AllowedIPs []string
}

// IssueAPIToken creates a persisted API token and returns the record plus
// the plaintext credential. The plaintext is not recoverable afterwards.
func (i *Issuer) IssueAPIToken(ctx context.Context, req APITokenRequest) (APIToken, string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return APIToken{}, "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return APIToken{}, "", fmt.Errorf("%w: token name is required", ErrInvalidInput)
	}
	allowed, err := normalizeAllowedIPs(req.AllowedIPs)
	if err != nil {
		return APIToken{}, "", err
	}
	now := i.now().UTC()
	nbf := req.NotBefore.UTC()
	if req.NotBefore.IsZero() {
		nbf = now
	}
	if req.Expiry != nil && !req.Expiry.After(nbf) {
		return APIToken{}, "", fmt.Errorf("%w: expiry must be after not-before", ErrInvalidInput)
	}
	secret, hash, err := newTokenSecret()
	if err != nil {
		return APIToken{}, "", err
	}
	token := APIToken{
		ID:         ids.New(),
		UserID:     req.UserID,
		Name:       name,
		TokenHash:  hash,
		CreatedAt:  now,
		NotBefore:  nbf,
		Expiry:     req.Expiry,
		AllowedIPs: allowed,
		Grants:     req.Grants,
	}
	if err := i.tokens.CreateAPIToken(ctx, token); err != nil {
		return APIToken{}, "", err
	}
	return token, APITokenPrefix + token.ID + "." + secret, nil
}

// RevokeAPIToken marks the record revoked. Every use goes through a lookup,
// so the revocation is effective immediately (modulo the validator cache).
func (i *Issuer) RevokeAPIToken(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: token id is required", ErrInvalidInput)
	}
	return i.tokens.RevokeAPIToken(ctx, id)
}

// RegenerateAPIToken rotates the secret while preserving the record's id and
// grants, returning the new plaintext credential.
func (i *Issuer) RegenerateAPIToken(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: token id is required", ErrInvalidInput)
	}
	token, err := i.tokens.GetAPIToken(ctx, id)
	if err != nil {
		return "", err
	}
	secret, hash, err := newTokenSecret()
	if err != nil {
		return "", err
	}
	if err := i.tokens.UpdateAPITokenHash(ctx, token.ID, hash); err != nil {
		return "", err
	}
	return APITokenPrefix + token.ID + "." + secret, nil
}

func newTokenSecret() (secret, hash string, err error) {
	raw := make([]byte, apiTokenSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate token secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(secret))
	return secret, hex.EncodeToString(sum[:]), nil
}

func normalizeAllowedIPs(blocks []string) ([]string, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		// a bare address means exactly that host
		if !strings.Contains(block, "/") {
			ip := net.ParseIP(block)
			if ip == nil {
				return nil, fmt.Errorf("%w: invalid allowed ip %q", ErrInvalidInput, block)
			}
			if ip.To4() != nil {
				block += "/32"
			} else {
				block += "/128"
			}
		}
		if _, _, err := net.ParseCIDR(block); err != nil {
			return nil, fmt.Errorf("%w: invalid allowed ip block %q", ErrInvalidInput, block)
		}
		out = append(out, block)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
