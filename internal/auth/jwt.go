// Package auth provides session tokens, password hashing, and the HTTP gate
// that turns a bearer token into a trusted Identity.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /auth/login checks the password and calls TokenService.Issue
//  2. The client sends the token back as "Authorization: Bearer <jwt>"
//  3. RequireAuth calls TokenService.Verify and stores the Identity in the
//     request context
//  4. POST /auth/logout calls TokenService.Revoke, which writes the raw token
//     to the revocation list so step 3 rejects it until it would have expired
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"user_id":1,"username":"ana","is_admin":false,"exp":...,"jti":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// A signed JWT stays cryptographically valid until exp no matter what the
// server does. Logout therefore needs server-side state: the RevocationList.
// Verify consults it BEFORE trusting anything inside the token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "elibrary"

// DefaultTTL is the session lifetime when TokenConfig.TTL is zero.
const DefaultTTL = time.Hour

// Verify failure kinds. Callers branch on these with errors.Is.
var (
	// ErrInvalidSignature covers tampered, malformed, or foreign tokens.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
	ErrRevoked          = errors.New("auth: token revoked")
)

// ConfigError means the token service cannot run with the given settings.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("auth: %s %s", e.Setting, e.Reason)
}

// RevocationList is the durable denylist of logged-out tokens.
//
// Revoke must tolerate being called twice with the same token.
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

// Subject is what the caller knows about a user at issue time.
type Subject struct {
	UserID    int64
	Username  string
	Email     string
	IsAdmin   bool
	LastLogin *time.Time
}

// Identity is the trusted view of a verified token. Only Verify builds one
// from a token; everything downstream of RequireAuth reads it from the
// request context.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	IsAdmin   bool
	LastLogin *time.Time
	ExpiresAt time.Time
	TokenID   string
}

// IssuedToken is a freshly signed token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret string
	// TTL defaults to DefaultTTL.
	TTL time.Duration
	// Now defaults to time.Now. Tests inject a fixed clock.
	Now func() time.Time
}

// TokenService issues, verifies, and revokes session tokens.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked RevocationList
}

// NewTokenService creates a TokenService. It fails with a *ConfigError when
// the secret is missing or too short to be an HMAC key worth having.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(cfg TokenConfig, revoked RevocationList) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, &ConfigError{Setting: "JWT_SECRET", Reason: "is not set"}
	}
	if len(cfg.Secret) < 16 {
		return nil, &ConfigError{Setting: "JWT_SECRET", Reason: "must be at least 16 characters"}
	}
	if revoked == nil {
		return nil, errors.New("auth: revocation list is required")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenService{
		secret:  []byte(cfg.Secret),
		ttl:     ttl,
		now:     now,
		revoked: revoked,
	}, nil
}

// claims is the JWT payload. The identity fields sit at the top level next
// to the registered ones, which is what clients decoding the token expect.
type claims struct {
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	IsAdmin   bool       `json:"is_admin"`
	LastLogin *time.Time `json:"last_login"`
	jwt.RegisteredClaims
}

// Issue signs a token for sub that expires after the configured TTL.
func (s *TokenService) Issue(sub Subject) (*IssuedToken, error) {
	return s.IssueWithTTL(sub, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime.
//
// Each token carries a unique jti so that two logins in the same second
// produce different strings; otherwise revoking one would revoke both.
func (s *TokenService) IssueWithTTL(sub Subject, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", ttl)
	}

	now := s.now()
	exp := now.Add(ttl)

	c := claims{
		UserID:    sub.UserID,
		Username:  sub.Username,
		Email:     sub.Email,
		IsAdmin:   sub.IsAdmin,
		LastLogin: sub.LastLogin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        xid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: signing token: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Verify checks a raw token and returns its Identity.
//
// ORDER OF CHECKS:
//  1. Revocation list: a logged-out token is rejected with ErrRevoked even
//     though its signature and exp are still fine
//  2. Signature and algorithm (HS256 only; "none" and RS* are refused)
//  3. Expiry against the injected clock
//
// Errors other than the three kinds above come from the revocation store and
// should be treated as server failures, not as bad credentials.
func (s *TokenService) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidSignature)
	}

	revoked, err := s.revoked.IsRevoked(ctx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("auth: checking revocation list: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrInvalidSignature)
	}
	if c.Subject != strconv.FormatInt(c.UserID, 10) {
		return nil, fmt.Errorf("%w: subject does not match user_id", ErrInvalidSignature)
	}

	return &Identity{
		UserID:    c.UserID,
		Username:  c.Username,
		Email:     c.Email,
		IsAdmin:   c.IsAdmin,
		LastLogin: c.LastLogin,
		ExpiresAt: c.ExpiresAt.Time,
		TokenID:   c.ID,
	}, nil
}

// Revoke adds a currently valid token to the revocation list, keyed by the
// raw string and stamped with the token's own expiry so the entry can be
// purged once the token would have died anyway.
func (s *TokenService) Revoke(ctx context.Context, tokenStr string) error {
	id, err := s.Verify(ctx, tokenStr)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, tokenStr, id.ExpiresAt); err != nil {
		return fmt.Errorf("auth: revoking token %s: %w", id.TokenID, err)
	}
	return nil
}

// IsVerifyFailure reports whether err is one of the credential kinds
// returned by Verify, as opposed to an infrastructure failure.
func IsVerifyFailure(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrExpired) || errors.Is(err, ErrRevoked)
}
