package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/metrics"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

const msgInvalidCredentials = "Invalid username or password"

// AuthService handles registration, login, logout, and password recovery.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (credentials)
//	                                 ↘ TokenService (sign / revoke)
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → credential rows
//   - tokens     *auth.TokenService         → issue and revoke session tokens
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - notifier   Notifier                   → password-reset delivery
//   - metrics    metrics.Recorder           → login outcome counters
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	notifier  Notifier
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	notifier Notifier,
	rec metrics.Recorder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		notifier:  notifier,
		metrics:   rec,
		logger:    logger,
		now:       time.Now,
	}
}

// LoginResult is everything the login response needs.
//
// User.LastLogin holds the login BEFORE this one (nil on a first login); the
// same value is embedded in the token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Register creates a non-admin account and returns its id.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (int64, error) {
	u, err := createUser(ctx, s.users, s.passwords, username, email, password, false)
	if err != nil {
		return 0, err
	}
	s.logger.Info("user registered",
		slog.Int64("userID", u.ID),
		slog.String("username", u.Username),
	)
	return u.ID, nil
}

// Login checks the password and issues a session token.
//
// An unknown username and a wrong password produce the same error, after
// the same amount of hashing, so neither the response nor its timing reveals
// which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.metrics.RecordLogin(metrics.ResultRejected)
		return nil, apperror.ValidationFailed("", msgMissingParameters)
	}

	user, err := s.users.Authenticate(ctx, username, s.now(), func(hash string) error {
		return s.passwords.Verify(hash, password)
	})
	if errors.Is(err, apperror.ErrNotFound) {
		err = s.passwords.VerifyDummy(password)
	}
	if err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.metrics.RecordLogin(metrics.ResultRejected)
			s.logger.Info("login rejected", slog.String("username", username))
			return nil, apperror.Unauthenticated(msgInvalidCredentials)
		}
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("authenticating %q: %w", username, err)
	}

	issued, err := s.tokens.Issue(auth.Subject{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		LastLogin: user.LastLogin,
	})
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("issuing token for user %d: %w", user.ID, err)
	}

	s.metrics.RecordLogin(metrics.ResultOK)
	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &LoginResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

// Logout revokes token. The token must still verify; revoking an expired or
// already revoked token is an authentication failure.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		if auth.IsVerifyFailure(err) {
			return apperror.Unauthenticated("Unauthorized")
		}
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// ForgotPassword looks the account up by username, then by email, and hands
// a fresh reset reference to the notifier.
func (s *AuthService) ForgotPassword(ctx context.Context, usernameOrEmail string) error {
	key := strings.TrimSpace(usernameOrEmail)
	if key == "" {
		return apperror.ValidationFailed("username_or_email", msgMissingParameters)
	}

	user, err := s.users.GetUserByUsername(ctx, key)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.users.GetUserByEmail(ctx, key)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("User not found")
		}
		return fmt.Errorf("looking up %q: %w", key, err)
	}

	reference := uuid.NewString()
	if err := s.notifier.SendPasswordReset(ctx, user, reference); err != nil {
		return fmt.Errorf("sending password reset to user %d: %w", user.ID, err)
	}
	return nil
}

// createUser is the shared path behind self-registration, admin creation via
// the API, and the create-admin command.
func createUser(
	ctx context.Context,
	users repository.UserRepository,
	passwords *auth.PasswordService,
	username, email, password string,
	isAdmin bool,
) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, apperror.ValidationFailed("", msgMissingParameters)
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	hash, err := passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}
	return u, nil
}

// bcrypt only looks at the first 72 bytes; longer passwords are refused
// rather than silently truncated.
func checkPasswordLength(password string) error {
	if len(password) > 72 {
		return apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}
	return nil
}
