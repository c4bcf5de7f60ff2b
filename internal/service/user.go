package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// UserService covers account administration.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Add creates an account with an explicit admin flag. Uniqueness rules are
// the same as for self-registration.
func (s *UserService) Add(ctx context.Context, username, email, password string, isAdmin bool) (*model.User, error) {
	u, err := createUser(ctx, s.users, s.passwords, username, email, password, isAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user added",
		slog.Int64("userID", u.ID),
		slog.String("username", u.Username),
		slog.Bool("isAdmin", u.IsAdmin),
	)
	return u, nil
}

// UpdateUserInput is the body of a self-service account update. Password is
// the current password and is always required; the pointer fields are the
// changes, nil meaning "leave alone".
type UpdateUserInput struct {
	Password    string
	NewPassword *string
	Email       *string
	Username    *string
}

// Update lets a user change their own username, email, or password after
// re-entering the current password.
func (s *UserService) Update(ctx context.Context, actor *auth.Identity, targetID int64, in UpdateUserInput) error {
	if actor.UserID != targetID {
		return apperror.Forbidden("You can only update your own account")
	}
	if in.Password == "" {
		return apperror.ValidationFailed("password", msgMissingParameters)
	}

	current, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("loading user %d: %w", targetID, err)
	}
	if err := s.passwords.Verify(current.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.Unauthenticated("Invalid password")
		}
		return fmt.Errorf("verifying password of user %d: %w", targetID, err)
	}

	var patch model.UserPatch
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return apperror.ValidationFailed("username", "Username must not be empty")
		}
		patch.Username = &name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return apperror.ValidationFailed("email", "Email must not be empty")
		}
		patch.Email = &email
	}
	if in.NewPassword != nil && *in.NewPassword != "" {
		if *in.NewPassword == in.Password {
			return apperror.ValidationFailed("new_password", "New password must differ from the current password")
		}
		if err := checkPasswordLength(*in.NewPassword); err != nil {
			return err
		}
		hash, err := s.passwords.Hash(*in.NewPassword)
		if err != nil {
			return fmt.Errorf("hashing new password: %w", err)
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return apperror.ValidationFailed("", msgNothingChanged)
	}

	if err := s.users.UpdateUser(ctx, targetID, patch); err != nil {
		return fmt.Errorf("updating user %d: %w", targetID, err)
	}
	s.logger.Info("user updated", slog.Int64("userID", targetID))
	return nil
}

// DeleteTarget selects the account to delete. The first non-zero field
// wins, in the order ID, Email, Username.
type DeleteTarget struct {
	ID       int64
	Email    string
	Username string
}

// Delete removes an account. The actor must be an admin AND re-enter their
// own password; failing either is Forbidden.
func (s *UserService) Delete(ctx context.Context, actor *auth.Identity, password string, target DeleteTarget) (*model.User, error) {
	if !actor.IsAdmin {
		return nil, apperror.Forbidden("Admin privileges required")
	}
	ok, err := s.VerifyPassword(ctx, actor.UserID, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Forbidden("Invalid password")
	}

	victim, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := s.users.DeleteUser(ctx, victim.ID); err != nil {
		return nil, fmt.Errorf("deleting user %d: %w", victim.ID, err)
	}

	s.logger.Info("user deleted",
		slog.Int64("userID", victim.ID),
		slog.Int64("byAdmin", actor.UserID),
	)
	return victim, nil
}

func (s *UserService) resolve(ctx context.Context, target DeleteTarget) (*model.User, error) {
	var (
		u   *model.User
		err error
	)
	switch {
	case target.ID > 0:
		u, err = s.users.GetUserByID(ctx, target.ID)
	case strings.TrimSpace(target.Email) != "":
		u, err = s.users.GetUserByEmail(ctx, strings.TrimSpace(target.Email))
	case strings.TrimSpace(target.Username) != "":
		u, err = s.users.GetUserByUsername(ctx, strings.TrimSpace(target.Username))
	default:
		return nil, apperror.ValidationFailed("user_id", msgMissingParameters)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("resolving delete target: %w", err)
	}
	return u, nil
}

// VerifyPassword re-confirms a user's password. An unknown user or a wrong
// password is (false, nil); only storage failures are errors.
func (s *UserService) VerifyPassword(ctx context.Context, userID int64, password string) (bool, error) {
	if password == "" {
		return false, nil
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("loading user %d: %w", userID, err)
	}
	if err := s.passwords.Verify(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return false, nil
		}
		return false, fmt.Errorf("verifying password of user %d: %w", userID, err)
	}
	return true, nil
}
