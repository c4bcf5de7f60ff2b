package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// ReactionService manages likes and favorites.
type ReactionService struct {
	reactions repository.ReactionRepository
	logger    *slog.Logger
}

func NewReactionService(reactions repository.ReactionRepository, logger *slog.Logger) *ReactionService {
	return &ReactionService{reactions: reactions, logger: logger}
}

// Add records kind for (userID, bookID). Repeating it is harmless.
func (s *ReactionService) Add(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error {
	if bookID <= 0 {
		return apperror.ValidationFailed("book_id", msgMissingParameters)
	}
	if err := s.reactions.AddReaction(ctx, kind, userID, bookID); err != nil {
		return fmt.Errorf("adding %s: %w", kind, err)
	}
	s.logger.Debug("reaction added",
		slog.String("kind", kind.String()),
		slog.Int64("userID", userID),
		slog.Int64("bookID", bookID),
	)
	return nil
}

func (s *ReactionService) Remove(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error {
	if bookID <= 0 {
		return apperror.ValidationFailed("book_id", msgMissingParameters)
	}
	if err := s.reactions.RemoveReaction(ctx, kind, userID, bookID); err != nil {
		return fmt.Errorf("removing %s: %w", kind, err)
	}
	return nil
}

// Favorites lists userID's favorite books. Users see their own list; admins
// see anyone's.
func (s *ReactionService) Favorites(ctx context.Context, actor *auth.Identity, userID int64) ([]model.Book, error) {
	if actor.UserID != userID && !actor.IsAdmin {
		return nil, apperror.Forbidden("You can only view your own favorites")
	}
	books, err := s.reactions.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites of user %d: %w", userID, err)
	}
	return books, nil
}
