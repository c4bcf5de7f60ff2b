package sqldb

import (
	"context"
	"fmt"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

var _ repository.ReactionRepository = (*DB)(nil)

// reactionTable maps a kind to its join table. The name is interpolated into
// SQL, so it must only ever come from this switch.
func reactionTable(kind model.ReactionKind) string {
	if kind == model.Favorite {
		return "user_favorites"
	}
	return "user_likes"
}

// AddReaction records a like or favorite. The book must exist; adding a pair
// that is already present changes nothing.
func (db *DB) AddReaction(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error {
	var n int
	if err := db.conn.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM books WHERE book_id = ?`), bookID); err != nil {
		return fmt.Errorf("sqldb: checking book %d: %w", bookID, err)
	}
	if n == 0 {
		return apperror.NotFound("book", bookID)
	}

	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO `+reactionTable(kind)+` (user_id, book_id) VALUES (?, ?)
		 ON CONFLICT (user_id, book_id) DO NOTHING`),
		userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("sqldb: adding %s of book %d by user %d: %w", kind, bookID, userID, err)
	}
	return nil
}

// RemoveReaction deletes the pair if present.
func (db *DB) RemoveReaction(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`DELETE FROM `+reactionTable(kind)+` WHERE user_id = ? AND book_id = ?`),
		userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("sqldb: removing %s of book %d by user %d: %w", kind, bookID, userID, err)
	}
	return nil
}

func (db *DB) ListFavorites(ctx context.Context, userID int64) ([]model.Book, error) {
	books := []model.Book{}
	err := db.conn.SelectContext(ctx, &books, db.q(
		`SELECT b.book_id, b.title, b.authors, b.publishers, b.date, b.isbn, b.status, b.borrowed_by
		 FROM books b
		 JOIN user_favorites f ON f.book_id = b.book_id
		 WHERE f.user_id = ?
		 ORDER BY b.book_id`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing favorites of user %d: %w", userID, err)
	}
	return books, nil
}
