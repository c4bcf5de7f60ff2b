// Package repository declares the storage contracts the services depend on.
// internal/repository/sqldb implements all of them on one *sqldb.DB.
package repository

import (
	"context"
	"time"

	"github.com/sakif/elibrary/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// CreateUser inserts u and sets u.ID. Username and email uniqueness are
	// checked inside the same transaction as the insert; a clash returns an
	// apperror.ErrConflict naming the field.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Authenticate loads the user by username, runs check against the stored
	// hash and, if check passes, sets last_login to at. check must not run
	// while a write transaction is open. The returned user carries the
	// PREVIOUS last_login.
	Authenticate(ctx context.Context, username string, at time.Time, check func(hash string) error) (*model.User, error)

	UpdateUser(ctx context.Context, id int64, patch model.UserPatch) error
	// DeleteUser removes the user with their likes, favorites and closed
	// borrow history. A user holding a book cannot be deleted.
	DeleteUser(ctx context.Context, id int64) error
}

// BookRepository covers the catalog. It never touches status or borrowed_by.
type BookRepository interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	CreateBook(ctx context.Context, b *model.Book) error
	UpdateBook(ctx context.Context, id int64, patch model.BookPatch) error
	DeleteBook(ctx context.Context, id int64) error
}

// BorrowRepository owns book availability and the borrowing history.
type BorrowRepository interface {
	// Borrow flips the book to borrowed and writes the history record in one
	// transaction. The flip is a conditional update, so of two concurrent
	// callers exactly one succeeds and the other gets apperror.ErrNotAvailable.
	Borrow(ctx context.Context, bookID, userID int64, borrowedDate, dueDate string) (*model.BorrowRecord, error)
	// Return closes the caller's open record for the book and frees the book.
	Return(ctx context.Context, bookID, userID int64, returnedDate string) (*model.BorrowRecord, error)
	ListBorrowHistory(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	// MarkOverdue moves borrowed records due before today to overdue.
	MarkOverdue(ctx context.Context, today string) (int64, error)
}

// ReactionRepository stores likes and favorites. Adding an existing pair is
// a no-op.
type ReactionRepository interface {
	AddReaction(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error
	RemoveReaction(ctx context.Context, kind model.ReactionKind, userID, bookID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]model.Book, error)
}

// RevocationStore extends auth.RevocationList with housekeeping.
type RevocationStore interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}
