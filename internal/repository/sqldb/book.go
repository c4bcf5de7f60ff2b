package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

var _ repository.BookRepository = (*DB)(nil)

const selectBook = `SELECT book_id, title, authors, publishers, date, isbn, status, borrowed_by FROM books`

func (db *DB) ListBooks(ctx context.Context) ([]model.Book, error) {
	books := []model.Book{}
	if err := db.conn.SelectContext(ctx, &books, selectBook+` ORDER BY book_id`); err != nil {
		return nil, fmt.Errorf("sqldb: listing books: %w", err)
	}
	return books, nil
}

func (db *DB) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	var b model.Book
	if err := db.conn.GetContext(ctx, &b, db.q(selectBook+` WHERE book_id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("book", id)
		}
		return nil, fmt.Errorf("sqldb: getting book %d: %w", id, err)
	}
	return &b, nil
}

// CreateBook inserts b as available and sets b.ID.
func (db *DB) CreateBook(ctx context.Context, b *model.Book) error {
	b.Status = model.BookAvailable
	b.BorrowedBy = model.NoBorrower

	err := db.conn.QueryRowxContext(ctx, db.q(
		`INSERT INTO books (title, authors, publishers, date, isbn, status, borrowed_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING book_id`),
		b.Title, b.Authors, b.Publishers, b.Date, b.ISBN, int(b.Status), b.BorrowedBy,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("sqldb: inserting book %q: %w", b.Title, err)
	}
	return nil
}

// UpdateBook applies a bibliographic patch.
func (db *DB) UpdateBook(ctx context.Context, id int64, patch model.BookPatch) error {
	res, err := db.conn.ExecContext(ctx, db.q(
		`UPDATE books SET
		     title      = COALESCE(?, title),
		     authors    = COALESCE(?, authors),
		     publishers = COALESCE(?, publishers),
		     date       = COALESCE(?, date),
		     isbn       = COALESCE(?, isbn)
		 WHERE book_id = ?`),
		patch.Title, patch.Authors, patch.Publishers, patch.Date, patch.ISBN, id,
	)
	if err != nil {
		return fmt.Errorf("sqldb: updating book %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("book", id)
	}
	return nil
}

// DeleteBook removes a book with its likes, favorites, and history. A book
// that is out on loan is refused.
//
// The availability test is a conditional write, as in Borrow: the no-op
// UPDATE matches only an available book and locks its row, so a concurrent
// Borrow either commits first (and this returns Conflict) or waits and then
// finds no book.
func (db *DB) DeleteBook(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(
			`UPDATE books SET status = status WHERE book_id = ? AND status = ?`),
			id, int(model.BookAvailable),
		)
		if err != nil {
			return fmt.Errorf("sqldb: claiming book %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if n == 0 {
			var count int
			if err := tx.GetContext(ctx, &count, db.q(`SELECT COUNT(*) FROM books WHERE book_id = ?`), id); err != nil {
				return fmt.Errorf("sqldb: checking book %d: %w", id, err)
			}
			if count == 0 {
				return apperror.NotFound("book", id)
			}
			return apperror.Conflict("book_id", "Book is currently borrowed")
		}

		for _, stmt := range []string{
			`DELETE FROM user_likes WHERE book_id = ?`,
			`DELETE FROM user_favorites WHERE book_id = ?`,
			`DELETE FROM borrowing_history WHERE book_id = ?`,
			`DELETE FROM books WHERE book_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, db.q(stmt), id); err != nil {
				return fmt.Errorf("sqldb: deleting book %d: %w", id, err)
			}
		}
		return nil
	})
}
