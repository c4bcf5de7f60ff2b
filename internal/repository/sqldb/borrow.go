package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

var _ repository.BorrowRepository = (*DB)(nil)

const selectBorrow = `SELECT id, user_id, book_id, borrowed_date, due_date, returned_date, status, created_at FROM borrowing_history`

var (
	errBookNotAvailable = apperror.NotAvailable("Book not available")
	errNoActiveBorrow   = apperror.NotFoundMessage("No borrowing record found")
)

// Borrow lends a book to a user.
//
// RACE-FREE AVAILABILITY CHECK:
// A read-then-write ("SELECT status ... ; UPDATE ...") lets two requests both
// see the book as available. Instead the availability test IS the write:
//
//	UPDATE books SET status = 1, borrowed_by = ? WHERE book_id = ? AND status = 0
//
// The database serialises writers on the row (PostgreSQL row lock, SQLite
// write lock), so exactly one concurrent caller sees RowsAffected == 1. The
// loser then only needs to tell "no such book" apart from "already out".
//
// The partial unique index on borrowing_history(book_id) for open records is
// a second line of defence should the two tables ever disagree.
func (db *DB) Borrow(ctx context.Context, bookID, userID int64, borrowedDate, dueDate string) (*model.BorrowRecord, error) {
	rec := &model.BorrowRecord{
		UserID:       userID,
		BookID:       bookID,
		BorrowedDate: borrowedDate,
		DueDate:      dueDate,
		Status:       model.BorrowActive,
		CreatedAt:    time.Now().UTC(),
	}

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(
			`UPDATE books SET status = ?, borrowed_by = ? WHERE book_id = ? AND status = ?`),
			int(model.BookBorrowed), userID, bookID, int(model.BookAvailable),
		)
		if err != nil {
			return fmt.Errorf("sqldb: claiming book %d: %w", bookID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if n == 0 {
			return db.whyUnavailable(ctx, tx, bookID)
		}

		err = tx.QueryRowxContext(ctx, db.q(
			`INSERT INTO borrowing_history (user_id, book_id, borrowed_date, due_date, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			rec.UserID, rec.BookID, rec.BorrowedDate, rec.DueDate, string(rec.Status), rec.CreatedAt,
		).Scan(&rec.ID)
		if err != nil {
			if _, dup := uniqueViolation(err); dup {
				return errBookNotAvailable
			}
			return fmt.Errorf("sqldb: recording loan of book %d: %w", bookID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// whyUnavailable runs after the conditional update matched nothing.
func (db *DB) whyUnavailable(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	var n int
	if err := tx.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM books WHERE book_id = ?`), bookID); err != nil {
		return fmt.Errorf("sqldb: checking book %d: %w", bookID, err)
	}
	if n == 0 {
		return apperror.NotFound("book", bookID)
	}
	return errBookNotAvailable
}

// Return closes the open record for (bookID, userID) and frees the book.
// The lookup is scoped to the caller: returning a book someone else holds
// finds no record and fails exactly like returning a book nobody holds.
func (db *DB) Return(ctx context.Context, bookID, userID int64, returnedDate string) (*model.BorrowRecord, error) {
	var rec model.BorrowRecord

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &rec, db.q(selectBorrow+
			` WHERE book_id = ? AND user_id = ? AND status IN `+openStatuses),
			bookID, userID,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errNoActiveBorrow
			}
			return fmt.Errorf("sqldb: finding open loan of book %d: %w", bookID, err)
		}

		// Conditional on the record still being open, so a concurrent return
		// of the same loan cannot close it twice.
		res, err := tx.ExecContext(ctx, db.q(
			`UPDATE borrowing_history SET returned_date = ?, status = ?
			 WHERE id = ? AND status IN `+openStatuses),
			returnedDate, string(model.BorrowReturned), rec.ID,
		)
		if err != nil {
			return fmt.Errorf("sqldb: closing loan %d: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if n == 0 {
			return errNoActiveBorrow
		}

		if _, err := tx.ExecContext(ctx, db.q(
			`UPDATE books SET status = ?, borrowed_by = ? WHERE book_id = ?`),
			int(model.BookAvailable), model.NoBorrower, bookID,
		); err != nil {
			return fmt.Errorf("sqldb: releasing book %d: %w", bookID, err)
		}

		rec.ReturnedDate = &returnedDate
		rec.Status = model.BorrowReturned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListBorrowHistory returns a user's records in insertion order.
func (db *DB) ListBorrowHistory(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	records := []model.BorrowRecord{}
	if err := db.conn.SelectContext(ctx, &records, db.q(selectBorrow+` WHERE user_id = ? ORDER BY id`), userID); err != nil {
		return nil, fmt.Errorf("sqldb: listing history for user %d: %w", userID, err)
	}
	return records, nil
}

// MarkOverdue flags borrowed records whose due date is before today.
// YYYY-MM-DD strings order the same way as the dates they name.
func (db *DB) MarkOverdue(ctx context.Context, today string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(
		`UPDATE borrowing_history SET status = ? WHERE status = ? AND due_date < ?`),
		string(model.BorrowOverdue), string(model.BorrowActive), today,
	)
	if err != nil {
		return 0, fmt.Errorf("sqldb: marking overdue loans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	return n, nil
}
