package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const selectUser = `SELECT user_id, username, email, password_hash, is_admin, last_login, created_at FROM users`

var (
	errUsernameTaken = apperror.Conflict("username", "Username already exists")
	errEmailTaken    = apperror.Conflict("email", "Email already exists")
)

// CreateUser checks username then email, then inserts, all in one
// transaction. The UNIQUE constraints back the checks up when two
// registrations race on PostgreSQL.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.checkUserUnique(ctx, tx, 0, &u.Username, &u.Email); err != nil {
			return err
		}

		err := tx.QueryRowxContext(ctx, db.q(
			`INSERT INTO users (username, email, password_hash, is_admin, created_at)
			 VALUES (?, ?, ?, ?, ?) RETURNING user_id`),
			u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt,
		).Scan(&u.ID)
		if err != nil {
			if cerr := userConflict(err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("sqldb: inserting user %q: %w", u.Username, err)
		}
		return nil
	})
}

// checkUserUnique fails with a Conflict if another user (any user other than
// exceptID) already has username or email. Nil arguments are skipped.
func (db *DB) checkUserUnique(ctx context.Context, tx *sqlx.Tx, exceptID int64, username, email *string) error {
	if username != nil {
		var n int
		if err := tx.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM users WHERE username = ? AND user_id <> ?`), *username, exceptID); err != nil {
			return fmt.Errorf("sqldb: checking username: %w", err)
		}
		if n > 0 {
			return errUsernameTaken
		}
	}
	if email != nil {
		var n int
		if err := tx.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM users WHERE email = ? AND user_id <> ?`), *email, exceptID); err != nil {
			return fmt.Errorf("sqldb: checking email: %w", err)
		}
		if n > 0 {
			return errEmailTaken
		}
	}
	return nil
}

// userConflict maps a UNIQUE violation on users to the matching Conflict.
func userConflict(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	if strings.Contains(constraint, "email") {
		return errEmailTaken
	}
	return errUsernameTaken
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, db.conn, "user_id", id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, db.conn, "username", username)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, db.conn, "email", email)
}

// getUser looks a user up by one of the fixed key columns.
func (db *DB) getUser(ctx context.Context, q sqlx.QueryerContext, column string, value any) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u, db.q(selectUser+` WHERE `+column+` = ?`), value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqldb: getting user by %s: %w", column, err)
	}
	return &u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := db.conn.SelectContext(ctx, &users, selectUser+` ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("sqldb: listing users: %w", err)
	}
	return users, nil
}

// Authenticate reads the user, lets check judge the password, and stamps
// last_login. The returned user keeps the last_login value from BEFORE this
// login.
//
// check runs outside any transaction. A bcrypt comparison takes hundreds of
// milliseconds and SQLite write transactions hold the database lock, so only
// the single-statement stamp writes.
func (db *DB) Authenticate(ctx context.Context, username string, at time.Time, check func(hash string) error) (*model.User, error) {
	u, err := db.getUser(ctx, db.conn, "username", username)
	if err != nil {
		return nil, err
	}
	if err := check(u.PasswordHash); err != nil {
		return nil, err
	}

	res, err := db.conn.ExecContext(ctx, db.q(`UPDATE users SET last_login = ? WHERE user_id = ?`), at.UTC(), u.ID)
	if err != nil {
		return nil, fmt.Errorf("sqldb: updating last_login for user %d: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		// deleted while the password was being checked
		return nil, apperror.NotFound("user", username)
	}
	return u, nil
}

// UpdateUser applies a patch. Columns with a nil value keep their contents
// through COALESCE, so the statement text never depends on the input.
func (db *DB) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := db.getUser(ctx, tx, "user_id", id); err != nil {
			return err
		}
		if err := db.checkUserUnique(ctx, tx, id, patch.Username, patch.Email); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, db.q(
			`UPDATE users SET
			     username      = COALESCE(?, username),
			     email         = COALESCE(?, email),
			     password_hash = COALESCE(?, password_hash)
			 WHERE user_id = ?`),
			patch.Username, patch.Email, patch.PasswordHash, id,
		)
		if err != nil {
			if cerr := userConflict(err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("sqldb: updating user %d: %w", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
}

// DeleteUser removes the user and everything that references them. A user
// with an open loan is refused so no book is left borrowed by nobody.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := db.getUser(ctx, tx, "user_id", id); err != nil {
			return err
		}

		var open int
		if err := tx.GetContext(ctx, &open, db.q(`SELECT COUNT(*) FROM borrowing_history WHERE user_id = ? AND status IN `+openStatuses), id); err != nil {
			return fmt.Errorf("sqldb: counting open loans for user %d: %w", id, err)
		}
		if open > 0 {
			return apperror.Conflict("user_id", "User still has borrowed books")
		}

		for _, stmt := range []string{
			`DELETE FROM user_likes WHERE user_id = ?`,
			`DELETE FROM user_favorites WHERE user_id = ?`,
			`DELETE FROM borrowing_history WHERE user_id = ?`,
			`DELETE FROM users WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, db.q(stmt), id); err != nil {
				return fmt.Errorf("sqldb: deleting user %d: %w", id, err)
			}
		}
		return nil
	})
}
