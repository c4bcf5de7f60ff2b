package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/repository"
)

var (
	_ auth.RevocationList        = (*DB)(nil)
	_ repository.RevocationStore = (*DB)(nil)
)

// IsRevoked reports whether token has been logged out.
func (db *DB) IsRevoked(ctx context.Context, token string) (bool, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM jwt_blacklist WHERE token = ?`), token); err != nil {
		return false, fmt.Errorf("sqldb: checking revocation: %w", err)
	}
	return n > 0, nil
}

// Revoke stores token until expiresAt. Revoking a token twice keeps the
// first entry.
func (db *DB) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO jwt_blacklist (token, expired_at, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (token) DO NOTHING`),
		token, expiresAt.Unix(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqldb: revoking token: %w", err)
	}
	return nil
}

// PurgeRevoked drops entries whose token expired before the cutoff. Such
// tokens fail expiry validation anyway, so the row is dead weight.
func (db *DB) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM jwt_blacklist WHERE expired_at < ?`), before.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqldb: purging revoked tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	return n, nil
}
