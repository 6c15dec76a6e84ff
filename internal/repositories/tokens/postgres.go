// Package tokens provides the PostgreSQL-backed token ledger behind the
// lifecycle service: one row per issued access or refresh token, mutated
// only by revocation and never deleted.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nichepulse/tokenvault/internal/common"
	"github.com/nichepulse/tokenvault/internal/dbx"
	"github.com/nichepulse/tokenvault/internal/token"
)

// PostgresRepository implements token.Store over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

var _ token.Store = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new token row. Inserting an id that already exists
// returns common.ErrDuplicateID.
func (r *PostgresRepository) Create(ctx context.Context, t *token.Token) error {
	query := `
		INSERT INTO tokens (id, user_id, token_type, issued_at, expires_at, device_info, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, string(t.Type), t.IssuedAt, t.ExpiresAt, t.DeviceInfo, t.IPAddress,
	); err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, t.ID)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindActive returns the row for id only when it has not been revoked.
// Absent and revoked ids both return common.ErrNotFound.
func (r *PostgresRepository) FindActive(ctx context.Context, id string) (*token.Token, error) {
	query := `
		SELECT id, user_id, token_type, issued_at, expires_at, device_info, ip_address, is_revoked, revoked_at, revoked_by
		FROM tokens
		WHERE id = $1 AND NOT is_revoked
	`
	t := &token.Token{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Type, &t.IssuedAt, &t.ExpiresAt,
		&t.DeviceInfo, &t.IPAddress, &t.IsRevoked, &t.RevokedAt, &t.RevokedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Revoke marks one row revoked. The filter on is_revoked keeps the
// transition one-way; touching zero rows is a success.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, revokedBy string) error {
	_, err := r.Consume(ctx, id, revokedBy)
	return err
}

// Consume marks one row revoked and reports whether this statement was
// the one that flipped it. The is_revoked filter makes the update
// conditional, so under concurrent calls Postgres hands exactly one of
// them a row count of 1.
func (r *PostgresRepository) Consume(ctx context.Context, id string, revokedBy string) (bool, error) {
	query := `
		UPDATE tokens
		SET is_revoked = true, revoked_at = $1, revoked_by = $2
		WHERE id = $3 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, time.Now(), nullString(revokedBy), id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every live token of the user in one set-based
// statement, so it cannot race against concurrent issuance the way a
// fetch-then-loop would.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, revokedBy string) (int64, error) {
	query := `
		UPDATE tokens
		SET is_revoked = true, revoked_at = $1, revoked_by = $2
		WHERE user_id = $3 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, time.Now(), nullString(revokedBy), userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}

// RevokeExpiredBefore revokes every live token whose expiry predates now.
func (r *PostgresRepository) RevokeExpiredBefore(ctx context.Context, now time.Time, revokedBy string) (int64, error) {
	query := `
		UPDATE tokens
		SET is_revoked = true, revoked_at = $1, revoked_by = $2
		WHERE NOT is_revoked AND expires_at < $3
	`
	res, err := r.db.ExecContext(ctx, query, now, nullString(revokedBy), now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}

// CountActive counts live tokens of one class for the user.
func (r *PostgresRepository) CountActive(ctx context.Context, userID string, tp token.Type) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tokens
		WHERE user_id = $1 AND token_type = $2 AND NOT is_revoked
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, string(tp)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
