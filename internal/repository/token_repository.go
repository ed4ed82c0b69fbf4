package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo stores refresh-token hashes.  Raw tokens never reach the
// database; callers hash before storing or looking up.
type TokenRepo struct {
	db *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh records a refresh token hash with its expiry.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	const q = `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, userID, tokenHash, expiresAt.UTC())
	return err
}

// ValidateRefresh resolves a token hash to its user id.  Revoked and
// expired rows are filtered in SQL, so a stale token reads as missing.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	const q = `
		SELECT user_id FROM refresh_tokens
		WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()
		LIMIT 1`
	var userID uint64
	if err := r.db.QueryRowContext(ctx, q, tokenHash).Scan(&userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// RevokeByHash ends a single session.  Revoking an already-revoked or
// unknown token is a no-op.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	const q = `
		UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		WHERE token_hash = ? AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, tokenHash)
	return err
}

// RevokeAllForUser ends every active session of one user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	const q = `
		UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		WHERE user_id = ? AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}
