package repository

import (
	"context"
	"time"

	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct {
	db  *database.DB     // shared handle (MySQL or SQLite)
	now func() time.Time // clock for expiry checks and created_at
}

func NewTokenRepo(db *database.DB) *TokenRepo { return &TokenRepo{db: db, now: time.Now} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)",
		userID, tokenHash, model.NewTimestamp(exp), model.NewTimestamp(r.now()))
	return err
}

// ValidateRefresh returns userID if a non-revoked, non-expired token
// exists, ErrNotFound otherwise.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var row model.RefreshToken
	err := r.db.GetContext(ctx, &row,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash = ? LIMIT 1",
		tokenHash)
	if err != nil {
		return 0, notFound(err)
	}
	// Revoked tokens are kept for audit but never accepted again.
	if row.RevokedAt != nil && !row.RevokedAt.IsZero() {
		return 0, ErrNotFound
	}
	if r.now().UTC().After(row.ExpiresAt.Time) {
		return 0, ErrNotFound
	}
	return row.UserID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL",
		model.NewTimestamp(r.now()), tokenHash)
	return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		model.NewTimestamp(r.now()), userID)
	return err
}
