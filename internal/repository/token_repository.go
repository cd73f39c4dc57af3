package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists the refresh-token ledger. The signed token string is
// the lookup key; a row's presence plus a future expires_at is what makes a
// refresh token redeemable, regardless of the expiry embedded in the JWT.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a ledger row for a freshly issued refresh token.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, exp)
	return err
}

// ValidateRefresh returns the owning userID if a non-expired ledger row
// exists for this exact token string. Expired rows report sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, token string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM refresh_tokens WHERE token=? LIMIT 1",
		token).Scan(&userID, &expiresAt)
	if err != nil {
		return 0, err
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

// DeleteRefresh removes a ledger row and reports whether this call removed
// it. Rotation hinges on the affected-row count: two concurrent refreshes
// presenting the same token race on this DELETE and only the winner may
// mint a new pair.
func (r *TokenRepo) DeleteRefresh(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token=?", token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
