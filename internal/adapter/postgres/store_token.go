package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain/user"
)

func (s *Store) CreateRefreshToken(ctx context.Context, rt *user.RefreshToken) error {
	rt.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "create refresh token")
	}
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*user.RefreshToken, error) {
	var rt user.RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash).
		Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		return nil, wrapErr(err, "get refresh token")
	}
	return &rt, nil
}

// RotateRefreshToken locks the old token row, deletes it and inserts next in
// one transaction. A token already consumed by a concurrent rotation yields
// ErrNotFound, so a replayed refresh token can be used only once.
func (s *Store) RotateRefreshToken(ctx context.Context, oldID string, next *user.RefreshToken) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID string
	if err := tx.QueryRow(ctx,
		`SELECT id FROM refresh_tokens WHERE id = $1 FOR UPDATE`, oldID).Scan(&lockedID); err != nil {
		return wrapErr(err, "lock refresh token %s", oldID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, lockedID); err != nil {
		return fmt.Errorf("delete old refresh token: %w", err)
	}

	next.CreatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt,
	); err != nil {
		return wrapErr(err, "create rotated refresh token")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (s *Store) DeleteRefreshTokensByUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens by user: %w", err)
	}
	return nil
}

func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return exists, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	revoked, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	refresh, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return revoked.RowsAffected(), fmt.Errorf("purge refresh tokens: %w", err)
	}
	return revoked.RowsAffected() + refresh.RowsAffected(), nil
}
