package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type revokedTokens struct {
	q dbtx
}

var _ store.RevokedTokens = (*revokedTokens)(nil)

func (r *revokedTokens) AddRevokedToken(ctx context.Context, rec domain.RevokedToken) error {
	// INSERT OR IGNORE keeps revocation idempotent.
	_, err := r.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at, revoked_at) VALUES (?, ?, ?)`,
		rec.JTI, rec.ExpiresAt, rec.RevokedAt)
	return err
}

func (r *revokedTokens) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM revoked_tokens WHERE jti = ?`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *revokedTokens) DeleteExpiredRevokedTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
