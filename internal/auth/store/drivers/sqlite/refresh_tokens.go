package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type refreshTokens struct {
	q dbtx
}

var _ store.RefreshTokens = (*refreshTokens)(nil)

func (r *refreshTokens) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, application_id, token_hash, scopes, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ApplicationID, t.TokenHash, joinScopes(t.Scopes), t.ExpiresAt)
	return err
}

func (r *refreshTokens) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t       domain.RefreshToken
		scopes  string
		rotated sql.NullTime
		revoked int
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, application_id, token_hash, scopes, expires_at, rotated_at, revoked, created_at, updated_at
		 FROM refresh_tokens WHERE token_hash = ?`, hash).
		Scan(&t.ID, &t.UserID, &t.ApplicationID, &t.TokenHash, &scopes,
			&t.ExpiresAt, &rotated, &revoked, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Scopes = splitScopes(scopes)
	t.RotatedAt = timePtr(rotated)
	t.Revoked = revoked != 0
	return t, nil
}

func (r *refreshTokens) MarkRefreshTokenRotated(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET rotated_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND rotated_at IS NULL`,
		at, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *refreshTokens) RevokeRefreshToken(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *refreshTokens) RevokeAllUserApplicationRefreshTokens(ctx context.Context, userID, applicationID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND application_id = ? AND revoked = 0`,
		userID, applicationID)
	return err
}

func (r *refreshTokens) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
