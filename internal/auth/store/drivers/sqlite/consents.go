package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type consents struct {
	q dbtx
}

var _ store.Consents = (*consents)(nil)

const consentColumns = `id, user_id, application_id, granted_scopes, scope_history, revoked_at, created_at, updated_at`

func scanConsent(row interface{ Scan(...any) error }) (domain.Consent, error) {
	var (
		c       domain.Consent
		granted string
		history string
		revoked sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.ApplicationID, &granted, &history,
		&revoked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	c.GrantedScopes = splitScopes(granted)
	c.RevokedAt = timePtr(revoked)
	if err := json.Unmarshal([]byte(history), &c.ScopeHistory); err != nil {
		return domain.Consent{}, fmt.Errorf("decode scope history: %w", err)
	}
	return c, nil
}

func (r *consents) GetConsent(ctx context.Context, userID, applicationID string) (domain.Consent, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+consentColumns+` FROM consents
		 WHERE user_id = ? AND application_id = ? AND revoked_at IS NULL`,
		userID, applicationID)
	return scanConsent(row)
}

func (r *consents) CreateConsent(ctx context.Context, c domain.Consent) error {
	history, err := json.Marshal(c.ScopeHistory)
	if err != nil {
		return fmt.Errorf("encode scope history: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO consents (id, user_id, application_id, granted_scopes, scope_history)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ApplicationID, joinScopes(c.GrantedScopes), string(history))
	return err
}

func (r *consents) UpdateConsentScopes(ctx context.Context, consentID string, grantedScopes []string, history []domain.ConsentGrant) error {
	encoded, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode scope history: %w", err)
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE consents SET granted_scopes = ?, scope_history = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND revoked_at IS NULL`,
		joinScopes(grantedScopes), string(encoded), consentID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *consents) RevokeConsent(ctx context.Context, userID, applicationID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE consents SET revoked_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND application_id = ? AND revoked_at IS NULL`,
		at, userID, applicationID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *consents) ListConsentsForUser(ctx context.Context, userID string) ([]domain.Consent, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+consentColumns+` FROM consents
		 WHERE user_id = ? AND revoked_at IS NULL
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
