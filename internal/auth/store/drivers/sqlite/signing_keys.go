package sqlite

import (
	"context"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type signingKeys struct {
	q dbtx
}

var _ store.SigningKeys = (*signingKeys)(nil)

const signingKeyColumns = `id, kid, algorithm, public_key_pem, private_key_pem, is_primary, is_active, created_at`

func scanSigningKey(row interface{ Scan(...any) error }) (domain.SigningKey, error) {
	var (
		k         domain.SigningKey
		isPrimary int
		isActive  int
	)
	err := row.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyPEM,
		&isPrimary, &isActive, &k.CreatedAt)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	k.IsPrimary = isPrimary != 0
	k.IsActive = isActive != 0
	return k, nil
}

func (r *signingKeys) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO signing_keys (id, kid, algorithm, public_key_pem, private_key_pem, is_primary, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PublicKeyPEM, key.PrivateKeyPEM,
		boolToInt(key.IsPrimary), boolToInt(key.IsActive))
	return err
}

func (r *signingKeys) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	return scanSigningKey(row)
}

func (r *signingKeys) GetPrimarySigningKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE is_primary = 1 AND is_active = 1`)
	return scanSigningKey(row)
}

func (r *signingKeys) ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE is_active = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeys) DemotePrimarySigningKeys(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `UPDATE signing_keys SET is_primary = 0 WHERE is_primary = 1`)
	return err
}

func (r *signingKeys) DeactivateSigningKey(ctx context.Context, kid string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE signing_keys SET is_active = 0, is_primary = 0 WHERE kid = ?`, kid)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
