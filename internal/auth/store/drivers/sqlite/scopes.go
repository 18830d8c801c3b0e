package sqlite

import (
	"context"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type scopes struct {
	q dbtx
}

var _ store.Scopes = (*scopes)(nil)

func (r *scopes) GetScopeByName(ctx context.Context, name string) (domain.Scope, error) {
	var (
		s    domain.Scope
		reqV int
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT name, description, requires_verification FROM scopes WHERE name = ?`, name).
		Scan(&s.Name, &s.Description, &reqV)
	if err != nil {
		return domain.Scope{}, mapNotFound(err)
	}
	s.RequiresVerification = reqV != 0
	return s, nil
}

func (r *scopes) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT name, description, requires_verification FROM scopes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Scope
	for rows.Next() {
		var (
			s    domain.Scope
			reqV int
		)
		if err := rows.Scan(&s.Name, &s.Description, &reqV); err != nil {
			return nil, err
		}
		s.RequiresVerification = reqV != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *scopes) CreateScope(ctx context.Context, s domain.Scope) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO scopes (name, description, requires_verification) VALUES (?, ?, ?)`,
		s.Name, s.Description, boolToInt(s.RequiresVerification))
	return err
}

func (r *scopes) DeleteScope(ctx context.Context, name string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM scopes WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
