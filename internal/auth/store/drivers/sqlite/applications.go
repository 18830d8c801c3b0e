package sqlite

import (
	"context"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type applications struct {
	q dbtx
}

var _ store.Applications = (*applications)(nil)

const applicationColumns = `id, name, secret_hash, is_public, is_verified, allowed_scopes, redirect_uris, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (domain.Application, error) {
	var (
		app          domain.Application
		isPublic     int
		isVerified   int
		scopes       string
		redirectURIs string
	)
	err := row.Scan(&app.ID, &app.Name, &app.SecretHash, &isPublic, &isVerified,
		&scopes, &redirectURIs, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return domain.Application{}, mapNotFound(err)
	}
	app.IsPublic = isPublic != 0
	app.IsVerified = isVerified != 0
	app.AllowedScopes = splitScopes(scopes)
	if redirectURIs != "" {
		app.RedirectURIs = strings.Split(redirectURIs, "\n")
	}
	return app, nil
}

func (r *applications) GetApplicationByID(ctx context.Context, id string) (domain.Application, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	return scanApplication(row)
}

func (r *applications) ListApplications(ctx context.Context) ([]domain.Application, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *applications) CreateApplication(ctx context.Context, app domain.Application) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO applications (id, name, secret_hash, is_public, is_verified, allowed_scopes, redirect_uris)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.SecretHash, boolToInt(app.IsPublic), boolToInt(app.IsVerified),
		joinScopes(app.AllowedScopes), strings.Join(app.RedirectURIs, "\n"))
	return err
}

func (r *applications) UpdateApplicationScopes(ctx context.Context, appID string, scopes []string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE applications SET allowed_scopes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		joinScopes(scopes), appID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *applications) UpdateApplicationVerified(ctx context.Context, appID string, verified bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE applications SET is_verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolToInt(verified), appID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *applications) DeleteApplication(ctx context.Context, appID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, appID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
