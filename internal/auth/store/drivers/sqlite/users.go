package sqlite

import (
	"context"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

type users struct {
	q dbtx
}

var _ store.Users = (*users)(nil)

const userColumns = `id, name, given_name, family_name, picture, email, email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u             domain.User
		emailVerified int
	)
	err := row.Scan(&u.ID, &u.Name, &u.GivenName, &u.FamilyName, &u.Picture,
		&u.Email, &emailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.EmailVerified = emailVerified != 0
	return u, nil
}

func (r *users) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *users) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *users) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, name, given_name, family_name, picture, email, email_verified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.GivenName, u.FamilyName, u.Picture, u.Email, boolToInt(u.EmailVerified))
	return err
}

func (r *users) UpdateUserProfile(ctx context.Context, u domain.User) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET name = ?, given_name = ?, family_name = ?, picture = ?,
		        email = ?, email_verified = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		u.Name, u.GivenName, u.FamilyName, u.Picture, u.Email, boolToInt(u.EmailVerified), u.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *users) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
