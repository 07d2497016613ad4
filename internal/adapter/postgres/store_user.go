package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain/user"
)

const userColumns = `id, username, email, first_name, last_name, COALESCE(cpf, ''), COALESCE(phone, ''),
	password_hash, role, status, failed_login_attempts, last_login, last_password_change,
	must_change_password, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.CPF, &u.Phone,
		&u.PasswordHash, &u.Role, &u.Status, &u.FailedLoginAttempts, &u.LastLogin, &u.LastPasswordChange,
		&u.MustChangePassword, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, role user.Role) ([]user.User, error) {
	var w whereBuilder
	if role != "" {
		w.add("role = $%d", string(role))
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users`+w.sql()+` ORDER BY first_name, last_name, username`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return orEmpty(users), rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get user %s", id)
	}
	return &u, nil
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR lower(email) = lower($1) LIMIT 1`, login))
	if err != nil {
		return nil, wrapErr(err, "get user by login")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = user.StatusActive
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, cpf, phone, password_hash, role, status,
			failed_login_attempts, last_password_change, must_change_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, nullIfEmpty(u.CPF), nullIfEmpty(u.Phone),
		u.PasswordHash, string(u.Role), string(u.Status), u.FailedLoginAttempts, u.LastPasswordChange,
		u.MustChangePassword, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return wrapErr(err, "create user")
	}
	return nil
}

// UpdateUser writes profile, role and status fields. The password hash is
// changed only through UpdatePassword.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, cpf = $6, phone = $7,
			role = $8, status = $9, failed_login_attempts = $10, must_change_password = $11, updated_at = $12
		WHERE id = $1`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, nullIfEmpty(u.CPF), nullIfEmpty(u.Phone),
		string(u.Role), string(u.Status), u.FailedLoginAttempts, u.MustChangePassword, u.UpdatedAt,
	)
	return execExpectOne(tag, err, "update user %s", u.ID)
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, must_change_password = $3, last_password_change = $4, updated_at = $4
		WHERE id = $1`, id, hash, mustChange, now)
	return execExpectOne(tag, err, "update password %s", id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete user %s", id)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, maxAttempts int) (int, user.Status, error) {
	var (
		attempts int
		status   user.Status
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			status = CASE WHEN failed_login_attempts + 1 >= $2 THEN 'inactive' ELSE status END,
			updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts, status`, id, maxAttempts).Scan(&attempts, &status)
	if err != nil {
		return 0, "", wrapErr(err, "record login failure %s", id)
	}
	return attempts, status, nil
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET failed_login_attempts = 0, last_login = $2 WHERE id = $1`, id, at)
	return execExpectOne(tag, err, "record login success %s", id)
}
