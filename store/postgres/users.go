package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrEthical07/goIdentity/user"
)

const userColumns = `id, username, email, password_hash, salt, role, provider, is_active, created_at, modified_at`

var _ user.Store = (*Store)(nil)

// GetByID implements user.Store.
func (s *Store) GetByID(ctx context.Context, id string) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getUser(ctx, query, id)
}

// GetByUsername implements user.Store.
func (s *Store) GetByUsername(ctx context.Context, username string, caseInsensitive bool) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if caseInsensitive {
		query = `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	}
	return s.getUser(ctx, query, username)
}

// GetByEmail implements user.Store.
func (s *Store) GetByEmail(ctx context.Context, email string, caseInsensitive bool) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if caseInsensitive {
		query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	}
	return s.getUser(ctx, query, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Salt,
		&u.Role, &u.Provider, &u.IsActive, &u.Created, &u.Modified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, sqlError(err)
	}
	return u, nil
}

// Create implements user.Store.
func (s *Store) Create(ctx context.Context, u user.User) error {
	query :=
		`INSERT INTO users (id, username, email, password_hash, salt, role, provider, is_active, created_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Salt,
		u.Role, u.Provider, u.IsActive, u.Created, u.Modified)
	if err != nil {
		return userWriteError(err)
	}
	return nil
}

// Update implements user.Store.
func (s *Store) Update(ctx context.Context, u user.User) error {
	query :=
		`UPDATE users
		 SET username = $2, email = $3, password_hash = $4, salt = $5,
		     role = $6, provider = $7, is_active = $8, modified_at = $9
		 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Salt,
		u.Role, u.Provider, u.IsActive, u.Modified)
	if err != nil {
		return userWriteError(err)
	}
	return expectRow(res, user.ErrNotFound)
}

// Delete implements user.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return sqlError(err)
	}
	return expectRow(res, user.ErrNotFound)
}

func userWriteError(err error) error {
	switch uniqueViolation(err) {
	case "users_username_lower_key":
		return user.ErrUsernameTaken
	case "users_email_lower_key":
		return user.ErrEmailTaken
	default:
		return sqlError(err)
	}
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return sqlError(err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
