package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/refresh"
)

const sessionColumns = `id, user_id, token_hash, expires_at, created_at, modified_at`

var _ refresh.Store = (*Store)(nil)

// CountSessionsForUser implements refresh.Store.
func (s *Store) CountSessionsForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, sqlError(err)
	}
	return n, nil
}

// GetOldestSession implements refresh.Store.
func (s *Store) GetOldestSession(ctx context.Context, userID string) (refresh.Token, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`
	return s.getSession(ctx, query, userID)
}

// DeleteOldestSession implements refresh.Store.
func (s *Store) DeleteOldestSession(ctx context.Context, userID string) error {
	query :=
		`DELETE FROM refresh_tokens
		 WHERE id = (
		     SELECT id FROM refresh_tokens
		     WHERE user_id = $1
		     ORDER BY created_at ASC, id ASC
		     LIMIT 1
		 )`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return sqlError(err)
	}
	return expectRow(res, refresh.ErrNotFound)
}

// CreateSession implements refresh.Store.
func (s *Store) CreateSession(ctx context.Context, token refresh.Token) error {
	query :=
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Hash, token.Expires, token.Created, token.Modified)
	if err != nil {
		return sqlError(err)
	}
	return nil
}

// FindSession implements refresh.Store.
func (s *Store) FindSession(ctx context.Context, userID, hash string) (refresh.Token, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE user_id = $1 AND token_hash = $2`
	return s.getSession(ctx, query, userID, hash)
}

func (s *Store) getSession(ctx context.Context, query string, args ...any) (refresh.Token, error) {
	var t refresh.Token
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.UserID, &t.Hash, &t.Expires, &t.Created, &t.Modified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return refresh.Token{}, refresh.ErrNotFound
		}
		return refresh.Token{}, sqlError(err)
	}
	return t, nil
}

// RotateSession implements refresh.Store.
func (s *Store) RotateSession(ctx context.Context, id, oldHash, newHash string, modified time.Time) error {
	query :=
		`UPDATE refresh_tokens
		 SET token_hash = $3, modified_at = $4
		 WHERE id = $1 AND token_hash = $2`

	res, err := s.db.ExecContext(ctx, query, id, oldHash, newHash, modified)
	if err != nil {
		return sqlError(err)
	}
	return expectRow(res, refresh.ErrNotFound)
}

// DeleteSession implements refresh.Store.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	if err != nil {
		return sqlError(err)
	}
	return expectRow(res, refresh.ErrNotFound)
}

// DeleteAllForUser implements refresh.Store.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, sqlError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sqlError(err)
	}
	return int(n), nil
}
