package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ AccountStore = (*PGStore)(nil)

// PGStore implements AccountStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(username, password_hash, role) values($1,$2,$3)`,
		account.Username, account.PasswordHash, string(account.Role),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select username, password_hash, role, created_at, updated_at from accounts where username=$1`,
		username)
	var a Account
	if err := row.Scan(&a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2, updated_at=now() where username=$1`,
		username, passwordHash,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select username, password_hash, role, created_at, updated_at from accounts order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where username=$1`, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
