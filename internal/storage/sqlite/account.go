package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/corsair/internal/storage"
)

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccountRepository creates an AccountRepository backed by db.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// Create inserts a new account with a bcrypt-hashed password.
//
// Postcondition: Returns the created Account, or storage.ErrAccountExists if the username is taken.
func (r *AccountRepository) Create(ctx context.Context, username, password string) (storage.Account, error) {
	hash, err := storage.HashPassword(password)
	if err != nil {
		return storage.Account{}, fmt.Errorf("hashing password: %w", err)
	}
	created := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, hash, formatTime(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Account{}, storage.ErrAccountExists
		}
		return storage.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Account{}, fmt.Errorf("reading account id: %w", err)
	}
	return storage.Account{ID: id, Username: username, PasswordHash: hash, CreatedAt: created}, nil
}

// Authenticate verifies credentials and returns the matching account.
//
// Postcondition: Returns storage.ErrAccountNotFound for an unknown username and
// storage.ErrInvalidCredentials for a wrong password.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) (storage.Account, error) {
	acct, err := r.get(ctx, `WHERE username = ?`, username)
	if err != nil {
		return storage.Account{}, err
	}
	if !storage.CheckPassword(password, acct.PasswordHash) {
		return storage.Account{}, storage.ErrInvalidCredentials
	}
	return acct, nil
}

// GetByID retrieves an account by id.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (storage.Account, error) {
	return r.get(ctx, `WHERE id = ?`, id)
}

func (r *AccountRepository) get(ctx context.Context, where string, arg any) (storage.Account, error) {
	var (
		acct    storage.Account
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts `+where, arg,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Account{}, storage.ErrAccountNotFound
		}
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	if acct.CreatedAt, err = parseTime(created); err != nil {
		return storage.Account{}, err
	}
	return acct, nil
}
