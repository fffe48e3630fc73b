package owner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for owner persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// RegisterOrGet returns the owner registered under token, creating it
	// with a freshly allocated identity if it does not exist yet.
	// Returns ErrTokenRequired if the token is empty.
	RegisterOrGet(ctx context.Context, token string) (*Owner, error)

	// GetByToken retrieves an owner by its external token.
	// Returns ErrOwnerNotFound if no owner is registered under the token.
	GetByToken(ctx context.Context, token string) (*Owner, error)

	// GetByIdentity retrieves an owner by its numeric identity.
	// Returns ErrOwnerNotFound if the identity has never been allocated.
	GetByIdentity(ctx context.Context, identity int64) (*Owner, error)

	// IdentityFor returns the identity allocated for token.
	// Returns ErrOwnerNotFound if no owner is registered under the token.
	IdentityFor(ctx context.Context, token string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
//
// Identity allocation is delegated to the owners table's INTEGER PRIMARY KEY
// AUTOINCREMENT column, which guarantees strictly increasing values.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RegisterOrGet returns the owner registered under token, creating it if needed.
//
// Concurrent first-time registrations for the same token can both observe
// "not found" and both attempt the insert. The UNIQUE constraint on the token
// column arbitrates: the losing insert is resolved by re-reading the row the
// winner created, so every caller receives the same canonical owner.
func (r *SQLiteRepository) RegisterOrGet(ctx context.Context, token string) (*Owner, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenRequired
	}

	existing, err := r.GetByToken(ctx, token)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrOwnerNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO owners (token, created_at) VALUES (?, ?)",
		token,
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost the race: another caller registered the token between
			// our read and insert. Return their row.
			return r.GetByToken(ctx, token)
		}
		return nil, fmt.Errorf("inserting owner: %w", err)
	}

	identity, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading allocated identity: %w", err)
	}

	return &Owner{
		Identity:  identity,
		Token:     token,
		CreatedAt: now,
	}, nil
}

// GetByToken retrieves an owner by its external token.
func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*Owner, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT identity, token, created_at FROM owners WHERE token = ?",
		token,
	)
	return scanOwner(row)
}

// GetByIdentity retrieves an owner by its numeric identity.
func (r *SQLiteRepository) GetByIdentity(ctx context.Context, identity int64) (*Owner, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT identity, token, created_at FROM owners WHERE identity = ?",
		identity,
	)
	return scanOwner(row)
}

// IdentityFor returns the identity allocated for token.
func (r *SQLiteRepository) IdentityFor(ctx context.Context, token string) (int64, error) {
	o, err := r.GetByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	return o.Identity, nil
}

// scanOwner scans a single row into an Owner.
func scanOwner(row *sql.Row) (*Owner, error) {
	var o Owner
	var createdAt string

	err := row.Scan(&o.Identity, &o.Token, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("scanning owner: %w", err)
	}

	o.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &o, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
