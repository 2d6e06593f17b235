package auth

import "context"

// AccountStore describes the persistence operations required by the auth
// subsystem. Uniqueness of usernames is enforced by the store at creation.
type AccountStore interface {
	// Create persists a new account. Returns ErrConflict if the username
	// is already taken.
	Create(ctx context.Context, account *Account) error
	// Find returns the account for a username, or ErrNotFound.
	Find(ctx context.Context, username string) (*Account, error)
	// UpdatePassword replaces the stored password hash. Returns
	// ErrNotFound if no such account exists.
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*Account, error)
	// Delete removes the account. Returns ErrNotFound if absent.
	Delete(ctx context.Context, username string) error
}
