package auth

import (
	"context"
	"strings"
	"time"
)

// Service binds the credential store, token issuer and revocation registry
// into the operations exposed to the HTTP layer. It holds no hidden global
// state; the composition root owns all three collaborators.
type Service struct {
	store     AccountStore
	issuer    *Issuer
	blacklist *Blacklist
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store AccountStore, issuer *Issuer, blacklist *Blacklist, opts ...ServiceOption) *Service {
	svc := &Service{
		store:     store,
		issuer:    issuer,
		blacklist: blacklist,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Blacklist exposes the revocation registry, e.g. so the composition root
// can start its background sweep.
func (s *Service) Blacklist() *Blacklist {
	return s.blacklist
}

// Register creates an account. Hashing happens here, as an explicit step
// before the storage call, never as a persistence side effect. The role is
// fixed at creation; there is no escalation path.
func (s *Service) Register(ctx context.Context, username, password string, role Role) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := &Account{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login verifies credentials and issues a token. Unknown usernames and
// wrong passwords are deliberately indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	account, err := s.store.Find(ctx, username)
	if err != nil {
		if err == ErrNotFound {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.issuer.Issue(account.Username, account.Role)
}

// Logout revokes the token until its natural expiry. Tokens that no longer
// verify (already expired, malformed) have nothing to revoke; logout is
// idempotent and never fails for them.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil
	}
	s.blacklist.Revoke(token, claims.ExpiresAt.Time)
	return nil
}

// ChangePassword re-hashes and stores a new password after verifying the
// old one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidInput
	}
	account, err := s.store.Find(ctx, username)
	if err != nil {
		return err
	}
	if err := VerifyPassword(account.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, username, hash)
}

// Authenticate validates a bearer token and returns the principal it
// asserts. The checks run in a fixed order: presence, revocation,
// signature/expiry. Each failure mode is distinct so the transport can
// map 401 (re-auth) apart from 403 (broken token).
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, ErrUnauthenticated
	}
	if s.blacklist.IsRevoked(token) {
		return Principal{}, ErrRevoked
	}
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return Principal{}, ErrTokenMalformed
	}
	return Principal{Username: claims.Subject, Role: role}, nil
}

// Authorize decides whether the principal may act on a resource. Admins
// bypass ownership; everyone else must own the resource. requiresAdmin
// gates admin-only routes regardless of ownership.
func (s *Service) Authorize(principal Principal, resourceOwner string, requiresAdmin bool) error {
	if requiresAdmin && !principal.IsAdmin() {
		return ErrForbidden
	}
	if resourceOwner != "" && resourceOwner != principal.Username && !principal.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
