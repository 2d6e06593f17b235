package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// memStore is an in-memory AccountStore for service tests.
type memStore struct {
	accounts map[string]*Account
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*Account)}
}

func (m *memStore) Create(ctx context.Context, account *Account) error {
	if _, ok := m.accounts[account.Username]; ok {
		return ErrConflict
	}
	cp := *account
	m.accounts[account.Username] = &cp
	return nil
}

func (m *memStore) Find(ctx context.Context, username string) (*Account, error) {
	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	a, ok := m.accounts[username]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (m *memStore) List(ctx context.Context) ([]*Account, error) {
	var out []*Account
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, username string) error {
	if _, ok := m.accounts[username]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, username)
	return nil
}

func newTestService(t *testing.T, now *time.Time) (*Service, *memStore) {
	t.Helper()
	clock := func() time.Time { return *now }
	iss, err := NewIssuer([]byte("service-test-secret"), 24*time.Hour, WithIssuerClock(clock))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	store := newMemStore()
	svc := NewService(store, iss, NewBlacklist(WithBlacklistClock(clock)), WithClock(clock))
	return svc, store
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Register(ctx, "alice", "pw1", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "pw2", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The stored credential still verifies only against the first password.
	if _, _, err := svc.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("login with original password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Register(ctx, "", "pw", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty username, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "pw", Role("SUPERUSER")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}

	account, err := svc.Register(ctx, "alice", "pw", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Role != RoleUser {
		t.Fatalf("default role = %q, want USER", account.Role)
	}
	if account.PasswordHash == "pw" {
		t.Fatal("password stored as plaintext")
	}
}

func TestLoginUnknownUserAndWrongPassword(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Register(ctx, "alice", "pw", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, errUnknown := svc.Login(ctx, "nobody", "pw")
	_, _, errWrongPw := svc.Login(ctx, "alice", "wrong")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("unknown user and wrong password must be indistinguishable: %v vs %v", errUnknown, errWrongPw)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Register(ctx, "alice", "pw", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Authenticate(ctx, token); err != nil {
		t.Fatalf("authenticate before logout: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after logout, got %v", err)
	}

	// After the token's natural expiry the registry forgets it; the token
	// then fails as expired, not revoked.
	now = now.Add(25 * time.Hour)
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after expiry, got %v", err)
	}
	if got := svc.Blacklist().Len(); got != 0 {
		t.Fatalf("registry still holds %d entries after expiry", got)
	}
}

func TestAuthenticateFailureModes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Authenticate(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing token, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	if _, err := svc.Register(ctx, "alice", "old", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, "alice", "wrong", "new"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "nobody", "old", "new"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "alice", "old", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty new password, got %v", err)
	}

	if err := svc.ChangePassword(ctx, "alice", "old", "new"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "old"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "new"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthorizeOwnershipMatrix(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, &now)

	cases := []struct {
		name          string
		principal     Principal
		owner         string
		requiresAdmin bool
		allow         bool
	}{
		{"user on foreign resource", Principal{"alice", RoleUser}, "bob", false, false},
		{"admin on foreign resource", Principal{"alice", RoleAdmin}, "bob", false, true},
		{"owner on own resource", Principal{"bob", RoleUser}, "bob", false, true},
		{"user on admin route", Principal{"alice", RoleUser}, "", true, false},
		{"admin on admin route", Principal{"alice", RoleAdmin}, "", true, true},
	}
	for _, tc := range cases {
		err := svc.Authorize(tc.principal, tc.owner, tc.requiresAdmin)
		if tc.allow && err != nil {
			t.Errorf("%s: expected allow, got %v", tc.name, err)
		}
		if !tc.allow && !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", tc.name, err)
		}
	}
}
