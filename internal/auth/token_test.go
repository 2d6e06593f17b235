package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer([]byte("test-secret"), 24*time.Hour, WithIssuerClock(now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss := newTestIssuer(t, time.Now)

	for _, tc := range []struct {
		username string
		role     Role
	}{
		{"alice", RoleUser},
		{"bob", RoleAdmin},
	} {
		token, expiresAt, err := iss.Issue(tc.username, tc.role)
		if err != nil {
			t.Fatalf("Issue(%s): %v", tc.username, err)
		}
		if got, want := time.Until(expiresAt), 24*time.Hour; got > want || got < want-time.Minute {
			t.Fatalf("unexpected expiry %v", expiresAt)
		}
		claims, err := iss.Verify(token)
		if err != nil {
			t.Fatalf("Verify(%s): %v", tc.username, err)
		}
		if claims.Subject != tc.username {
			t.Fatalf("subject = %q, want %q", claims.Subject, tc.username)
		}
		if claims.Role != tc.role {
			t.Fatalf("role = %q, want %q", claims.Role, tc.role)
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	current := time.Now()
	iss := newTestIssuer(t, func() time.Time { return current })

	token, _, err := iss.Issue("alice", RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(24*time.Hour + time.Minute)
	if _, err := iss.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	iss := newTestIssuer(t, time.Now)
	other, err := NewIssuer([]byte("a-different-secret"), 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, _, err := other.Issue("alice", RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := iss.Verify(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	iss := newTestIssuer(t, time.Now)
	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := iss.Verify(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	if _, err := NewIssuer(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer([]byte("x"), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
