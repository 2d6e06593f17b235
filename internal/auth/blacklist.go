package auth

import (
	"context"
	"sync"
	"time"
)

// Blacklist tracks explicitly revoked tokens until their natural expiry.
// It is shared mutable state: every authenticated request consults it and
// the background sweep deletes from it, so all access goes through one
// mutex. Cardinality is bounded by the number of active tokens.
//
// The registry is process-local and non-persistent: a restart forgets all
// revocations, silently re-validating logged-out tokens until they expire.
type Blacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	onSweep func(remaining int)
}

// BlacklistOption configures a Blacklist.
type BlacklistOption func(*Blacklist)

// WithBlacklistClock overrides the time source (useful for tests).
func WithBlacklistClock(fn func() time.Time) BlacklistOption {
	return func(b *Blacklist) {
		if fn != nil {
			b.now = fn
		}
	}
}

// WithSweepHook installs a callback invoked after each sweep with the
// number of entries still held, e.g. to feed a metrics gauge.
func WithSweepHook(fn func(remaining int)) BlacklistOption {
	return func(b *Blacklist) {
		b.onSweep = fn
	}
}

// NewBlacklist constructs an empty registry.
func NewBlacklist(opts ...BlacklistOption) *Blacklist {
	b := &Blacklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Revoke records the token as revoked until expiresAt. Revoking the same
// token twice is a no-op; tokens already past expiry are not recorded.
func (b *Blacklist) Revoke(token string, expiresAt time.Time) {
	if token == "" || !expiresAt.After(b.now()) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[token]; ok {
		return
	}
	b.entries[token] = expiresAt
}

// IsRevoked reports whether the token is currently revoked. A stale entry
// (past its expiry) counts as not-revoked and is removed on the spot.
func (b *Blacklist) IsRevoked(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiresAt, ok := b.entries[token]
	if !ok {
		return false
	}
	if b.now().After(expiresAt) {
		delete(b.entries, token)
		return false
	}
	return true
}

// Sweep removes every entry past its expiry and returns the number evicted.
// Redundant with the lazy check in IsRevoked, but bounds memory for tokens
// that are revoked and never looked up again.
func (b *Blacklist) Sweep() int {
	b.mu.Lock()
	now := b.now()
	evicted := 0
	for token, expiresAt := range b.entries {
		if now.After(expiresAt) {
			delete(b.entries, token)
			evicted++
		}
	}
	remaining := len(b.entries)
	b.mu.Unlock()

	if b.onSweep != nil {
		b.onSweep(remaining)
	}
	return evicted
}

// Len returns the number of entries currently held.
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Run sweeps on a fixed interval until the context is cancelled. Shutdown
// is best-effort: there is no persisted state to corrupt.
func (b *Blacklist) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}
