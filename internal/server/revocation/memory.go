package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry keeps revocations in process memory. Entries are lost on
// restart.
type MemoryRegistry struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRegistry) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.revoked[jti]; !ok || expiresAt.After(cur) {
		r.revoked[jti] = expiresAt
	}
	return nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.revoked[jti]
	return ok && r.now().Before(exp), nil
}

// Prune drops entries whose token has already expired.
func (r *MemoryRegistry) Prune(_ context.Context) (int64, error) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for jti, exp := range r.revoked {
		if !now.Before(exp) {
			delete(r.revoked, jti)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked entries, expired or not.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}
