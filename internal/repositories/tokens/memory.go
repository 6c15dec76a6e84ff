package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/nichepulse/tokenvault/internal/common"
	"github.com/nichepulse/tokenvault/internal/token"
)

// MemoryRepository is an in-memory token.Store with the same semantics as
// the Postgres ledger. It backs tests and local development; nothing in
// it survives a restart.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*token.Token
}

var _ token.Store = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]*token.Token)}
}

func (r *MemoryRepository) Create(_ context.Context, t *token.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[t.ID]; ok {
		return fmt.Errorf("%w: %s", common.ErrDuplicateID, t.ID)
	}
	cp := *t
	r.tokens[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindActive(_ context.Context, id string) (*token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.IsRevoked {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string, revokedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeLocked(id, revokedBy, time.Now())
	return nil
}

func (r *MemoryRepository) Consume(_ context.Context, id string, revokedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.revokeLocked(id, revokedBy, time.Now()), nil
}

func (r *MemoryRepository) RevokeAllForUser(_ context.Context, userID string, revokedBy string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var n int64
	for id, t := range r.tokens {
		if t.UserID == userID && !t.IsRevoked {
			r.revokeLocked(id, revokedBy, now)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) RevokeExpiredBefore(_ context.Context, now time.Time, revokedBy string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tokens {
		if !t.IsRevoked && t.ExpiresAt.Before(now) {
			r.revokeLocked(id, revokedBy, now)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountActive(_ context.Context, userID string, tp token.Type) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.Type == tp && !t.IsRevoked {
			n++
		}
	}
	return n, nil
}

// revokeLocked flips one token to its terminal state and reports whether
// this call did the flip. Callers hold mu. Absent and already-revoked ids
// return false, matching the row count of the SQL filter
// `WHERE id = $1 AND NOT is_revoked`.
func (r *MemoryRepository) revokeLocked(id string, revokedBy string, at time.Time) bool {
	t, ok := r.tokens[id]
	if !ok || t.IsRevoked {
		return false
	}
	t.IsRevoked = true
	t.RevokedAt = sql.NullTime{Time: at, Valid: true}
	if revokedBy != "" {
		t.RevokedBy = sql.NullString{String: revokedBy, Valid: true}
	}
	return true
}
