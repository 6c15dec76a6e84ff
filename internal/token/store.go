package token

import (
	"context"
	"time"
)

// Store is the persistence contract for the token ledger. Implementations
// must keep every mutation scoped by a unique id or a set-based filter so
// the service stays correct under concurrent use without locks.
type Store interface {
	// Create appends a new ledger row. A duplicate id fails with
	// common.ErrDuplicateID.
	Create(ctx context.Context, t *Token) error

	// FindActive returns the row for id only when it is not revoked.
	// Absent and revoked ids both come back as common.ErrNotFound;
	// callers cannot tell the two apart at this layer.
	FindActive(ctx context.Context, id string) (*Token, error)

	// Revoke marks one row revoked. Revoking an already-revoked or
	// absent id is a no-op success.
	Revoke(ctx context.Context, id string, revokedBy string) error

	// Consume marks one row revoked and reports whether this call
	// performed the flip. Exactly one of any number of concurrent
	// Consume calls for the same id observes true; an already-revoked
	// or absent id observes false. Rotation relies on this to keep
	// refresh tokens single use under concurrent replay.
	Consume(ctx context.Context, id string, revokedBy string) (bool, error)

	// RevokeAllForUser marks every non-revoked row of the user revoked
	// in a single set-based statement and reports how many it touched.
	RevokeAllForUser(ctx context.Context, userID string, revokedBy string) (int64, error)

	// RevokeExpiredBefore marks every non-revoked row whose expiry has
	// passed revoked, in a single set-based statement.
	RevokeExpiredBefore(ctx context.Context, now time.Time, revokedBy string) (int64, error)

	// CountActive counts non-revoked rows for the user and class.
	CountActive(ctx context.Context, userID string, tp Type) (int, error)
}
