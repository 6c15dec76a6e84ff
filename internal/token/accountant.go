package token

import "context"

// Accountant is a thin read-model over the Store answering "how many
// devices/sessions does this user have". The count of live refresh
// tokens is the session count: rotation keeps at most one live refresh
// token per issuance chain.
type Accountant struct {
	store Store
}

func NewAccountant(store Store) *Accountant {
	return &Accountant{store: store}
}

// ActiveSessions returns the number of non-revoked refresh tokens.
func (a *Accountant) ActiveSessions(ctx context.Context, userID string) (int, error) {
	return a.store.CountActive(ctx, userID, TypeRefresh)
}

// ActiveTokens returns the number of non-revoked tokens of one class,
// mostly useful for diagnostics.
func (a *Accountant) ActiveTokens(ctx context.Context, userID string, tp Type) (int, error) {
	return a.store.CountActive(ctx, userID, tp)
}
