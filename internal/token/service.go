package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nichepulse/tokenvault/internal/common"
	"github.com/nichepulse/tokenvault/internal/logging"
)

// Actors recorded in revoked_by for revocations the service performs on
// its own behalf.
const (
	actorIssuance  = "issuance"
	actorRotation  = "rotation"
	actorValidator = "validator"
	actorSweeper   = "sweeper"
)

const bearerPrefix = "Bearer "

// Service orchestrates the token lifecycle. It composes the Signer and
// the Store and owns no mutable state beyond its configuration, so it is
// safe to share across concurrent callers.
type Service struct {
	signer     *Signer
	store      Store
	accountant *Accountant
	logger     logging.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService wires the lifecycle orchestrator. accessTTL and refreshTTL
// are the lifetimes stamped into newly issued access and refresh tokens.
func NewService(signer *Signer, store Store, logger logging.Logger, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		signer:     signer,
		store:      store,
		accountant: NewAccountant(store),
		logger:     logger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateTokens issues a fresh access/refresh pair for a verified
// identity. The two ledger writes are independent rows and are dispatched
// concurrently; if either fails the call fails as a whole and the half
// that landed is revoked so it can never validate.
func (s *Service) GenerateTokens(ctx context.Context, identity Identity, deviceInfo, ipAddress string) (*Pair, error) {
	now := time.Now()

	accessID, err := s.signer.NewTokenID()
	if err != nil {
		return nil, fmt.Errorf("minting access token id: %w", err)
	}
	refreshID, err := s.signer.NewTokenID()
	if err != nil {
		return nil, fmt.Errorf("minting refresh token id: %w", err)
	}

	accessExpiry := now.Add(s.accessTTL)
	refreshExpiry := now.Add(s.refreshTTL)

	accessToken, err := s.signer.Sign(NewClaims(accessID, identity, TypeAccess, now, accessExpiry))
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refreshToken, err := s.signer.Sign(NewClaims(refreshID, identity, TypeRefresh, now, refreshExpiry))
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	records := []*Token{
		s.newRecord(accessID, identity.UserID, TypeAccess, now, accessExpiry, deviceInfo, ipAddress),
		s.newRecord(refreshID, identity.UserID, TypeRefresh, now, refreshExpiry, deviceInfo, ipAddress),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		rec := rec
		g.Go(func() error { return s.store.Create(gctx, rec) })
	}
	if err := g.Wait(); err != nil {
		// One write may have landed. Revoking both ids is idempotent and
		// a no-op for an id that was never inserted.
		for _, rec := range records {
			if revokeErr := s.store.Revoke(ctx, rec.ID, actorIssuance); revokeErr != nil {
				s.logger.Error(ctx, "rollback of half-issued token failed", "jti", rec.ID, "error", revokeErr)
			}
		}
		return nil, fmt.Errorf("persisting token pair: %w", err)
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// ValidateToken verifies a signed token against the expected class and
// the revocation ledger, returning its claims on success. Every failure
// path returns the same opaque common.ErrTokenInvalid; the internal
// reason is only logged.
func (s *Service) ValidateToken(ctx context.Context, tokenString string, expected Type) (*Claims, error) {
	claims, err := s.signer.Verify(tokenString, expected)
	if err != nil {
		return nil, s.reject(ctx, err, "", expected)
	}

	// A refresh token must never pass as an access token, nor the other
	// way round, even though each class has its own secret.
	if claims.TokenType != expected {
		return nil, s.reject(ctx, common.ErrTypeMismatch, claims.ID, expected)
	}

	record, err := s.store.FindActive(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// The ledger cannot tell revoked from never issued; log the
			// miss as what it is.
			return nil, s.reject(ctx, err, claims.ID, expected)
		}
		s.logger.Error(ctx, "token lookup failed", "jti", claims.ID, "error", err)
		return nil, common.ErrTokenInvalid
	}

	// Signature verification already enforced exp; re-check against the
	// stored row and lazily revoke if the clock has passed it since.
	if now := time.Now(); !record.Active(now) {
		if err := s.store.Revoke(ctx, record.ID, actorValidator); err != nil {
			s.logger.Error(ctx, "lazy revocation failed", "jti", record.ID, "error", err)
		}
		return nil, s.reject(ctx, common.ErrTokenExpired, record.ID, expected)
	}

	return claims, nil
}

// RefreshToken consumes a refresh token and issues an entirely new pair.
// Refresh tokens are one-time use: the presented token's id is consumed
// before reissue, and the consume is conditional, so of any number of
// concurrent presentations of the same token exactly one reaches reissue
// and the rest fail closed.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string, deviceInfo, ipAddress string) (*Pair, error) {
	claims, err := s.ValidateToken(ctx, refreshToken, TypeRefresh)
	if err != nil {
		return nil, err
	}

	consumed, err := s.store.Consume(ctx, claims.ID, actorRotation)
	if err != nil {
		return nil, fmt.Errorf("consuming refresh token %s: %w", claims.ID, err)
	}
	if !consumed {
		// Lost the race to a concurrent rotation of the same token.
		return nil, s.reject(ctx, common.ErrTokenRevoked, claims.ID, TypeRefresh)
	}

	return s.GenerateTokens(ctx, claims.Identity(), deviceInfo, ipAddress)
}

// Revoke marks a single token revoked. Revoking an already-revoked or
// unknown id succeeds.
func (s *Service) Revoke(ctx context.Context, id string, revokedBy string) error {
	return s.store.Revoke(ctx, id, revokedBy)
}

// RevokeAllForUser invalidates every live token of the user, including
// ones the caller never saw. Used on logout-everywhere, password change
// and account lockout. Returns how many tokens were revoked.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string, revokedBy string) (int64, error) {
	n, err := s.store.RevokeAllForUser(ctx, userID, revokedBy)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "revoked all user tokens", "user_id", userID, "revoked", n)
	return n, nil
}

// CleanupExpiredTokens marks every time-expired, non-revoked token
// revoked. Running it twice in a row leaves the ledger unchanged.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.RevokeExpiredBefore(ctx, time.Now(), actorSweeper)
}

// ActiveSessionCount reports the number of live sessions for a user.
func (s *Service) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	return s.accountant.ActiveSessions(ctx, userID)
}

// reject logs the internal rejection reason and collapses it into the
// one public failure value so callers get no validation oracle.
func (s *Service) reject(ctx context.Context, reason error, id string, expected Type) error {
	s.logger.Debug(ctx, "token rejected", "jti", id, "expected_type", string(expected), "reason", reason)
	return common.ErrTokenInvalid
}

func (s *Service) newRecord(id, userID string, tp Type, issuedAt, expiresAt time.Time, deviceInfo, ipAddress string) *Token {
	return &Token{
		ID:         id,
		UserID:     userID,
		Type:       tp,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		DeviceInfo: sql.NullString{String: deviceInfo, Valid: deviceInfo != ""},
		IPAddress:  sql.NullString{String: ipAddress, Valid: ipAddress != ""},
	}
}

// ExtractBearerToken pulls the raw token out of an Authorization header
// value. It returns the empty string when the Bearer prefix is absent.
func ExtractBearerToken(headerValue string) string {
	raw, found := strings.CutPrefix(headerValue, bearerPrefix)
	if !found {
		return ""
	}
	return strings.TrimSpace(raw)
}
