// Package token implements the token lifecycle: issuance of paired
// access/refresh credentials, HMAC-SHA256 signing and verification,
// one-time-use refresh rotation, revocation, and session accounting over
// a persistent token ledger.
package token

import (
	"database/sql"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type distinguishes the two token classes. Each class is signed and
// verified with its own secret.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Token is one persisted row of the revocation ledger: a single issued
// access or refresh token. Rows are created by issuance, flipped to
// revoked exactly once, and never deleted by the service.
type Token struct {
	ID         string
	UserID     string
	Type       Type
	IssuedAt   time.Time
	ExpiresAt  time.Time
	DeviceInfo sql.NullString
	IPAddress  sql.NullString
	IsRevoked  bool
	RevokedAt  sql.NullTime
	RevokedBy  sql.NullString
}

// Active reports whether the token is usable at the given instant:
// not revoked and not yet expired.
func (t *Token) Active(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// Identity is the verified user identity supplied by the authentication
// layer at issuance time.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Claims is the signed claim set carried inside a token. The registered
// claims provide sub, iat, exp and jti; jti links the claim set back to
// its ledger row for revocation checks.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType Type   `json:"type"`
	jwt.RegisteredClaims
}

// Identity reconstructs the issuance identity from a verified claim set.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}
}

// Pair is the transport artifact returned to the caller on issuance or
// refresh. It is never persisted as a unit; its two halves live as two
// independent ledger rows.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}
