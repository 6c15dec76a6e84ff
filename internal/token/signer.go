package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nichepulse/tokenvault/internal/common"
)

const (
	// MinSecretLength is the minimum accepted length for a signing secret.
	MinSecretLength = 32

	// tokenIDBytes is the entropy of a token identifier: 16 random bytes,
	// hex-encoded to 32 characters.
	tokenIDBytes = 16
)

// Signer performs the pure cryptographic half of the lifecycle: minting
// token identifiers and signing/verifying claim sets with HMAC-SHA256.
// Each token class has its own independent secret, loaded once at
// construction and immutable for the process lifetime.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
}

// NewSigner builds a Signer from the two class secrets. Either secret
// being shorter than MinSecretLength is a configuration error.
func NewSigner(accessSecret, refreshSecret string) (*Signer, error) {
	if len(accessSecret) < MinSecretLength {
		return nil, fmt.Errorf("%w: access secret shorter than %d chars", common.ErrConfiguration, MinSecretLength)
	}
	if len(refreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("%w: refresh secret shorter than %d chars", common.ErrConfiguration, MinSecretLength)
	}
	return &Signer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

// NewTokenID mints a fresh token identifier: 128 bits from crypto/rand,
// hex-encoded. Collisions are treated as negligible.
func (s *Signer) NewTokenID() (string, error) {
	return common.MakeRandHexString(tokenIDBytes)
}

// Sign produces the compact signed-token string for the claim set, using
// the secret of the claim set's own class.
func (s *Signer) Sign(claims *Claims) (string, error) {
	secret, err := s.secretFor(claims.TokenType)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks signature and expiry against the secret of the expected
// class and returns the decoded claim set. Failures come back as
// common.ErrTokenExpired or common.ErrTokenInvalid (malformed input,
// bad signature, or a token signed with another class's secret).
//
// The accepted algorithm is pinned to HS256 so a presented token cannot
// downgrade or switch the signing method.
func (s *Signer) Verify(tokenString string, expected Type) (*Claims, error) {
	secret, err := s.secretFor(expected)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, common.ErrTokenInvalid
	}

	return claims, nil
}

// NewClaims assembles the claim set for one token of the given class.
func NewClaims(id string, identity Identity, tp Type, issuedAt, expiresAt time.Time) *Claims {
	return &Claims{
		Email:     identity.Email,
		Role:      identity.Role,
		TokenType: tp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        id,
		},
	}
}

func (s *Signer) secretFor(tp Type) ([]byte, error) {
	switch tp {
	case TypeAccess:
		return s.accessSecret, nil
	case TypeRefresh:
		return s.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token type %q", tp)
	}
}
