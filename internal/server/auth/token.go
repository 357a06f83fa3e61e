// Package auth holds password hashing and the purpose-scoped token issuer.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pathwayfr/pathway/internal/common"
)

// Purpose names what a token may be used for.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

// salts keep every purpose on its own signing key.
var salts = map[Purpose]string{
	PurposeAccess:            "pathway-access-token",
	PurposeRefresh:           "pathway-refresh-token",
	PurposeEmailVerification: "pathway-email-confirm",
	PurposePasswordReset:     "pathway-reset-password",
}

// HasJTI reports whether tokens of this purpose carry a revocable identifier.
func (p Purpose) HasJTI() bool {
	return p == PurposeAccess || p == PurposeRefresh
}

// Claims is the JWT payload. Subject is the user id as a string.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"pur"`
}

// TokenIssuer signs and verifies HS256 tokens. Each purpose uses a key
// derived from the server secret and the purpose salt.
type TokenIssuer struct {
	keys map[Purpose][]byte
	ttl  map[Purpose]time.Duration
	now  func() time.Time
}

// NewTokenIssuer builds an issuer. ttl gives the lifetime of each purpose;
// a purpose missing from ttl cannot be issued.
func NewTokenIssuer(secret []byte, ttl map[Purpose]time.Duration) *TokenIssuer {
	keys := make(map[Purpose][]byte, len(salts))
	for p, salt := range salts {
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(salt))
		keys[p] = mac.Sum(nil)
	}
	lifetimes := make(map[Purpose]time.Duration, len(ttl))
	for p, d := range ttl {
		lifetimes[p] = d
	}
	return &TokenIssuer{keys: keys, ttl: lifetimes, now: time.Now}
}

// MaxAge returns the configured lifetime for p.
func (i *TokenIssuer) MaxAge(p Purpose) time.Duration {
	return i.ttl[p]
}

// Issue mints a token for subject. Access and refresh tokens get a fresh jti.
func (i *TokenIssuer) Issue(subject string, p Purpose) (string, *Claims, error) {
	key, ok := i.keys[p]
	ttl := i.ttl[p]
	if !ok || ttl <= 0 {
		return "", nil, fmt.Errorf("unsupported token purpose %q", p)
	}

	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: p,
	}
	if p.HasJTI() {
		claims.ID = uuid.NewString()
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

// Verify checks signature, purpose and age. The error is always one of
// common.ErrInvalidToken, common.ErrTokenExpired or common.ErrTokenWrongPurpose.
// maxAge <= 0 falls back to the configured lifetime of p.
func (i *TokenIssuer) Verify(token string, p Purpose, maxAge time.Duration) (*Claims, error) {
	key, ok := i.keys[p]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if maxAge <= 0 {
		maxAge = i.ttl[p]
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, keyFunc(key),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuedAt(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if i.signedForOtherPurpose(token, p) {
			return nil, common.ErrTokenWrongPurpose
		}
		return nil, common.ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	default:
		return nil, common.ErrInvalidToken
	}

	if claims.Purpose != p {
		return nil, common.ErrTokenWrongPurpose
	}
	if claims.IssuedAt == nil || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	if maxAge > 0 && i.now().Sub(claims.IssuedAt.Time) > maxAge {
		return nil, common.ErrTokenExpired
	}
	if p.HasJTI() && claims.ID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// signedForOtherPurpose reports whether token carries a valid signature for
// the purpose it claims, which differs from want.
func (i *TokenIssuer) signedForOtherPurpose(token string, want Purpose) bool {
	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, unverified); err != nil {
		return false
	}
	key, ok := i.keys[unverified.Purpose]
	if !ok || unverified.Purpose == want {
		return false
	}
	_, err := jwt.ParseWithClaims(token, &Claims{}, keyFunc(key),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return err == nil
}

func keyFunc(key []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		return key, nil
	}
}
