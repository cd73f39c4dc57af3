package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // per-issuance identifier for refresh tokens
)

// SignedToken represents an HS256 JWT along with its expiry.  The Token
// field contains the serialized JWT string and Exp its UTC expiration time.
// Access tokens are short-lived and sent in the Authorization header when
// calling protected endpoints; refresh tokens are long-lived, stored in the
// refresh_tokens ledger, and redeemable exactly once.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// ErrInvalidToken is returned by ParseToken for tokens that fail signature
// verification, are expired, or carry malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for a user.  The claims carry
// the user id and email so that handlers can identify the caller without a
// second lookup, plus the standard exp and iat timestamps.
func NewAccessToken(secret string, userID uint64, email string, ttlMin int) (SignedToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     exp.Unix(),
		"iat":     time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs a refresh JWT.  Alongside the user id it
// embeds a fresh random token_id, so two refresh tokens minted for the same
// user in the same second are still distinct strings.  The ttlDays parameter
// controls how many days the token stays valid; the refresh_tokens ledger
// stores the same expiry and remains authoritative over it.
func NewRefreshToken(secret string, userID uint64, ttlDays int) (SignedToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := jwt.MapClaims{
		"user_id":  userID,
		"token_id": uuid.NewString(),
		"exp":      exp.Unix(),
		"iat":      time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies an HS256 JWT against the secret and returns its
// claims.  Tokens signed with a different method, an invalid signature or a
// past expiry all yield ErrInvalidToken.
func ParseToken(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ClaimUserID extracts the user_id claim as uint64.  JWT numeric values are
// decoded as float64 by the library.
func ClaimUserID(claims jwt.MapClaims) (uint64, bool) {
	v, ok := claims["user_id"].(float64)
	if !ok || v < 0 {
		return 0, false
	}
	return uint64(v), true
}
