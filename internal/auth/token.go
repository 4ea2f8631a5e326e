package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// token.go = client-side look at the realm token. Signatures are NOT verified
// here; only the realm can do that.

// PlaceholderToken is the default credential that never authenticates.
const PlaceholderToken = "incorrect"

var (
	ErrEmptyToken = errors.New("token is empty")
	ErrNotJWT     = errors.New("token is not a JWT")
)

// TokenInfo holds the claims the CLI cares about.
type TokenInfo struct {
	Subject   string
	Username  string
	Issuer    string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	Algorithm string
}

// Expired reports whether the token carries an expiry at or before now.
func (t TokenInfo) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// IsPlaceholder reports whether token is the built-in default credential.
func IsPlaceholder(token string) bool {
	return strings.TrimSpace(token) == PlaceholderToken
}

// Inspect decodes the claims of a JWT without verifying its signature.
func Inspect(token string) (TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenInfo{}, ErrEmptyToken
	}

	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := TokenInfo{Algorithm: parsed.Method.Alg()}
	info.Subject, _ = claims.GetSubject()
	info.Issuer, _ = claims.GetIssuer()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		info.IssuedAt = &t
	}
	for _, key := range []string{"username", "name", "preferred_username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			info.Username = v
			break
		}
	}
	return info, nil
}

// Check returns a human readable warning for tokens that will not authenticate,
// or "" when nothing looks wrong. Opaque non-JWT tokens are accepted silently.
func Check(token string, now time.Time) string {
	switch {
	case strings.TrimSpace(token) == "":
		return "token is empty"
	case IsPlaceholder(token):
		return "token is the placeholder value; set LIVELY_TOKEN or run 'lively-cli auth login'"
	}
	info, err := Inspect(token)
	if err != nil {
		return ""
	}
	if info.Expired(now) {
		return fmt.Sprintf("token expired at %s", info.ExpiresAt.Format(time.RFC3339))
	}
	return ""
}

// SignDevToken issues an HS256 token for the local dev realm.
func SignDevToken(secret, username string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":      username,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyHS256 validates token against secret and returns its subject.
func VerifyHS256(token, secret string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}
