package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Session lifetimes. No refresh mechanism exists; a "remember me" login
// simply gets the longer expiry.
const (
	SessionTTL         = 8 * time.Hour
	RememberSessionTTL = 7 * 24 * time.Hour
)

var (
	// ErrTokenExpired marks a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid marks a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the JWT payload carried by every session token. ExternalID is
// the helpdesk provider customer id when the user was resolved at login;
// consumers prefer it over a fresh provider lookup.
type Claims struct {
	UserID     int64  `json:"id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	ExternalID int64  `json:"external_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 session tokens with a single
// process-wide secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue signs a token for the identity. Expiry is 7 days when remember is
// set, 8 hours otherwise.
func (tm *TokenManager) Issue(claims Claims, remember bool) (string, time.Time, error) {
	ttl := SessionTTL
	if remember {
		ttl = RememberSessionTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns its claims. Expired tokens fail with
// ErrTokenExpired, everything else with ErrTokenInvalid.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
