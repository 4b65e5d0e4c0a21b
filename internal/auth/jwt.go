package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mbd888/saaskit/internal/user"
)

// Token types carried in the typ claim. An access token can never be
// used where a refresh token is expected and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Errors
var (
	ErrInvalidToken  = errors.New("auth: invalid or expired token")
	ErrWrongTokenUse = errors.New("auth: wrong token type")
)

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	OrgID string `json:"org"`
	Role  string `json:"role"`
	Staff bool   `json:"staff,omitempty"`
	Typ   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and parses HMAC-SHA256 signed JWTs.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a token manager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue creates an access+refresh token pair for a user.
func (tm *TokenManager) Issue(u *user.User) (access, refresh string, err error) {
	access, err = tm.sign(u, TokenTypeAccess, tm.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = tm.sign(u, TokenTypeRefresh, tm.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// AccessTTL reports the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration { return tm.accessTTL }

func (tm *TokenManager) sign(u *user.User, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		OrgID: u.OrgID,
		Role:  string(u.Role),
		Staff: u.Staff,
		Typ:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Parse validates a token string and checks its typ claim.
func (tm *TokenManager) Parse(tokenStr, wantTyp string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Typ != wantTyp {
		return nil, ErrWrongTokenUse
	}
	return claims, nil
}
