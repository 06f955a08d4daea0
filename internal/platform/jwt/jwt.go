package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingLoginName = errors.New("token has no login_name")

// Claims mirrors the session token issued by the Treasure Map API.
type Claims struct {
	LoginName string `json:"login_name"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
}

// NewManager verifies HS256 tokens. An empty issuer skips the issuer check,
// since the upstream API does not set one.
func NewManager(secret, issuer string) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer}
}

func (m *Manager) Generate(loginName string, ttl time.Duration) (string, error) {
	claims := Claims{
		LoginName: loginName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if m.issuer != "" && claims.Issuer != m.issuer {
			return nil, jwt.ErrTokenInvalidIssuer
		}
		if claims.LoginName == "" {
			return nil, ErrMissingLoginName
		}
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
