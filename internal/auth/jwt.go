package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer   = "equities-trading-bot"
	audience = "equities-trading-bot-api"
)

// JWTManager handles JWT token operations
type JWTManager struct {
	secret        []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims represents the JWT claims
type Claims struct {
	OperatorClaims
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, tokenDuration time.Duration) *JWTManager {
	if tokenDuration <= 0 {
		tokenDuration = 12 * time.Hour
	}
	return &JWTManager{
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// GenerateToken signs an access token for operator
func (m *JWTManager) GenerateToken(operator string) (*TokenResponse, error) {
	now := m.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OperatorClaims: OperatorClaims{Operator: operator},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  []string{audience},
		},
	})

	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		AccessToken: signedToken,
		ExpiresIn:   int64(m.tokenDuration.Seconds()),
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates an access token and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &claims.OperatorClaims, nil
}
