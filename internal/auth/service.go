package auth

import (
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog"
)

// DefaultOperator names the single operator account
const DefaultOperator = "operator"

// Service issues and verifies operator tokens. It is disabled when no JWT
// secret is configured.
type Service struct {
	jwt          *JWTManager
	passwordHash string
	logger       zerolog.Logger
}

// NewService creates the auth service
func NewService(jwtSecret, passwordHash string, tokenDuration time.Duration, logger zerolog.Logger) *Service {
	s := &Service{
		passwordHash: passwordHash,
		logger:       logger.With().Str("component", "auth").Logger(),
	}
	if jwtSecret != "" {
		s.jwt = NewJWTManager(jwtSecret, tokenDuration)
	}
	return s
}

// Enabled reports whether requests must carry a token
func (s *Service) Enabled() bool {
	return s.jwt != nil
}

// Login checks the operator password and returns a token
func (s *Service) Login(req LoginRequest) (*TokenResponse, error) {
	if !s.Enabled() || s.passwordHash == "" {
		return nil, ErrLoginDisabled
	}
	operator := req.Operator
	if operator == "" {
		operator = DefaultOperator
	}
	if subtle.ConstantTimeCompare([]byte(operator), []byte(DefaultOperator)) != 1 ||
		!VerifyPassword(req.Password, s.passwordHash) {
		s.logger.Warn().Str("operator", operator).Msg("Rejected login")
		return nil, ErrInvalidCredentials
	}
	s.logger.Info().Str("operator", operator).Msg("Issued operator token")
	return s.jwt.GenerateToken(operator)
}

// Validate checks a bearer token
func (s *Service) Validate(token string) (*OperatorClaims, error) {
	if !s.Enabled() {
		return &OperatorClaims{Operator: DefaultOperator}, nil
	}
	return s.jwt.ValidateToken(token)
}
