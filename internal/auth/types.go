package auth

// OperatorClaims represents the JWT claims for the operator
type OperatorClaims struct {
	Operator string `json:"operator"`
}

// TokenResponse is returned by the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	TokenType   string `json:"token_type"` // Always "Bearer"
}

// LoginRequest represents an operator login request
type LoginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password" binding:"required"`
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common auth errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid operator or password"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrLoginDisabled      = AuthError{Code: "LOGIN_DISABLED", Message: "no operator password configured"}
)
