package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the token endpoint
type Handler struct {
	service *Service
}

// NewHandler creates the auth HTTP handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Token handles POST /api/auth/token
func (h *Handler) Token(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	resp, err := h.service.Login(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrLoginDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrLoginDisabled.Code, "message": ErrLoginDisabled.Message})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Code, "message": ErrInvalidCredentials.Message})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
