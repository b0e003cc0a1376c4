package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atelierhq/backstage/internal/auth"
	apperrors "github.com/atelierhq/backstage/internal/errors"
)

// AuthHandler serves login and session introspection.
type AuthHandler struct {
	service *auth.Service
	limiter *LoginRateLimiter
	log     zerolog.Logger
}

func NewAuthHandler(service *auth.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		limiter: NewLoginRateLimiter(),
		log:     log.With().Str("component", "api.auth").Logger(),
	}
}

// Close releases the handler's rate-limiter resources.
func (h *AuthHandler) Close() {
	h.limiter.Close()
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a bearer token.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "email and password are required"})
		return
	}

	key := c.ClientIP() + "|" + req.Email
	if ok, retryIn := h.limiter.Allow(key); !ok {
		c.Header("Retry-After", retryIn.Round(time.Second).String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "RATE_LIMITED",
			"message": "too many login attempts, try again later",
		})
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, body := apperrors.ToHTTPError(err)
		c.JSON(status, body)
		return
	}

	h.limiter.Reset(key)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

// Me returns the identity behind the presented token.
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	session := SessionFrom(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "no session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    session.UserID,
		"email": session.Email,
		"role":  session.Role,
	})
}
