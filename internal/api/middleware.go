// Package api contains the HTTP surface: public content endpoints,
// login, and the token-gated admin console API.
package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/backstage/internal/auth"
	"github.com/atelierhq/backstage/internal/models"
)

const sessionKey = "session"

// RequireAuth validates the bearer token and attaches the session to
// the request context. Requests without a valid token never reach the
// handler.
func RequireAuth(jwt *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "missing bearer token"})
			c.Abort()
			return
		}

		session, err := jwt.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireAdmin allows only sessions carrying the admin role. Must run
// after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil || session.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "PERMISSION_DENIED", "message": "admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionFrom returns the validated session for the request, or nil
// when the request passed through no auth middleware.
func SessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*auth.Session)
	return session
}

// =============================================================================
// LOGIN RATE LIMITING
// =============================================================================

const (
	loginWindow      = 5 * time.Minute
	loginBlock       = 15 * time.Minute
	loginMaxAttempts = 5
)

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// LoginRateLimiter throttles repeated login attempts per client key.
type LoginRateLimiter struct {
	attempts map[string]*loginAttempt
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLoginRateLimiter() *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts: make(map[string]*loginAttempt),
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close stops the background cleanup goroutine. Safe to call more than
// once; the limiter itself keeps working after Close.
func (rl *LoginRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether a login attempt may proceed and, when blocked,
// how long until the block lifts.
func (rl *LoginRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[key]
	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, 0
	}

	if attempt.blockedAt != nil {
		if now.Sub(*attempt.blockedAt) < loginBlock {
			return false, loginBlock - now.Sub(*attempt.blockedAt)
		}
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, 0
	}

	if now.Sub(attempt.firstTry) > loginWindow {
		attempt.count = 1
		attempt.firstTry = now
		return true, 0
	}

	attempt.count++
	if attempt.count > loginMaxAttempts {
		attempt.blockedAt = &now
		return false, loginBlock
	}
	return true, 0
}

// Reset clears the counter for a key after a successful login.
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *LoginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for key, attempt := range rl.attempts {
		stale := now.Sub(attempt.firstTry) > loginWindow
		if attempt.blockedAt != nil {
			stale = now.Sub(*attempt.blockedAt) > loginBlock
		}
		if stale {
			delete(rl.attempts, key)
		}
	}
}
