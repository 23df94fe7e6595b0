package middleware

import (
	"context"
	"net/http"
	"strings"

	"nexus/internal/access"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextUserID  = "userID"
	ContextDecider = "accessDecider"

	AccessTokenCookie = "access_token"
)

// TokenParser verifies an access token and returns its user id.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// DeciderSource builds the access decider of a user.
type DeciderSource interface {
	Decider(ctx context.Context, userID uuid.UUID) (*access.Decider, error)
}

// Auth authenticates requests and gates routes by feature or role.
type Auth struct {
	tokens   TokenParser
	deciders DeciderSource
	log      *zap.Logger
}

func NewAuth(tokens TokenParser, deciders DeciderSource, log *zap.Logger) *Auth {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auth{tokens: tokens, deciders: deciders, log: log}
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, token string, maxAge int) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if gin.Mode() == gin.ReleaseMode {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context) {
	SetTokenCookie(c, "", -1)
}

// UserID returns the authenticated user of the request.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// CurrentDecider returns the decider resolved earlier in the chain, if any.
func CurrentDecider(c *gin.Context) (*access.Decider, bool) {
	v, ok := c.Get(ContextDecider)
	if !ok {
		return nil, false
	}
	d, ok := v.(*access.Decider)
	return d, ok
}

func bearerToken(c *gin.Context) (string, string) {
	// Try cookie first, fallback to Authorization header
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// authenticate sets the user id on the context or aborts with 401.
func (a *Auth) authenticate(c *gin.Context) bool {
	if _, ok := UserID(c); ok {
		return true
	}
	token, problem := bearerToken(c)
	if problem != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
		return false
	}
	userID, err := a.tokens.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return false
	}
	c.Set(ContextUserID, userID)
	return true
}

// decider resolves the caller's decider once per request.
func (a *Auth) decider(c *gin.Context) (*access.Decider, bool) {
	if d, ok := CurrentDecider(c); ok {
		return d, true
	}
	userID, _ := UserID(c)
	d, err := a.deciders.Decider(c.Request.Context(), userID)
	if err != nil {
		a.log.Error("failed to resolve access", zap.String("user_id", userID.String()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
		return nil, false
	}
	c.Set(ContextDecider, d)
	return d, true
}

// Authenticate only requires a valid token.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		c.Next()
	}
}

func (a *Auth) require(check func(d *access.Decider) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		d, ok := a.decider(c)
		if !ok {
			return
		}
		// Neither grant nor deny before permissions are known.
		if !d.Resolved() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "Permissions are still loading"))
			return
		}
		if !check(d) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, access.RestrictedMessage))
			return
		}
		c.Next()
	}
}

// RequireFeature admits callers whose role grants feature.
func (a *Auth) RequireFeature(feature access.Feature) gin.HandlerFunc {
	return a.require(func(d *access.Decider) bool { return d.CanAccess(feature) })
}

// RequireMinRole admits callers ranked at least minRole.
func (a *Auth) RequireMinRole(minRole access.Role) gin.HandlerFunc {
	return a.require(func(d *access.Decider) bool { return d.HasMinRole(minRole) })
}

// RequireAdmin admits callers holding the admin role.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return a.require(func(d *access.Decider) bool { return d.Subject().IsAdmin })
}
