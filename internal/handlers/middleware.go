package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"minilibrary/internal/logger"
	"minilibrary/internal/session"
)

const identityKey = "identity"

// RequestID tags each request with a v4 uuid and logs the round trip.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		logger.Debugf("%s %s %s status=%d duration=%s",
			id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// identityFrom returns the request identity placed there by the auth
// middleware, falling back to the session for routes outside the guarded
// groups.
func identityFrom(c *gin.Context) *session.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*session.Identity); ok {
			return id
		}
	}
	return session.GetLoginUser(c)
}

// RequireAuthAPI rejects unauthenticated API calls with 401 and stores the
// identity in the request context for the handlers downstream.
func RequireAuthAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.GetLoginUser(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdminAPI additionally demands the admin role, answering 403 otherwise.
func RequireAdminAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.GetLoginUser(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAuthPage redirects anonymous visitors to the login page.
func RequireAuthPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.GetLoginUser(c)
		if id == nil {
			session.AddFlash(c, "error", "You must be logged in to access this page.")
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdminPage sends non-admins back to their dashboard.
func RequireAdminPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.GetLoginUser(c)
		if id == nil {
			session.AddFlash(c, "error", "You must be logged in to access this page.")
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		if !id.IsAdmin() {
			session.AddFlash(c, "error", "Access denied. You do not have the required permissions.")
			c.Redirect(http.StatusSeeOther, "/dashboard")
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}
