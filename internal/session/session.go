// Package session keeps the shape of the login session in one place: a typed
// identity, flash notices for the page surface, and backing-store selection.
package session

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"

	"minilibrary/internal/config"
	"minilibrary/internal/models"
)

const (
	// CookieName is the session cookie presented to browsers.
	CookieName = "mini_library_session"

	keyUserID   = "user_id"
	keyUsername = "username"
	keyUserRole = "user_role"
	keyFlashes  = "flashes"
)

// Identity is the request-scoped view of the logged-in user.
type Identity struct {
	UserID   uint
	Username string
	Role     models.UserRole
}

func (id Identity) IsAdmin() bool {
	return id.Role == models.UserRoleAdmin
}

// Flash is a transient one-shot notice rendered on the next page view.
type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register([]Flash{})
}

// NewStore builds the session backing store: redis when configured, signed
// cookies otherwise.
func NewStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.SessionRedisAddr != "" {
		return redis.NewStore(10, "tcp", cfg.SessionRedisAddr, cfg.SessionRedisPass, []byte(cfg.SessionSecret))
	}
	return cookie.NewStore([]byte(cfg.SessionSecret)), nil
}

// SetLoginUser binds the user identity to the session.
func SetLoginUser(c *gin.Context, user *models.User) error {
	s := sessions.Default(c)
	s.Set(keyUserID, user.ID)
	s.Set(keyUsername, user.Username)
	s.Set(keyUserRole, string(user.Role))
	return s.Save()
}

// GetLoginUser returns the session identity, or nil when not logged in.
func GetLoginUser(c *gin.Context) *Identity {
	s := sessions.Default(c)
	rawID := s.Get(keyUserID)
	if rawID == nil {
		return nil
	}
	userID, ok := rawID.(uint)
	if !ok {
		return nil
	}
	username, _ := s.Get(keyUsername).(string)
	role, _ := s.Get(keyUserRole).(string)
	return &Identity{
		UserID:   userID,
		Username: username,
		Role:     models.UserRole(role),
	}
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}

// ClearSession drops the identity and any pending flashes. The cookie itself
// survives so a notice flashed right after logout still renders.
func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}

// AddFlash queues a notice for the next rendered page.
func AddFlash(c *gin.Context, level, message string) {
	s := sessions.Default(c)
	flashes, _ := s.Get(keyFlashes).([]Flash)
	flashes = append(flashes, Flash{Level: level, Message: message})
	s.Set(keyFlashes, flashes)
	_ = s.Save()
}

// PopFlashes returns queued notices and clears them.
func PopFlashes(c *gin.Context) []Flash {
	s := sessions.Default(c)
	flashes, _ := s.Get(keyFlashes).([]Flash)
	if len(flashes) > 0 {
		s.Delete(keyFlashes)
		_ = s.Save()
	}
	return flashes
}
