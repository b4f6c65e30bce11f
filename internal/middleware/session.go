package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "session_id"

// SessionConfig controls the browser session cookie
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Session assigns every browser a session id carried in a cookie. The id
// keys the navigation session the dashboard keeps for that browser.
func Session(cfg SessionConfig) gin.HandlerFunc {
	maxAge := int(cfg.MaxAge.Seconds())
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		if err != nil || !validSessionID(sid) {
			sid = uuid.NewString()
		}
		c.Set(sessionKey, sid)

		// refresh on every request so the cookie outlives idle eviction
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sid, maxAge, "/", "", cfg.Secure, true)

		c.Next()
	}
}

// SessionID returns the session id set by Session, or "" outside it
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func validSessionID(sid string) bool {
	_, err := uuid.Parse(sid)
	return err == nil
}
