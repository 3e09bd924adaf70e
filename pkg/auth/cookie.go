package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipecost/pkg/config"
)

// RefreshCookieName names the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// CookieManager binds the refresh token to an HTTP-only cookie. Set and
// Clear share write, so both always carry identical attributes and the
// browser matches the cookie on deletion.
type CookieManager struct {
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite
	maxAge   int
}

func NewCookieManager(cfg *config.Config) *CookieManager {
	secure := cfg.Production()
	return &CookieManager{
		path:     cfg.CookiePath,
		domain:   cfg.CookieDomain,
		secure:   secure,
		sameSite: sameSiteFor(cfg.CrossOrigin, secure),
		maxAge:   int(cfg.JWTRefreshExpires.Seconds()),
	}
}

// sameSiteFor picks the strictest policy that still delivers the cookie.
// Cross-origin clients need None, which browsers only accept with Secure.
func sameSiteFor(crossOrigin, secure bool) http.SameSite {
	switch {
	case crossOrigin && secure:
		return http.SameSiteNoneMode
	case crossOrigin:
		return http.SameSiteLaxMode
	default:
		return http.SameSiteStrictMode
	}
}

func (m *CookieManager) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(m.sameSite)
	c.SetCookie(RefreshCookieName, value, maxAge, m.path, m.domain, m.secure, true)
}

// Set stores the refresh token for the refresh token's lifetime.
func (m *CookieManager) Set(c *gin.Context, token string) {
	m.write(c, token, m.maxAge)
}

// Clear expires the cookie immediately.
func (m *CookieManager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

// Read returns the refresh token sent by the client, if any.
func (m *CookieManager) Read(c *gin.Context) (string, bool) {
	v, err := c.Cookie(RefreshCookieName)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}
