package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Siddharthrai7i/NAJARIA/internal/auth"
)

// Context keys populated for authenticated requests.
const (
	UserIDKey    = "userID"
	UsernameKey  = "username"
	VillageIDKey = "villageID"
)

// Auth validates the session token from the Authorization header or the
// session cookie and rejects inactive or unauthenticated callers.
func Auth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		ident, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !ident.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account is inactive"})
			return
		}

		c.Set(UserIDKey, ident.UserID)
		c.Set(UsernameKey, ident.Username)
		c.Set(VillageIDKey, ident.VillageID)
		c.Next()
	}
}

// TokenFromRequest extracts the raw session token from the bearer header, the
// session cookie, or (for websocket handshakes) the token query parameter.
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}

	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}

	return c.Query("token")
}
