// Package middleware holds the gin middleware shared by every route
// group: request auth, the admin API key gate, and HTTP metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/auth"
	"github.com/gin-gonic/gin"
)

// TokenVerifier is satisfied by *auth.Client from the Firebase SDK.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// RequireUser validates the Firebase ID token from the Authorization
// header and stores the caller's uid under "user_id".
func RequireUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is missing"})
			return
		}
		raw = strings.TrimPrefix(raw, "Bearer ")

		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("user_id", token.UID)
		c.Next()
	}
}

// UserID reads the authenticated uid set by RequireUser.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
