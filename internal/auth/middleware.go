package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"caseflow/internal/db/repositories"
	"caseflow/pkg/models"
)

// AuthMiddleware provides API key authentication for the HTTP API.
type AuthMiddleware struct {
	repos     *repositories.Repositories
	localMode bool
}

func NewAuthMiddleware(repos *repositories.Repositories, localMode bool) *AuthMiddleware {
	return &AuthMiddleware{repos: repos, localMode: localMode}
}

// GenerateAPIKey generates a new random API key.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "cf-" + hex.EncodeToString(bytes), nil
}

// Authenticate validates the Bearer API key and stores the user on the gin
// context. In local mode the bootstrap admin user (id 1) is assumed.
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.localMode {
			user, err := am.repos.Users.GetByID(c.Request.Context(), 1)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "local user not provisioned"})
				c.Abort()
				return
			}
			c.Set("user", user)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format, expected Bearer token"})
			c.Abort()
			return
		}

		apiKey := strings.TrimPrefix(authHeader, "Bearer ")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "empty API key"})
			c.Abort()
			return
		}

		user, err := am.repos.Users.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// GetUserFromContext retrieves the authenticated user from the gin context.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}
