package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// UserResolver loads the active user behind a token subject
type UserResolver interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// JWTAuthMiddleware creates a gin middleware for JWT authentication. Tokens
// whose user is missing or inactive are rejected.
func JWTAuthMiddleware(tokens *jwt.TokenService, users UserResolver, logger *zap.Logger) gin.HandlerFunc {
	const bearerSchema = "Bearer "

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "UNAUTHORIZED", "Authorization header is required")
			return
		}
		if !strings.HasPrefix(authHeader, bearerSchema) {
			abortUnauthorized(c, "UNAUTHORIZED", "Authorization header must start with Bearer")
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(authHeader[len(bearerSchema):]))
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or missing token")
			return
		}

		user, err := users.CurrentUser(c.Request.Context(), claims.Subject)
		if err != nil {
			logger.Debug("token user rejected", zap.String("user_id", claims.Subject), zap.Error(err))
			abortUnauthorized(c, "USER_NOT_FOUND", "User not found or inactive")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
