package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loleg/couchers/internal/handler"
	"github.com/loleg/couchers/pkg/auth"
)

const ContextService = "service"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate requires a valid service bearer token. The intake API is an
// internal surface: only known producers may raise notifications.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				handler.NewErrorResponse("missing bearer token"))
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				handler.NewErrorResponse("invalid token"))
			return
		}

		c.Set(ContextService, claims.Service)
		c.Next()
	}
}
