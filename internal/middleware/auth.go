package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/healthcare-records/pkg/auth"
	"github.com/jwalitptl/healthcare-records/pkg/errors"
	"github.com/jwalitptl/healthcare-records/pkg/httputil"
)

const ContextSubject = "subject"

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

// NewAuthMiddleware returns a middleware that lets everything through when jwtSvc is nil.
func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

func (m *AuthMiddleware) Enabled() bool {
	return m.jwtSvc != nil
}

// Authenticate verifies the bearer token and stores its subject in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.jwtSvc == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		claims, err := m.jwtSvc.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.Error(errors.Unauthorized(err))
			httputil.RespondWithError(c, errors.Unauthorized(err))
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
