package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

// Authenticator resolves a bearer token to its claims
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

func abort(c *gin.Context, err error) {
	status := errors.GetHTTPStatus(err)
	c.AbortWithStatusJSON(status, gin.H{
		constants.ResponseError: http.StatusText(status),
		constants.FieldMessage:  err.Error(),
		"code":                  errors.GetErrorCode(err),
		"data":                  nil,
	})
}

// RequireAuth is a middleware that validates bearer tokens against live sessions
func RequireAuth(authSvc Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			abort(c, errors.NewUnauthorizedError("No authorization token provided"))
			return
		}

		// "Bearer <token>"; the DRF style "Token <token>" is accepted as well
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || (parts[0] != "Bearer" && parts[0] != "Token") || parts[1] == "" {
			abort(c, errors.NewUnauthorizedError("Invalid authorization header format"))
			return
		}

		claims, err := authSvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(constants.ContextKeyUser, claims.User)
		c.Set(constants.ContextKeyToken, claims.ID)
		c.Next()
	}
}

// RequireStaff lets doctors and receptionists through
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(constants.ContextKeyUser)
		if !exists {
			abort(c, errors.NewUnauthorizedError("User not authenticated"))
			return
		}

		user, ok := value.(auth.UserSession)
		if !ok || !user.IsStaff() {
			abort(c, errors.NewForbidden("Only clinic staff can access this resource."))
			return
		}
		c.Next()
	}
}
