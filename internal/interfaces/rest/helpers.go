package rest

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/infrastructure/logging"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

// GetUserFromContext extracts the authenticated user set by RequireAuth
func GetUserFromContext(c *gin.Context) (auth.UserSession, bool) {
	value, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return auth.UserSession{}, false
	}
	user, ok := value.(auth.UserSession)
	return user, ok
}

// mustUser returns the session user or answers 401
func mustUser(c *gin.Context) (auth.UserSession, bool) {
	user, ok := GetUserFromContext(c)
	if !ok {
		RespondAppError(c, errors.NewUnauthorizedError("User not authenticated"))
	}
	return user, ok
}

// RespondAppError sends a standardised JSON error response using pkg/errors.
// Field validation failures carry the per-field messages under "details".
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	resp := errors.ToResponse(err)

	if code >= 500 {
		logging.L().Error("request failed",
			zap.Int("status", code),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		if resp.Code == "UNKNOWN_ERROR" {
			// driver and I/O errors stay in the log
			resp.Message = "Internal server error."
		}
	}
	_ = c.Error(err)

	body := gin.H{
		constants.ResponseError: resp.Message, // Legacy
		constants.FieldMessage:  resp.Message,
		"code":                  resp.Code,
		"data":                  nil,
	}
	if resp.Details != nil {
		body["details"] = resp.Details
	}
	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// paramID parses a numeric path parameter; anything else is a 404
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondAppError(c, errors.NewNotFoundMessage("Not found."))
		return 0, false
	}
	return id, true
}
