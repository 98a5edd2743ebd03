package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

// AuthAPI is the part of the auth service the handlers call
type AuthAPI interface {
	Login(ctx context.Context, username, password string, staffOnly bool) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error)
	ResendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) error
}

// AuthHandler serves login, logout and patient registration
type AuthHandler struct {
	svc AuthAPI
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc AuthAPI) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OTPRequest carries the phone and, for verification, the code
type OTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

func (h *AuthHandler) login(c *gin.Context, staffOnly bool) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		RespondAppError(c, errors.NewBadRequest("Invalid Credentials"))
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, staffOnly)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentLogin(result))
}

// Login handles POST /api/login/
func (h *AuthHandler) Login(c *gin.Context) { h.login(c, false) }

// StaffLogin handles POST /api/login/staff/
func (h *AuthHandler) StaffLogin(c *gin.Context) { h.login(c, true) }

// Logout handles POST /api/logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(constants.ContextKeyToken)
	if err := h.svc.Logout(c.Request.Context(), sessionID); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Logged out successfully."})
}

// Register handles POST /api/register/patient/
func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !BindJSON(c, &in) {
		return
	}

	result, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentRegistration(result))
}

// ResendOTP handles POST /api/register/resend-otp/
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req OTPRequest
	if !BindJSON(c, &req) {
		return
	}
	if err := h.svc.ResendOTP(c.Request.Context(), req.PhoneNumber); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "A new OTP has been sent to your phone."})
}

// VerifyOTP handles POST /api/register/verify-otp/
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req OTPRequest
	if !BindJSON(c, &req) {
		return
	}
	if err := h.svc.VerifyOTP(c.Request.Context(), req.PhoneNumber, req.OTP); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Phone number verified successfully."})
}
