package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

// TokenAPI is the part of the token service the handlers call
type TokenAPI interface {
	CreateForPatient(ctx context.Context, user auth.UserSession, doctorID int64, appointmentTime *string) (*models.Token, error)
	GetMyToken(ctx context.Context, user auth.UserSession) (*models.Token, error)
	CancelForPatient(ctx context.Context, user auth.UserSession) error
	ConfirmArrival(ctx context.Context, user auth.UserSession, lat, lon *float64) (*models.Token, error)
	LiveQueue(ctx context.Context, doctorID int64) ([]models.QueueEntry, error)
	AvailableSlots(ctx context.Context, doctorID int64, date string) ([]string, error)
	StaffList(ctx context.Context, user auth.UserSession) ([]*models.Token, error)
	StaffCreate(ctx context.Context, user auth.UserSession, in services.WalkInInput) (*models.Token, error)
	UpdateStatus(ctx context.Context, user auth.UserSession, tokenID int64, status string) (*models.Token, error)
}

// TokenHandler serves the patient and staff queue endpoints
type TokenHandler struct {
	svc TokenAPI
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(svc TokenAPI) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// PatientCreateRequest is the body of POST /api/tokens/patient_create/
type PatientCreateRequest struct {
	DoctorID        int64   `json:"doctor_id"`
	AppointmentTime *string `json:"appointment_time"`
}

// ArrivalRequest carries the patient's position
type ArrivalRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// StatusRequest is the body of PATCH /api/tokens/:id/update_status/
type StatusRequest struct {
	Status string `json:"status"`
}

// GetMyToken handles GET /api/tokens/get_my_token/
func (h *TokenHandler) GetMyToken(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	t, err := h.svc.GetMyToken(c.Request.Context(), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentToken(t))
}

// PatientCreate handles POST /api/tokens/patient_create/
func (h *TokenHandler) PatientCreate(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req PatientCreateRequest
	if !BindJSON(c, &req) {
		return
	}
	if req.AppointmentTime != nil && *req.AppointmentTime == "" {
		req.AppointmentTime = nil
	}

	t, err := h.svc.CreateForPatient(c.Request.Context(), user, req.DoctorID, req.AppointmentTime)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentToken(t))
}

// PatientCancel handles POST /api/tokens/patient_cancel/
func (h *TokenHandler) PatientCancel(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	if err := h.svc.CancelForPatient(c.Request.Context(), user); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Your token has been successfully cancelled."})
}

// ConfirmArrival handles POST /api/tokens/confirm_arrival/
func (h *TokenHandler) ConfirmArrival(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req ArrivalRequest
	if !BindJSON(c, &req) {
		return
	}

	t, err := h.svc.ConfirmArrival(c.Request.Context(), user, req.Latitude, req.Longitude)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "Arrival confirmed successfully.",
		"token":                presentToken(t),
	})
}

// LiveQueue handles GET /api/patient/live-queue/:doctor_id/
func (h *TokenHandler) LiveQueue(c *gin.Context) {
	doctorID, ok := paramID(c, "doctor_id")
	if !ok {
		return
	}
	queue, err := h.svc.LiveQueue(c.Request.Context(), doctorID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if queue == nil {
		queue = []models.QueueEntry{}
	}
	c.JSON(http.StatusOK, queue)
}

// AvailableSlots handles GET /api/doctors/:doctor_id/available-slots/:date/
func (h *TokenHandler) AvailableSlots(c *gin.Context) {
	doctorID, ok := paramID(c, "doctor_id")
	if !ok {
		return
	}
	slots, err := h.svc.AvailableSlots(c.Request.Context(), doctorID, c.Param("date"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	c.JSON(http.StatusOK, slots)
}

// List handles GET /api/tokens/
func (h *TokenHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	tokens, err := h.svc.StaffList(c.Request.Context(), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTokens(tokens))
}

// Create handles POST /api/tokens/ (walk-in registration at the desk)
func (h *TokenHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var in services.WalkInInput
	if !BindJSON(c, &in) {
		return
	}

	t, err := h.svc.StaffCreate(c.Request.Context(), user, in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentToken(t))
}

// UpdateStatus handles PATCH /api/tokens/:id/update_status/
func (h *TokenHandler) UpdateStatus(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !BindJSON(c, &req) {
		return
	}
	if req.Status == "" {
		RespondAppError(c, errors.NewBadRequest("Invalid or not allowed status update."))
		return
	}

	t, err := h.svc.UpdateStatus(c.Request.Context(), user, id, req.Status)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentToken(t))
}
