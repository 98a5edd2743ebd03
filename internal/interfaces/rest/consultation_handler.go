package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/auth"
)

// ConsultationAPI is the part of the consultation service the handlers call
type ConsultationAPI interface {
	Create(ctx context.Context, user auth.UserSession, in services.ConsultationInput) (*models.Consultation, error)
	MyHistory(ctx context.Context, user auth.UserSession) ([]*models.Consultation, error)
	PatientHistory(ctx context.Context, user auth.UserSession, patientID int64) ([]*models.Consultation, error)
}

// ConsultationHandler serves consultations and medical history
type ConsultationHandler struct {
	svc ConsultationAPI
}

// NewConsultationHandler creates a new ConsultationHandler
func NewConsultationHandler(svc ConsultationAPI) *ConsultationHandler {
	return &ConsultationHandler{svc: svc}
}

func respondHistory(c *gin.Context, history []*models.Consultation, err error) {
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if history == nil {
		history = []*models.Consultation{}
	}
	c.JSON(http.StatusOK, history)
}

// Create handles POST /api/consultations/create/
func (h *ConsultationHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var in services.ConsultationInput
	if !BindJSON(c, &in) {
		return
	}

	consultation, err := h.svc.Create(c.Request.Context(), user, in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, consultation)
}

// MyHistory handles GET /api/history/my_history/
func (h *ConsultationHandler) MyHistory(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	history, err := h.svc.MyHistory(c.Request.Context(), user)
	respondHistory(c, history, err)
}

// PatientHistory handles GET /api/history/:patient_id/
func (h *ConsultationHandler) PatientHistory(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	patientID, ok := paramID(c, "patient_id")
	if !ok {
		return
	}
	history, err := h.svc.PatientHistory(c.Request.Context(), user, patientID)
	respondHistory(c, history, err)
}
