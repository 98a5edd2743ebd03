package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/auth"
)

// ClinicAPI is the part of the clinic service the handlers call
type ClinicAPI interface {
	ListWithDoctors(ctx context.Context) ([]*models.ClinicSummary, error)
	StaffDoctors(ctx context.Context, user auth.UserSession) ([]*models.Doctor, error)
	Analytics(ctx context.Context, user auth.UserSession) (*models.ClinicAnalytics, error)
}

// ClinicHandler serves clinic listings and staff analytics
type ClinicHandler struct {
	svc ClinicAPI
}

// NewClinicHandler creates a new ClinicHandler
func NewClinicHandler(svc ClinicAPI) *ClinicHandler {
	return &ClinicHandler{svc: svc}
}

// ListWithDoctors handles GET /api/public/clinics/ and GET /api/clinics_with_doctors/
func (h *ClinicHandler) ListWithDoctors(c *gin.Context) {
	clinics, err := h.svc.ListWithDoctors(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if clinics == nil {
		clinics = []*models.ClinicSummary{}
	}
	c.JSON(http.StatusOK, clinics)
}

// Doctors handles GET /api/doctors/
func (h *ClinicHandler) Doctors(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	doctors, err := h.svc.StaffDoctors(c.Request.Context(), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if doctors == nil {
		doctors = []*models.Doctor{}
	}
	c.JSON(http.StatusOK, doctors)
}

// Analytics handles GET /api/analytics/
func (h *ClinicHandler) Analytics(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	stats, err := h.svc.Analytics(c.Request.Context(), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
