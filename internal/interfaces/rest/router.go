package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/config"
	"github.com/clinicq/backend/internal/interfaces/middleware"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health
func HealthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
	}
}

// NewRouter wires every HTTP route of the clinic backend
func NewRouter(sm *services.ServiceManager, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Observe(sm.Metrics, logger), middleware.Cors(cfg.CORSAllowedOrigins))

	router.GET("/health", HealthHandler(sm))
	if sm.Metrics != nil {
		router.GET("/metrics", gin.WrapH(sm.Metrics.Handler()))
	}
	if cfg.StaticRoot != "" {
		staticURL := strings.TrimRight(cfg.StaticURL, "/")
		if staticURL == "" {
			staticURL = "/static"
		}
		router.Static(staticURL, cfg.StaticRoot)
	}

	authHandler := NewAuthHandler(sm.Auth)
	tokenHandler := NewTokenHandler(sm.Tokens)
	clinicHandler := NewClinicHandler(sm.Clinics)
	consultationHandler := NewConsultationHandler(sm.Consultations)
	ivrHandler := NewIVRHandler(sm.IVR, logger)

	requireAuth := middleware.RequireAuth(sm.Auth)
	requireStaff := middleware.RequireStaff()

	api := router.Group("/api")
	{
		// Public routes
		api.GET("/public/clinics/", clinicHandler.ListWithDoctors)
		api.POST("/register/patient/", authHandler.Register)
		api.POST("/register/resend-otp/", authHandler.ResendOTP)
		api.POST("/register/verify-otp/", authHandler.VerifyOTP)
		api.POST("/login/", authHandler.Login)
		api.POST("/login/staff/", authHandler.StaffLogin)
		api.POST("/logout/", requireAuth, authHandler.Logout)

		// Patient routes
		patient := api.Group("")
		patient.Use(requireAuth)
		{
			patient.GET("/tokens/get_my_token/", tokenHandler.GetMyToken)
			patient.POST("/tokens/patient_create/", tokenHandler.PatientCreate)
			patient.POST("/tokens/patient_cancel/", tokenHandler.PatientCancel)
			patient.POST("/tokens/confirm_arrival/", tokenHandler.ConfirmArrival)
			patient.GET("/patient/live-queue/:doctor_id/", tokenHandler.LiveQueue)
			patient.GET("/doctors/:doctor_id/available-slots/:date/", tokenHandler.AvailableSlots)
			patient.GET("/clinics_with_doctors/", clinicHandler.ListWithDoctors)
			patient.GET("/history/my_history/", consultationHandler.MyHistory)
		}

		// Staff routes, scoped to the clinic of the signed-in doctor or receptionist
		staff := api.Group("")
		staff.Use(requireAuth, requireStaff)
		{
			staff.GET("/tokens/", tokenHandler.List)
			staff.POST("/tokens/", tokenHandler.Create)
			staff.PATCH("/tokens/:id/update_status/", tokenHandler.UpdateStatus)
			staff.GET("/doctors/", clinicHandler.Doctors)
			staff.GET("/analytics/", clinicHandler.Analytics)
			staff.GET("/history/:patient_id/", consultationHandler.PatientHistory)
			staff.POST("/consultations/create/", consultationHandler.Create)
		}

		// Telephony webhooks answer with TwiML
		ivr := api.Group("/ivr")
		{
			ivr.Match([]string{http.MethodGet, http.MethodPost}, "/welcome/", ivrHandler.Welcome)
			ivr.Match([]string{http.MethodGet, http.MethodPost}, "/select_clinic/", ivrHandler.SelectClinic)
			ivr.Match([]string{http.MethodGet, http.MethodPost}, "/handle_booking_type/:clinic_id/", ivrHandler.HandleBookingType)
			ivr.Match([]string{http.MethodGet, http.MethodPost}, "/handle_specific_doctor/:clinic_id/", ivrHandler.HandleSpecificDoctor)
		}
	}

	return router
}
