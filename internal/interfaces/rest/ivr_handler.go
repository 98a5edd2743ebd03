package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/twiml"
)

// IVRFlow is the voice menu driven by the telephony webhooks
type IVRFlow interface {
	Welcome(ctx context.Context) (*twiml.Response, error)
	SelectClinic(ctx context.Context, digits string) (*twiml.Response, error)
	HandleBookingType(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error)
	HandleSpecificDoctor(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error)
}

// IVRHandler answers the voice webhooks with TwiML
type IVRHandler struct {
	flow   IVRFlow
	logger *zap.Logger
}

// NewIVRHandler creates a new IVRHandler
func NewIVRHandler(flow IVRFlow, logger *zap.Logger) *IVRHandler {
	return &IVRHandler{flow: flow, logger: logger}
}

// formValue reads a webhook field from the POST body or, for GET callbacks, the query
func formValue(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return v
	}
	return c.Query(key)
}

// respond writes r, or a spoken apology when the flow failed. The caller is
// always answered with TwiML since the telephony provider cannot read JSON.
func (h *IVRHandler) respond(c *gin.Context, r *twiml.Response, err error) {
	if err != nil {
		h.logger.Error("[IVR] webhook failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		r = twiml.NewResponse().
			Say("Sorry, an error occurred while processing your request. Please try again later.").
			Hangup()
	}
	c.Data(http.StatusOK, constants.ContentTypeXML+"; charset=utf-8", []byte(r.String()))
}

func (h *IVRHandler) clinicID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("clinic_id"), 10, 64)
	if err != nil || id <= 0 {
		h.respond(c, twiml.NewResponse().Say("Sorry, that clinic was not found. Goodbye.").Hangup(), nil)
		return 0, false
	}
	return id, true
}

// Welcome handles /api/ivr/welcome/
func (h *IVRHandler) Welcome(c *gin.Context) {
	r, err := h.flow.Welcome(c.Request.Context())
	h.respond(c, r, err)
}

// SelectClinic handles /api/ivr/select_clinic/
func (h *IVRHandler) SelectClinic(c *gin.Context) {
	r, err := h.flow.SelectClinic(c.Request.Context(), formValue(c, constants.IVRFieldDigits))
	h.respond(c, r, err)
}

// HandleBookingType handles /api/ivr/handle_booking_type/:clinic_id/
func (h *IVRHandler) HandleBookingType(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}
	r, err := h.flow.HandleBookingType(c.Request.Context(), clinicID,
		formValue(c, constants.IVRFieldDigits), formValue(c, constants.IVRFieldFrom))
	h.respond(c, r, err)
}

// HandleSpecificDoctor handles /api/ivr/handle_specific_doctor/:clinic_id/
func (h *IVRHandler) HandleSpecificDoctor(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}
	r, err := h.flow.HandleSpecificDoctor(c.Request.Context(), clinicID,
		formValue(c, constants.IVRFieldDigits), formValue(c, constants.IVRFieldFrom))
	h.respond(c, r, err)
}
