package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/domain"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/interfaces/rest"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
	"github.com/clinicq/backend/pkg/twiml"
)

// MockTokenService is a mock implementation of rest.TokenAPI
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) token(args mock.Arguments) (*models.Token, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenService) CreateForPatient(ctx context.Context, user auth.UserSession, doctorID int64, appointmentTime *string) (*models.Token, error) {
	return m.token(m.Called(ctx, user, doctorID, appointmentTime))
}

func (m *MockTokenService) GetMyToken(ctx context.Context, user auth.UserSession) (*models.Token, error) {
	return m.token(m.Called(ctx, user))
}

func (m *MockTokenService) CancelForPatient(ctx context.Context, user auth.UserSession) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockTokenService) ConfirmArrival(ctx context.Context, user auth.UserSession, lat, lon *float64) (*models.Token, error) {
	return m.token(m.Called(ctx, user, lat, lon))
}

func (m *MockTokenService) LiveQueue(ctx context.Context, doctorID int64) ([]models.QueueEntry, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QueueEntry), args.Error(1)
}

func (m *MockTokenService) AvailableSlots(ctx context.Context, doctorID int64, date string) ([]string, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTokenService) StaffList(ctx context.Context, user auth.UserSession) ([]*models.Token, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Token), args.Error(1)
}

func (m *MockTokenService) StaffCreate(ctx context.Context, user auth.UserSession, in services.WalkInInput) (*models.Token, error) {
	return m.token(m.Called(ctx, user, in))
}

func (m *MockTokenService) UpdateStatus(ctx context.Context, user auth.UserSession, tokenID int64, status string) (*models.Token, error) {
	return m.token(m.Called(ctx, user, tokenID, status))
}

// MockAuthService is a mock implementation of rest.AuthAPI
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, username, password string, staffOnly bool) (*services.LoginResult, error) {
	args := m.Called(ctx, username, password, staffOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RegisterResult), args.Error(1)
}

func (m *MockAuthService) ResendOTP(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

// MockIVRFlow is a mock implementation of rest.IVRFlow
type MockIVRFlow struct {
	mock.Mock
}

func (m *MockIVRFlow) response(args mock.Arguments) (*twiml.Response, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twiml.Response), args.Error(1)
}

func (m *MockIVRFlow) Welcome(ctx context.Context) (*twiml.Response, error) {
	return m.response(m.Called(ctx))
}

func (m *MockIVRFlow) SelectClinic(ctx context.Context, digits string) (*twiml.Response, error) {
	return m.response(m.Called(ctx, digits))
}

func (m *MockIVRFlow) HandleBookingType(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error) {
	return m.response(m.Called(ctx, clinicID, digits, from))
}

func (m *MockIVRFlow) HandleSpecificDoctor(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error) {
	return m.response(m.Called(ctx, clinicID, digits, from))
}

func newContext(method, target string, body interface{}, user *auth.UserSession) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBytes)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", constants.ContentTypeJSON)
	if user != nil {
		c.Set(constants.ContextKeyUser, *user)
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleToken() *models.Token {
	phone := "+15550001111"
	return &models.Token{
		ID:          9,
		DoctorID:    2,
		ClinicID:    1,
		TokenNumber: 4,
		CreatedAt:   time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		Status:      domain.StatusWaiting,
		Patient:     &models.Patient{ID: 5, Name: "Asha", Age: 31, PhoneNumber: &phone},
		DoctorName:  "Rao",
		ClinicName:  "City Clinic",
	}
}

func TestTokenHandler_GetMyToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	patient := auth.UserSession{UserID: 1, Role: constants.RolePatient, ProfileID: 5}

	t.Run("Success", func(t *testing.T) {
		svc := new(MockTokenService)
		handler := rest.NewTokenHandler(svc)
		c, w := newContext(http.MethodGet, "/api/tokens/get_my_token/", nil, &patient)

		svc.On("GetMyToken", mock.Anything, patient).Return(sampleToken(), nil).Once()
		handler.GetMyToken(c)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Dr. Rao", body["doctor"])
		assert.Equal(t, "City Clinic", body["clinic"])
		assert.Equal(t, float64(4), body["token_number"])
		assert.Equal(t, "waiting", body["status"])
		assert.Equal(t, "Asha", body["patient"].(map[string]interface{})["name"])
		svc.AssertExpectations(t)
	})

	t.Run("No Active Token", func(t *testing.T) {
		svc := new(MockTokenService)
		handler := rest.NewTokenHandler(svc)
		c, w := newContext(http.MethodGet, "/api/tokens/get_my_token/", nil, &patient)

		svc.On("GetMyToken", mock.Anything, patient).
			Return(nil, errors.NewNotFoundMessage("No active token found for today.")).Once()
		handler.GetMyToken(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No active token found for today.", decode(t, w)["error"])
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		handler := rest.NewTokenHandler(new(MockTokenService))
		c, w := newContext(http.MethodGet, "/api/tokens/get_my_token/", nil, nil)

		handler.GetMyToken(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTokenHandler_PatientCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	patient := auth.UserSession{UserID: 1, Role: constants.RolePatient}
	slot := "10:15"

	svc := new(MockTokenService)
	handler := rest.NewTokenHandler(svc)
	c, w := newContext(http.MethodPost, "/api/tokens/patient_create/",
		rest.PatientCreateRequest{DoctorID: 2, AppointmentTime: &slot}, &patient)

	svc.On("CreateForPatient", mock.Anything, patient, int64(2), &slot).Return(sampleToken(), nil).Once()
	handler.PatientCreate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestTokenHandler_PatientCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	patient := auth.UserSession{UserID: 1, Role: constants.RolePatient}

	svc := new(MockTokenService)
	handler := rest.NewTokenHandler(svc)
	c, w := newContext(http.MethodPost, "/api/tokens/patient_cancel/", nil, &patient)

	svc.On("CancelForPatient", mock.Anything, patient).Return(nil).Once()
	handler.PatientCancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Your token has been successfully cancelled.", decode(t, w)["message"])
}

func TestTokenHandler_ConfirmArrival(t *testing.T) {
	gin.SetMode(gin.TestMode)
	patient := auth.UserSession{UserID: 1, Role: constants.RolePatient}

	t.Run("Too Far", func(t *testing.T) {
		svc := new(MockTokenService)
		handler := rest.NewTokenHandler(svc)
		c, w := newContext(http.MethodPost, "/api/tokens/confirm_arrival/",
			map[string]float64{"latitude": 12.9, "longitude": 77.6}, &patient)

		svc.On("ConfirmArrival", mock.Anything, patient, mock.Anything, mock.Anything).
			Return(nil, errors.NewBadRequest("You are approximately 3.20 km away. You must be within 1.0 km of the clinic to confirm.")).Once()
		handler.ConfirmArrival(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["message"], "3.20 km away")
	})

	t.Run("Confirmed", func(t *testing.T) {
		svc := new(MockTokenService)
		handler := rest.NewTokenHandler(svc)
		c, w := newContext(http.MethodPost, "/api/tokens/confirm_arrival/",
			map[string]float64{"latitude": 12.9, "longitude": 77.6}, &patient)

		confirmed := sampleToken()
		confirmed.Status = domain.StatusConfirmed
		svc.On("ConfirmArrival", mock.Anything, patient, mock.MatchedBy(func(lat *float64) bool {
			return lat != nil && *lat == 12.9
		}), mock.Anything).Return(confirmed, nil).Once()
		handler.ConfirmArrival(c)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Arrival confirmed successfully.", body["message"])
		assert.Equal(t, "confirmed", body["token"].(map[string]interface{})["status"])
	})
}

func TestTokenHandler_UpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clinicID := int64(1)
	staff := auth.UserSession{UserID: 3, Role: constants.RoleReceptionist, ClinicID: &clinicID}

	t.Run("Bad Id", func(t *testing.T) {
		handler := rest.NewTokenHandler(new(MockTokenService))
		c, w := newContext(http.MethodPatch, "/api/tokens/x/update_status/", rest.StatusRequest{Status: "confirmed"}, &staff)
		c.Params = gin.Params{{Key: "id", Value: "x"}}

		handler.UpdateStatus(c)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Missing Status", func(t *testing.T) {
		handler := rest.NewTokenHandler(new(MockTokenService))
		c, w := newContext(http.MethodPatch, "/api/tokens/9/update_status/", rest.StatusRequest{}, &staff)
		c.Params = gin.Params{{Key: "id", Value: "9"}}

		handler.UpdateStatus(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Success", func(t *testing.T) {
		svc := new(MockTokenService)
		handler := rest.NewTokenHandler(svc)
		c, w := newContext(http.MethodPatch, "/api/tokens/9/update_status/", rest.StatusRequest{Status: "in_consultancy"}, &staff)
		c.Params = gin.Params{{Key: "id", Value: "9"}}

		updated := sampleToken()
		updated.Status = domain.StatusInConsultancy
		svc.On("UpdateStatus", mock.Anything, staff, int64(9), "in_consultancy").Return(updated, nil).Once()
		handler.UpdateStatus(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "in_consultancy", decode(t, w)["status"])
	})
}

func TestTokenHandler_ListEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	staff := auth.UserSession{UserID: 3, Role: constants.RoleDoctor}

	svc := new(MockTokenService)
	handler := rest.NewTokenHandler(svc)
	c, w := newContext(http.MethodGet, "/api/tokens/", nil, &staff)

	svc.On("StaffList", mock.Anything, staff).Return(nil, nil).Once()
	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAuthHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Receptionist", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := rest.NewAuthHandler(svc)
		c, w := newContext(http.MethodPost, "/api/login/", rest.LoginRequest{Username: "desk", Password: "secret123"}, nil)

		result := &services.LoginResult{
			Token:        "jwt",
			User:         auth.UserSession{Username: "desk", Role: constants.RoleReceptionist},
			ExpiresAt:    time.Now().Add(time.Hour),
			Receptionist: &models.Receptionist{ID: 1, Username: "desk"},
			Clinic:       &models.Clinic{ID: 1, Name: "City Clinic"},
		}
		svc.On("Login", mock.Anything, "desk", "secret123", false).Return(result, nil).Once()
		handler.Login(c)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "jwt", body["token"])
		user := body["user"].(map[string]interface{})
		assert.Equal(t, "receptionist", user["role"])
		assert.Equal(t, "City Clinic", user["clinic"].(map[string]interface{})["name"])
	})

	t.Run("Staff Only Refuses Patient", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := rest.NewAuthHandler(svc)
		c, w := newContext(http.MethodPost, "/api/login/staff/", rest.LoginRequest{Username: "asha", Password: "secret123"}, nil)

		svc.On("Login", mock.Anything, "asha", "secret123", true).
			Return(nil, errors.NewForbidden("Access denied. Staff accounts only.")).Once()
		handler.StaffLogin(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		handler := rest.NewAuthHandler(new(MockAuthService))
		c, w := newContext(http.MethodPost, "/api/login/", rest.LoginRequest{}, nil)

		handler.Login(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid Credentials", decode(t, w)["error"])
	})
}

func TestAuthHandler_Register(t *testing.T) {
	gin.SetMode(gin.TestMode)
	age := 31
	in := services.RegisterInput{
		Username: "asha", Password: "secret123", Password2: "secret123",
		Name: "Asha", Age: &age, PhoneNumber: "+15550001111",
	}

	t.Run("Created", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := rest.NewAuthHandler(svc)
		c, w := newContext(http.MethodPost, "/api/register/patient/", in, nil)

		phone := in.PhoneNumber
		svc.On("Register", mock.Anything, in).Return(&services.RegisterResult{
			Token:   "jwt",
			User:    &models.User{ID: 1, Username: "asha"},
			Patient: &models.Patient{ID: 5, Name: "Asha", Age: 31, PhoneNumber: &phone},
		}, nil).Once()
		handler.Register(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Patient registered successfully.", body["message"])
		assert.Equal(t, "patient", body["user"].(map[string]interface{})["role"])
	})

	t.Run("Field Errors", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := rest.NewAuthHandler(svc)
		c, w := newContext(http.MethodPost, "/api/register/patient/", in, nil)

		fields := errors.FieldErrors{}
		fields.Add("phone_number", "This phone number is already registered.")
		svc.On("Register", mock.Anything, in).Return(nil, fields).Once()
		handler.Register(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		details := decode(t, w)["details"].(map[string]interface{})
		assert.Equal(t, []interface{}{"This phone number is already registered."}, details["phone_number"])
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockAuthService)
	handler := rest.NewAuthHandler(svc)
	c, w := newContext(http.MethodPost, "/api/logout/", nil, &auth.UserSession{UserID: 1})
	c.Set(constants.ContextKeyToken, "session-1")

	svc.On("Logout", mock.Anything, "session-1").Return(nil).Once()
	handler.Logout(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestIVRHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Reads Form Fields", func(t *testing.T) {
		flow := new(MockIVRFlow)
		handler := rest.NewIVRHandler(flow, zap.NewNop())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		form := url.Values{constants.IVRFieldDigits: {"2"}, constants.IVRFieldFrom: {"+15550001111"}}
		c.Request = httptest.NewRequest(http.MethodPost, "/api/ivr/handle_booking_type/7/", strings.NewReader(form.Encode()))
		c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		c.Params = gin.Params{{Key: "clinic_id", Value: "7"}}

		flow.On("HandleBookingType", mock.Anything, int64(7), "2", "+15550001111").
			Return(twiml.NewResponse().Say("Your token is 4.").Hangup(), nil).Once()
		handler.HandleBookingType(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), constants.ContentTypeXML)
		assert.Contains(t, w.Body.String(), "Your token is 4.")
		flow.AssertExpectations(t)
	})

	t.Run("Errors Are Spoken", func(t *testing.T) {
		flow := new(MockIVRFlow)
		handler := rest.NewIVRHandler(flow, zap.NewNop())
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/ivr/welcome/", nil)

		flow.On("Welcome", mock.Anything).Return(nil, assert.AnError).Once()
		handler.Welcome(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "an error occurred")
		assert.Contains(t, w.Body.String(), "<Hangup")
	})

	t.Run("Unknown Clinic Id", func(t *testing.T) {
		handler := rest.NewIVRHandler(new(MockIVRFlow), zap.NewNop())
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/ivr/handle_specific_doctor/abc/", nil)
		c.Params = gin.Params{{Key: "clinic_id", Value: "abc"}}

		handler.HandleSpecificDoctor(c)
		assert.Contains(t, w.Body.String(), "clinic was not found")
	})
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	rest.HealthHandler(stubPinger{})(c)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	rest.HealthHandler(stubPinger{err: assert.AnError})(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRespondAppErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/tokens/", nil)

	rest.RespondAppError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error.", decode(t, w)["message"])
}
