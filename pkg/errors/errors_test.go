package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Doctor", "7"), http.StatusNotFound},
		{"validation", NewValidationError("doctor_id", "Doctor ID is required."), http.StatusBadRequest},
		{"field errors", FieldErrors{"username": {"taken"}}, http.StatusBadRequest},
		{"forbidden", NewForbidden("Only patients can create tokens."), http.StatusForbidden},
		{"unauthorized", NewUnauthorizedError("expired"), http.StatusUnauthorized},
		{"conflict", NewConflictError("Token", "token_number", "3"), http.StatusConflict},
		{"wrapped", fmt.Errorf("create token: %w", NewNotFoundError("Doctor", "1")), http.StatusNotFound},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GetHTTPStatus(tc.err))
		})
	}
}

func TestMessagesWithoutFieldPrefix(t *testing.T) {
	assert.Equal(t, "Doctor not found.", NewNotFoundMessage("Doctor not found.").Error())
	assert.Equal(t, "Latitude and longitude are required.", NewBadRequest("Latitude and longitude are required.").Error())
	assert.Equal(t, "validation error on field 'age': must be positive", NewValidationError("age", "must be positive").Error())
}

func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	assert.True(t, fe.Empty())

	fe.Add("phone_number", "This phone number is already registered.")
	fe.Add("password", "Password fields didn't match.")

	assert.False(t, fe.Empty())
	assert.True(t, IsValidation(fe))
	assert.Equal(t, "password: Password fields didn't match., phone_number: This phone number is already registered.", fe.Error())

	resp := ToResponse(fe)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, fe, resp.Details)
}

func TestInternalErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewInternalError("save reminder", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR", GetErrorCode(err))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(cause))
}
