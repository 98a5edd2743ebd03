package rest

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/domain"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

// TokenView is the wire shape of a queue token
type TokenView struct {
	ID              int64              `json:"id"`
	TokenNumber     int                `json:"token_number"`
	Patient         *models.Patient    `json:"patient"`
	Doctor          string             `json:"doctor"`
	DoctorID        int64              `json:"doctor_id"`
	CreatedAt       time.Time          `json:"created_at"`
	Status          domain.TokenStatus `json:"status"`
	Clinic          string             `json:"clinic"`
	ClinicID        int64              `json:"clinic_id"`
	AppointmentTime *string            `json:"appointment_time"`
}

func presentToken(t *models.Token) TokenView {
	v := TokenView{
		ID:              t.ID,
		TokenNumber:     t.TokenNumber,
		Patient:         t.Patient,
		DoctorID:        t.DoctorID,
		CreatedAt:       t.CreatedAt,
		Status:          t.Status,
		Clinic:          t.ClinicName,
		ClinicID:        t.ClinicID,
		AppointmentTime: t.AppointmentTime,
	}
	if t.DoctorName != "" {
		v.Doctor = (&models.Doctor{Name: t.DoctorName}).DisplayName()
	}
	return v
}

func presentTokens(tokens []*models.Token) []TokenView {
	out := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, presentToken(t))
	}
	return out
}

// presentLogin builds the role specific login payload:
// {"token": ..., "user": {...profile, "role": ...}}
func presentLogin(r *services.LoginResult) gin.H {
	user := gin.H{"role": r.User.Role}
	switch {
	case r.Doctor != nil:
		user["id"] = r.Doctor.ID
		user["name"] = r.Doctor.Name
		user["specialization"] = r.Doctor.Specialization
		user["user"] = r.Doctor.User
	case r.Receptionist != nil:
		user["username"] = r.User.Username
		if r.Clinic != nil {
			user["clinic"] = gin.H{"id": r.Clinic.ID, "name": r.Clinic.Name}
		} else {
			user["clinic"] = nil
		}
	case r.Patient != nil:
		user["id"] = r.Patient.ID
		user["name"] = r.Patient.Name
		user["age"] = r.Patient.Age
		user["user"] = r.Patient.User
		user["phone_number"] = r.Patient.PhoneNumber
	}
	return gin.H{
		"token":      r.Token,
		"expires_at": r.ExpiresAt.Format(time.RFC3339),
		"user":       user,
	}
}

func presentRegistration(r *services.RegisterResult) gin.H {
	return gin.H{
		constants.FieldMessage: "Patient registered successfully.",
		"token":                r.Token,
		"user": gin.H{
			"username":     r.User.Username,
			"name":         r.Patient.Name,
			"age":          r.Patient.Age,
			"role":         constants.RolePatient,
			"phone_number": r.Patient.PhoneNumber,
		},
	}
}
