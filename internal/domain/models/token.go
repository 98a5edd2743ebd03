package models

import (
	"time"

	"github.com/clinicq/backend/internal/domain"
)

// Token is a numbered place in a clinic's queue for one day
type Token struct {
	ID              int64              `json:"id"`
	PatientID       int64              `json:"-"`
	DoctorID        int64              `json:"doctor_id"`
	ClinicID        int64              `json:"clinic_id"`
	TokenNumber     int                `json:"token_number"`
	Date            string             `json:"date"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	AppointmentTime *string            `json:"appointment_time"`
	Status          domain.TokenStatus `json:"status"`
	DistanceKm      *float64           `json:"distance_km,omitempty"`

	// Populated by joins for display
	Patient    *Patient `json:"patient,omitempty"`
	DoctorName string   `json:"-"`
	ClinicName string   `json:"-"`
}

// QueueEntry is the anonymized view of a token shown to other patients
type QueueEntry struct {
	ID              int64              `json:"id"`
	TokenNumber     string             `json:"token_number"`
	Status          domain.TokenStatus `json:"status"`
	AppointmentTime *string            `json:"appointment_time"`
}

// DoctorLoad is a doctor's token count for the day
type DoctorLoad struct {
	DoctorName string `json:"doctor__name"`
	Count      int64  `json:"count"`
}

// ClinicAnalytics is the staff dashboard for one clinic and day
type ClinicAnalytics struct {
	ClinicName             string           `json:"clinic_name"`
	Date                   string           `json:"date"`
	TotalPatients          int64            `json:"total_patients"`
	AverageWaitTimeMinutes float64          `json:"average_wait_time_minutes"`
	DoctorWorkload         []DoctorLoad     `json:"doctor_workload"`
	StatusBreakdown        map[string]int64 `json:"patient_status_breakdown"`
}
