package models

import "time"

// Consultation records a doctor's notes for a patient visit
type Consultation struct {
	ID        int64               `json:"id"`
	PatientID int64               `json:"-"`
	DoctorID  int64               `json:"-"`
	Date      time.Time           `json:"date"`
	Notes     string              `json:"notes"`
	Doctor    *Doctor             `json:"doctor"`
	Items     []*PrescriptionItem `json:"prescription_items"`
}

// PrescriptionItem is one medicine with its daily timing
type PrescriptionItem struct {
	ID              int64  `json:"id"`
	ConsultationID  int64  `json:"-"`
	MedicineName    string `json:"medicine_name"`
	Dosage          string `json:"dosage"`
	DurationDays    int    `json:"duration_days"`
	TimingMorning   bool   `json:"timing_morning"`
	TimingAfternoon bool   `json:"timing_afternoon"`
	TimingEvening   bool   `json:"timing_evening"`
}

// Reminder is a scheduled SMS waiting for the dispatcher
type Reminder struct {
	ID           string     `json:"id"`
	Phone        string     `json:"phone"`
	Message      string     `json:"message"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
