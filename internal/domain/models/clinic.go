package models

import "time"

// User is an account that can authenticate against the API
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	DateJoined   time.Time `json:"date_joined"`
}

// UserRef is the nested user shape exposed on profiles
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Session is a server-side record of an issued JWT
type Session struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"user_id"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsRevoked    bool       `json:"is_revoked"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Clinic is a physical practice location
type Clinic struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether arrival can be checked against this clinic
func (c *Clinic) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Doctor belongs to at most one clinic and may have a login
type Doctor struct {
	ID             int64    `json:"id"`
	UserID         *int64   `json:"-"`
	User           *UserRef `json:"user"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	ClinicID       *int64   `json:"-"`
	Role           string   `json:"-"`
}

// DisplayName is how patients see the doctor ("Dr. Name")
func (d *Doctor) DisplayName() string {
	return "Dr. " + d.Name
}

// Receptionist is a front-desk login bound to one clinic
type Receptionist struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	ClinicID *int64 `json:"clinic_id"`
	Role     string `json:"role"`
}

// ClinicSummary is a clinic with its doctors and today's queue figures
type ClinicSummary struct {
	Clinic
	Doctors         []*Doctor `json:"doctors"`
	AverageWaitTime int64     `json:"average_wait_time"`
	TotalTokens     int64     `json:"total_tokens"`
}
