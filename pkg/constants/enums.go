package constants

// Roles carried in the session
const (
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
	RolePatient      = "patient"
	RoleAdmin        = "admin"
)

// Reminder dispatch states
const (
	ReminderStatusPending = "pending"
	ReminderStatusSent    = "sent"
	ReminderStatusFailed  = "failed"
)

// Outbox event states
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DateLayout is the day key stored on tokens
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the layout of appointment times
const TimeOfDayLayout = "15:04"
