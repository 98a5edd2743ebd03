package events

// EventType defines the type of event in the system
type EventType string

const (
	// SMSRequested asks the notification layer to deliver a text message
	SMSRequested EventType = "sms.requested"

	// TokenIssued fires after a token is committed
	TokenIssued EventType = "token.issued"
	// TokenStatusChanged fires after a status update is committed
	TokenStatusChanged EventType = "token.status_changed"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// SMSPayload is the outbox body of an SMSRequested event
type SMSPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// SMS kinds, used for metrics labels
const (
	SMSKindWelcome      = "welcome"
	SMSKindToken        = "token"
	SMSKindOTP          = "otp"
	SMSKindReminder     = "reminder"
	SMSKindStatusChange = "status"
)

// TokenPayload describes a committed token change
type TokenPayload struct {
	TokenID     int64  `json:"token_id"`
	ClinicID    int64  `json:"clinic_id"`
	DoctorID    int64  `json:"doctor_id"`
	TokenNumber int    `json:"token_number"`
	Status      string `json:"status"`
	Channel     string `json:"channel,omitempty"` // patient, walk_in or ivr; set on TokenIssued
}

// Booking channels
const (
	ChannelPatient = "patient"
	ChannelWalkIn  = "walk_in"
	ChannelIVR     = "ivr"
)
