package constants

// Reminder and outbox delivery limits
const (
	MaxRetryAttempts    = 5
	OutboxBatchSize     = 100
	ReminderBatchSize   = 100
	DefaultOTPLength    = 6
	DefaultArrivalKm    = 1.0
	ActiveTokenRetries  = 5
	SlotIntervalMinutes = 15
)

// Dose reminder times (hour, minute) in the clinic time zone
var (
	MorningDose   = [2]int{8, 0}
	AfternoonDose = [2]int{13, 0}
	EveningDose   = [2]int{20, 0}
)

// Consulting hours used to offer appointment slots
var (
	ClinicOpens  = [2]int{9, 0}
	ClinicCloses = [2]int{17, 0}
)
