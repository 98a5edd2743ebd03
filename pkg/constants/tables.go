package constants

// Table names
const (
	TableUser             = "users"
	TableSession          = "user_sessions"
	TableClinic           = "clinics"
	TableDoctor           = "doctors"
	TableReceptionist     = "receptionists"
	TablePatient          = "patients"
	TableToken            = "tokens"
	TableConsultation     = "consultations"
	TablePrescriptionItem = "prescription_items"
	TableReminder         = "reminders"
	TableOutboxEvent      = "outbox_events"
	TableSchemaMigrations = "schema_migrations"
)

// AllTables lists every application table in dependency order (parents first)
var AllTables = []string{
	TableUser,
	TableSession,
	TableClinic,
	TableDoctor,
	TableReceptionist,
	TablePatient,
	TableToken,
	TableConsultation,
	TablePrescriptionItem,
	TableReminder,
	TableOutboxEvent,
}
