package utils

import "github.com/google/uuid"

// GenerateID returns a random UUID string for session ids, outbox events and reminders
func GenerateID() string {
	return uuid.NewString()
}
