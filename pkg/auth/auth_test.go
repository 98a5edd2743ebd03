package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("test-secret", time.Hour)
	clinicID := int64(3)

	token, claims, err := signer.GenerateToken(UserSession{
		UserID:    10,
		Username:  "reception1",
		Role:      "receptionist",
		ProfileID: 4,
		ClinicID:  &clinicID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := signer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(10), parsed.User.UserID)
	assert.Equal(t, claims.ID, parsed.ID)
	require.NotNil(t, parsed.User.ClinicID)
	assert.Equal(t, clinicID, *parsed.User.ClinicID)
	assert.True(t, parsed.User.IsStaff())
	assert.False(t, parsed.User.IsPatient())
}

func TestSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSigner("one", time.Hour).GenerateToken(UserSession{UserID: 1, Role: "patient"})
	require.NoError(t, err)

	_, err = NewSigner("two", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestSignerRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := signer.GenerateToken(UserSession{UserID: 1, Role: "patient"})
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.ValidateToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("clinicadmin123")
	require.NoError(t, err)

	assert.True(t, IsHashed(hash))
	assert.False(t, IsHashed("clinicadmin123"))
	assert.True(t, VerifyPassword("clinicadmin123", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	assert.Error(t, ValidatePasswordStrength("short"))
	assert.NoError(t, ValidatePasswordStrength("longenough"))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+919876543210"))
	assert.False(t, IsValidPhone("9876543210"))
	assert.False(t, IsValidPhone("+91-98765"))
	assert.False(t, IsValidPhone("+1"))
}
