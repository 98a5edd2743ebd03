package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/utils"
)

// UserSession is the identity carried inside the bearer token
type UserSession struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`                 // doctor, receptionist, patient or admin
	ProfileID int64  `json:"profile_id,omitempty"` // doctor/receptionist/patient row id
	ClinicID  *int64 `json:"clinic_id,omitempty"`  // set for staff attached to a clinic
}

// IsStaff reports whether the session belongs to a doctor or receptionist
func (u UserSession) IsStaff() bool {
	return u.Role == constants.RoleDoctor || u.Role == constants.RoleReceptionist
}

// IsPatient reports whether the session belongs to a patient
func (u UserSession) IsPatient() bool {
	return u.Role == constants.RolePatient
}

// Claims represents JWT claims
type Claims struct {
	User UserSession `json:"user"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 tokens
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. A zero ttl falls back to 24h.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a token for a user session and returns it with its claims
func (s *Signer) GenerateToken(session UserSession) (string, *Claims, error) {
	issuedAt := s.now()
	claims := &Claims{
		User: session,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        utils.GenerateID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateToken validates and parses a token
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
