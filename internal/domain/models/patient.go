package models

import "time"

// Patient is a person who can hold tokens; walk-in and IVR patients have no login
type Patient struct {
	ID              int64      `json:"id"`
	UserID          *int64     `json:"-"`
	User            *UserRef   `json:"user"`
	Name            string     `json:"name"`
	Age             int        `json:"age"`
	PhoneNumber     *string    `json:"phone_number"`
	IsPhoneVerified bool       `json:"-"`
	OTP             *string    `json:"-"`
	OTPExpiry       *time.Time `json:"-"`
}

// Phone returns the phone number or ""
func (p *Patient) Phone() string {
	if p.PhoneNumber == nil {
		return ""
	}
	return *p.PhoneNumber
}
