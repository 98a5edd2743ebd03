package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

// AuthService handles registration, login, OTP verification and sessions
type AuthService struct {
	users     *persistence.UserRepository
	sessions  *persistence.SessionRepository
	patients  *persistence.PatientRepository
	clinics   *persistence.ClinicRepository
	txManager *persistence.TransactionManager
	outbox    *OutboxService
	signer    *auth.Signer
	otpTTL    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users *persistence.UserRepository,
	sessions *persistence.SessionRepository,
	patients *persistence.PatientRepository,
	clinics *persistence.ClinicRepository,
	txManager *persistence.TransactionManager,
	outbox *OutboxService,
	signer *auth.Signer,
	otpTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		patients:  patients,
		clinics:   clinics,
		txManager: txManager,
		outbox:    outbox,
		signer:    signer,
		otpTTL:    otpTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// LoginResult contains the result of a successful login.
// Exactly one of Doctor, Receptionist or Patient is set.
type LoginResult struct {
	Token        string
	User         auth.UserSession
	ExpiresAt    time.Time
	Doctor       *models.Doctor
	Receptionist *models.Receptionist
	Clinic       *models.Clinic // receptionist's clinic, may be nil
	Patient      *models.Patient
}

// Login authenticates a user and creates a session.
// With staffOnly set, patients are refused.
func (s *AuthService) Login(ctx context.Context, username, password string, staffOnly bool) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || !auth.VerifyPassword(password, user.PasswordHash) {
		s.logger.Info("[Auth] login failed", zap.String("username", username))
		return nil, errors.NewBadRequest("Invalid Credentials")
	}

	result, err := s.resolveProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.NewNotFoundMessage("User profile not found")
	}
	if staffOnly && !result.User.IsStaff() {
		return nil, errors.NewForbidden("Access denied. Staff accounts only.")
	}

	if err := s.issue(ctx, result); err != nil {
		return nil, err
	}
	s.logger.Info("[Auth] login", zap.String("username", user.Username), zap.String("role", result.User.Role))
	return result, nil
}

// IssueFor opens a session for username without checking a password.
// Only the issue-token development command calls it.
func (s *AuthService) IssueFor(ctx context.Context, username string) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, errors.NewNotFoundMessage("User not found")
	}
	result, err := s.resolveProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.NewNotFoundMessage("User profile not found")
	}
	if err := s.issue(ctx, result); err != nil {
		return nil, err
	}
	s.logger.Warn("[Auth] session issued without password", zap.String("username", username))
	return result, nil
}

// resolveProfile finds the role of a user: doctor first, then receptionist, then patient
func (s *AuthService) resolveProfile(ctx context.Context, user *models.User) (*LoginResult, error) {
	session := auth.UserSession{UserID: user.ID, Username: user.Username}

	doctor, err := s.clinics.DoctorByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if doctor != nil {
		session.Role = constants.RoleDoctor
		session.ProfileID = doctor.ID
		session.ClinicID = doctor.ClinicID
		return &LoginResult{User: session, Doctor: doctor}, nil
	}

	rc, err := s.clinics.ReceptionistByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		session.Role = constants.RoleReceptionist
		session.ProfileID = rc.ID
		session.ClinicID = rc.ClinicID
		result := &LoginResult{User: session, Receptionist: rc}
		if rc.ClinicID != nil {
			if result.Clinic, err = s.clinics.Get(ctx, *rc.ClinicID); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	patient, err := s.patients.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if patient != nil {
		session.Role = constants.RolePatient
		session.ProfileID = patient.ID
		return &LoginResult{User: session, Patient: patient}, nil
	}
	return nil, nil
}

// issue signs a token for result.User and stores the session row
func (s *AuthService) issue(ctx context.Context, result *LoginResult) error {
	token, claims, err := s.signer.GenerateToken(result.User)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		ID:           claims.ID,
		UserID:       result.User.UserID,
		ExpiresAt:    claims.ExpiresAt.Time,
		LastActivity: &now,
		CreatedAt:    now,
	}
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	result.Token = token
	result.ExpiresAt = session.ExpiresAt
	return nil
}

// Authenticate validates a bearer token against its session row
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.signer.ValidateToken(tokenString)
	if err != nil {
		return nil, errors.NewUnauthorizedError("Invalid token.")
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, errors.NewUnauthorizedError("Session not found")
	}
	if session.IsRevoked {
		return nil, errors.NewUnauthorizedError("Session has been revoked")
	}
	if !session.ExpiresAt.IsZero() && s.now().After(session.ExpiresAt) {
		return nil, errors.NewUnauthorizedError("Session expired")
	}

	if err := s.sessions.UpdateLastActivity(ctx, session.ID, s.now()); err != nil {
		s.logger.Debug("[Auth] touch session failed", zap.String("session", session.ID), zap.Error(err))
	}
	return claims, nil
}

// Logout revokes a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("[Auth] logout", zap.String("session", sessionID))
	return nil
}

// RegisterInput is the patient self-registration form
type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
	Name        string `json:"name"`
	Age         *int   `json:"age"`
	PhoneNumber string `json:"phone_number"`
}

// RegisterResult is returned after a successful registration
type RegisterResult struct {
	Token   string
	User    *models.User
	Patient *models.Patient
}

func (s *AuthService) validateRegistration(ctx context.Context, in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	fe := errors.FieldErrors{}
	const required = "This field is required."

	if in.Username == "" {
		fe.Add("username", required)
	} else if taken, err := s.users.UsernameTaken(ctx, in.Username); err != nil {
		return err
	} else if taken {
		fe.Add("username", "This username is already taken.")
	}

	if in.Password == "" {
		fe.Add("password", required)
	} else if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		fe.Add("password", err.Error())
	}
	if in.Password2 == "" {
		fe.Add("password2", required)
	} else if in.Password != "" && in.Password != in.Password2 {
		fe.Add("password", "Password fields didn't match.")
	}

	if in.Name == "" {
		fe.Add("name", required)
	}
	if in.Age == nil {
		fe.Add("age", required)
	} else if *in.Age < 0 {
		fe.Add("age", "Ensure this value is greater than or equal to 0.")
	}

	if in.PhoneNumber == "" {
		fe.Add("phone_number", required)
	} else if taken, err := s.patients.PhoneTaken(ctx, in.PhoneNumber); err != nil {
		return err
	} else if taken {
		fe.Add("phone_number", "This phone number is already registered.")
	} else if !auth.IsValidPhone(in.PhoneNumber) {
		fe.Add("phone_number", "Phone number must start with '+' and include country code.")
	}

	if !fe.Empty() {
		return fe
	}
	return nil
}

// Register creates a login and its patient profile, then signs the user in.
// A walk-in patient with the same phone and no login is adopted instead of duplicated.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := s.validateRegistration(ctx, &in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result := &RegisterResult{}
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		user := &models.User{Username: in.Username, PasswordHash: hash, IsActive: true, DateJoined: s.now().UTC()}
		if _, err := s.users.Create(ctx, user); err != nil {
			if persistence.IsUniqueViolation(err) {
				return errors.FieldErrors{"username": {"This username is already taken."}}
			}
			return err
		}

		phone := in.PhoneNumber
		patient, err := s.patients.GetByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if patient != nil && patient.UserID == nil {
			if err := s.patients.AttachUser(ctx, patient.ID, user.ID, in.Name, *in.Age); err != nil {
				return err
			}
			patient.Name, patient.Age = in.Name, *in.Age
		} else if patient != nil {
			return errors.FieldErrors{"phone_number": {"This phone number is already registered."}}
		} else {
			patient = &models.Patient{Name: in.Name, Age: *in.Age, PhoneNumber: &phone}
			if _, err := s.patients.Create(ctx, patient); err != nil {
				if persistence.IsUniqueViolation(err) {
					return errors.FieldErrors{"phone_number": {"This phone number is already registered."}}
				}
				return err
			}
		}
		patient.UserID = &user.ID
		patient.User = &models.UserRef{ID: user.ID, Username: user.Username}

		msg := fmt.Sprintf("Welcome to the Clinic Portal, %s! Your registration was successful.", patient.Name)
		if err := s.outbox.EnqueueSMS(ctx, phone, msg, events.SMSKindWelcome); err != nil {
			return err
		}

		result.User = user
		result.Patient = patient
		return nil
	})
	if err != nil {
		return nil, err
	}

	login := &LoginResult{
		User: auth.UserSession{
			UserID:    result.User.ID,
			Username:  result.User.Username,
			Role:      constants.RolePatient,
			ProfileID: result.Patient.ID,
		},
		Patient: result.Patient,
	}
	if err := s.issue(ctx, login); err != nil {
		return nil, err
	}
	result.Token = login.Token

	s.logger.Info("[Auth] patient registered", zap.String("username", result.User.Username), zap.Int64("patient_id", result.Patient.ID))
	return result, nil
}

// ResendOTP issues a fresh one-time code for a registered phone and texts it
func (s *AuthService) ResendOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.NewValidationError("phone_number", "This field is required.")
	}

	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		patient, err := s.patients.GetByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if patient == nil {
			return errors.NewNotFoundMessage("No patient registered with this phone number.")
		}
		if patient.IsPhoneVerified {
			return errors.NewBadRequest("Phone number is already verified.")
		}

		code, err := generateOTP(constants.DefaultOTPLength)
		if err != nil {
			return err
		}
		if err := s.patients.SetOTP(ctx, patient.ID, code, s.now().Add(s.otpTTL)); err != nil {
			return err
		}

		msg := fmt.Sprintf("Your Clinic Portal verification code is %s. It expires in %d minutes.", code, int(s.otpTTL.Minutes()))
		return s.outbox.EnqueueSMS(ctx, phone, msg, events.SMSKindOTP)
	})
}

// VerifyOTP checks the code sent to phone and marks the phone verified
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) error {
	phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
	if phone == "" || code == "" {
		return errors.NewBadRequest("Phone number and OTP are required.")
	}

	patient, err := s.patients.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if patient == nil {
		return errors.NewNotFoundMessage("No patient registered with this phone number.")
	}
	if patient.IsPhoneVerified {
		return nil
	}
	if patient.OTP == nil || patient.OTPExpiry == nil {
		return errors.NewBadRequest("No OTP has been issued. Please request a new one.")
	}
	if s.now().After(*patient.OTPExpiry) {
		return errors.NewBadRequest("OTP has expired. Please request a new one.")
	}
	if subtle.ConstantTimeCompare([]byte(*patient.OTP), []byte(code)) != 1 {
		return errors.NewBadRequest("Invalid OTP.")
	}
	return s.patients.MarkPhoneVerified(ctx, patient.ID)
}

// generateOTP returns n random decimal digits
func generateOTP(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
