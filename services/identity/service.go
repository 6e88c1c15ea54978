package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medrecords/pkg/ids"
	"medrecords/pkg/validate"
	"medrecords/services/audit"
)

const defaultSessionTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveStaff      = errors.New("staff account is awaiting verification")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidSetupKey    = errors.New("invalid setup key")
	ErrSetupComplete      = errors.New("an administrator already exists")
	ErrNotFound           = errors.New("account not found")
	ErrAlreadyVerified    = errors.New("staff account has already been verified")
)

// Config controls account and session behaviour.
type Config struct {
	SigningKey []byte
	SessionTTL time.Duration
	SetupKey   string
}

// Service manages administrator, staff and patient credentials and sessions.
type Service struct {
	orm      *gorm.DB
	recorder *audit.Recorder
	signer   signer
	ttl      time.Duration
	setupKey string
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source for session issue and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.signer.now = now
	}
}

// NewService constructs the identity service.
func NewService(orm *gorm.DB, recorder *audit.Recorder, cfg Config, opts ...Option) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	now := func() time.Time { return time.Now().UTC() }
	s := &Service{
		orm:      orm,
		recorder: recorder,
		signer:   signer{key: cfg.SigningKey, now: now},
		ttl:      cfg.SessionTTL,
		setupKey: cfg.SetupKey,
		now:      now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AdminInput is the payload for creating an administrator.
type AdminInput struct {
	Username        string `json:"username" validate:"required,min=3,max=64"`
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

// SetupAdmin creates the first administrator. It requires the configured setup key
// and is refused once any administrator exists.
func (s *Service) SetupAdmin(ctx context.Context, setupKey string, in AdminInput) (Admin, error) {
	if s.setupKey == "" || subtle.ConstantTimeCompare([]byte(setupKey), []byte(s.setupKey)) != 1 {
		return Admin{}, ErrInvalidSetupKey
	}

	var count int64
	if err := s.orm.WithContext(ctx).Model(&adminModel{}).Count(&count).Error; err != nil {
		return Admin{}, err
	}
	if count > 0 {
		return Admin{}, ErrSetupComplete
	}
	return s.CreateAdmin(ctx, in)
}

// CreateAdmin adds an administrator account.
func (s *Service) CreateAdmin(ctx context.Context, in AdminInput) (Admin, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validate.Struct(in); err != nil {
		return Admin{}, err
	}
	if err := ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return Admin{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Admin{}, err
	}

	model := adminModel{
		ID:           uuid.New(),
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&adminModel{}).Where("username = ?", model.Username).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return Admin{}, err
	}

	zerolog.Ctx(ctx).Info().Str("admin_id", model.ID.String()).Str("username", model.Username).Msg("administrator created")
	return model.toAdmin(), nil
}

// LoginAdmin authenticates an administrator by username and password.
func (s *Service) LoginAdmin(ctx context.Context, username, password string, meta SessionMeta) (Login, error) {
	var m adminModel
	err := s.orm.WithContext(ctx).First(&m, "username = ?", strings.TrimSpace(username)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Login{}, ErrInvalidCredentials
		}
		return Login{}, err
	}
	if err := checkPassword(m.PasswordHash, password); err != nil {
		return Login{}, err
	}
	return s.issue(ctx, RoleAdmin, m.ID, m.FullName, meta)
}

// StaffRegistration is the self-service staff sign-up payload.
type StaffRegistration struct {
	FullName        string `json:"full_name" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=doctor nurse pharmacist lab_scientist"`
	HospitalID      string `json:"hospital_id" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

// RegisterStaff records an inactive staff account pending administrator verification.
func (s *Service) RegisterStaff(ctx context.Context, in StaffRegistration) (Staff, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return Staff{}, err
	}
	if err := ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return Staff{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Staff{}, err
	}
	staffID, err := ids.Staff()
	if err != nil {
		return Staff{}, err
	}

	model := staffModel{
		ID:           uuid.New(),
		StaffID:      staffID,
		FullName:     in.FullName,
		Role:         in.Role,
		HospitalID:   strings.TrimSpace(in.HospitalID),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     false,
		CreatedAt:    s.now(),
	}
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&staffModel{}).Where("email = ?", model.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return Staff{}, err
	}
	return model.toStaff(), nil
}

// LoginStaff authenticates medical staff by email or staff id. Only verified staff
// may log in.
func (s *Service) LoginStaff(ctx context.Context, identifier, password string, meta SessionMeta) (Login, error) {
	identifier = strings.TrimSpace(identifier)
	var m staffModel
	err := s.orm.WithContext(ctx).
		Where("email = ? OR staff_id = ?", strings.ToLower(identifier), strings.ToUpper(identifier)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Login{}, ErrInvalidCredentials
		}
		return Login{}, err
	}
	if err := checkPassword(m.PasswordHash, password); err != nil {
		return Login{}, err
	}
	if !m.IsActive {
		return Login{}, ErrInactiveStaff
	}
	return s.issue(ctx, RoleStaff, m.ID, m.FullName, meta)
}

// LoginPatient authenticates a patient by HealthMR ID, the NIN or temporary ID on
// file, and password.
func (s *Service) LoginPatient(ctx context.Context, healthMRID, identifier, password string, meta SessionMeta) (Login, error) {
	var p patientCredential
	err := s.orm.WithContext(ctx).First(&p, "healthmr_id = ?", strings.ToUpper(strings.TrimSpace(healthMRID))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Login{}, ErrInvalidCredentials
		}
		return Login{}, err
	}

	identifier = strings.TrimSpace(identifier)
	matches := (p.NIN != nil && *p.NIN == identifier) || (p.TempID != nil && strings.EqualFold(*p.TempID, identifier))
	if identifier == "" || !matches {
		return Login{}, ErrInvalidCredentials
	}
	if p.PasswordHash == "" {
		return Login{}, ErrInvalidCredentials
	}
	if err := checkPassword(p.PasswordHash, password); err != nil {
		return Login{}, err
	}
	return s.issue(ctx, RolePatient, p.ID, strings.TrimSpace(p.FirstName+" "+p.LastName), meta)
}

// PendingStaff lists staff registrations awaiting verification, oldest first.
func (s *Service) PendingStaff(ctx context.Context) ([]Staff, error) {
	var rows []staffModel
	if err := s.orm.WithContext(ctx).Where("is_active = ?", false).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Staff, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStaff())
	}
	return out, nil
}

// Approval carries the licence details an administrator confirms when verifying staff.
type Approval struct {
	MDCNNumber    string     `json:"mdcn_number" validate:"required"`
	LicenseExpiry *time.Time `json:"license_expiry"`
	Notes         string     `json:"verification_notes"`
}

// ApproveStaff activates a pending staff account and records the verification in
// the audit trail.
func (s *Service) ApproveStaff(ctx context.Context, actorID uuid.UUID, staffID uuid.UUID, in Approval) (Staff, audit.Entry, error) {
	in.MDCNNumber = strings.TrimSpace(in.MDCNNumber)
	if err := validate.Struct(in); err != nil {
		return Staff{}, audit.Entry{}, err
	}

	reason := strings.TrimSpace(in.Notes)
	if reason == "" {
		reason = fmt.Sprintf("MDCN %s verified", in.MDCNNumber)
	}

	var approved staffModel
	entry, err := s.recorder.Apply(ctx, audit.Mutation{
		Table:    audit.TableMedicalStaff,
		RecordID: staffID.String(),
		Action:   audit.ActionApproveStaff,
		ActorID:  &actorID,
		Reason:   reason,
		Load: func(tx *gorm.DB) (map[string]any, error) {
			m, err := lockPendingStaff(tx, staffID)
			if err != nil {
				return nil, err
			}
			return audit.Snapshot(m.toStaff())
		},
		Update: func(tx *gorm.DB, _ map[string]any) (map[string]any, error) {
			now := s.now()
			updates := map[string]any{
				"is_active":          true,
				"mdcn_number":        in.MDCNNumber,
				"license_expiry":     in.LicenseExpiry,
				"verification_notes": strings.TrimSpace(in.Notes),
				"verified_at":        now,
				"verified_by":        actorID,
			}
			if err := tx.Model(&staffModel{}).Where("id = ?", staffID).Updates(updates).Error; err != nil {
				return nil, err
			}
			if err := tx.First(&approved, "id = ?", staffID).Error; err != nil {
				return nil, err
			}
			return audit.Snapshot(approved.toStaff())
		},
	})
	if err != nil {
		return Staff{}, audit.Entry{}, err
	}
	return approved.toStaff(), entry, nil
}

// RejectStaff deletes a pending registration. The removed account is preserved as
// the pre-image of the audit entry.
func (s *Service) RejectStaff(ctx context.Context, actorID uuid.UUID, staffID uuid.UUID, reason string) (audit.Entry, error) {
	return s.recorder.Apply(ctx, audit.Mutation{
		Table:    audit.TableMedicalStaff,
		RecordID: staffID.String(),
		Action:   audit.ActionRejectStaff,
		ActorID:  &actorID,
		Reason:   reason,
		Load: func(tx *gorm.DB) (map[string]any, error) {
			m, err := lockPendingStaff(tx, staffID)
			if err != nil {
				return nil, err
			}
			return audit.Snapshot(m.toStaff())
		},
		Update: func(tx *gorm.DB, _ map[string]any) (map[string]any, error) {
			return nil, tx.Delete(&staffModel{}, "id = ?", staffID).Error
		},
	})
}

func lockPendingStaff(tx *gorm.DB, id uuid.UUID) (staffModel, error) {
	var m staffModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return staffModel{}, ErrNotFound
		}
		return staffModel{}, err
	}
	if m.IsActive {
		return staffModel{}, ErrAlreadyVerified
	}
	return m, nil
}

// StaffByID returns a staff account.
func (s *Service) StaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	var m staffModel
	if err := s.orm.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Staff{}, ErrNotFound
		}
		return Staff{}, err
	}
	return m.toStaff(), nil
}
