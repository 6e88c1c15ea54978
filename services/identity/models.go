package identity

import (
	"time"

	"github.com/google/uuid"
)

// Roles a Principal can carry.
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

// Staff roles accepted at registration.
var StaffRoles = []string{"doctor", "nurse", "pharmacist", "lab_scientist"}

// Admin is an administrator account.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Staff is a medical staff account. It is inactive until an administrator verifies it.
type Staff struct {
	ID                uuid.UUID  `json:"id"`
	StaffID           string     `json:"staff_id"`
	FullName          string     `json:"full_name"`
	Role              string     `json:"role"`
	HospitalID        string     `json:"hospital_id"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email"`
	IsActive          bool       `json:"is_active"`
	MDCNNumber        string     `json:"mdcn_number,omitempty"`
	LicenseExpiry     *time.Time `json:"license_expiry,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifiedBy        *uuid.UUID `json:"verified_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Principal is the verified caller of an authenticated request.
type Principal struct {
	SessionID uuid.UUID
	SubjectID uuid.UUID
	Role      string
	Name      string
}

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsStaff reports whether the principal is medical staff.
func (p Principal) IsStaff() bool { return p.Role == RoleStaff }

// Models returns the gorm models owned by this package.
func Models() []any { return []any{&adminModel{}, &staffModel{}, &sessionModel{}} }

type adminModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:text;uniqueIndex;not null"`
	FullName     string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (adminModel) TableName() string { return "admins" }

func (m adminModel) toAdmin() Admin {
	return Admin{
		ID:        m.ID,
		Username:  m.Username,
		FullName:  m.FullName,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
	}
}

type staffModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	StaffID           string     `gorm:"type:text;uniqueIndex;not null"`
	FullName          string     `gorm:"type:text;not null"`
	Role              string     `gorm:"type:text;not null"`
	HospitalID        string     `gorm:"type:text"`
	Phone             string     `gorm:"type:text"`
	Email             string     `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash      string     `gorm:"type:text;not null"`
	IsActive          bool       `gorm:"not null;default:false"`
	MDCNNumber        string     `gorm:"column:mdcn_number;type:text"`
	LicenseExpiry     *time.Time
	VerificationNotes string `gorm:"type:text"`
	VerifiedAt        *time.Time
	VerifiedBy        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt         time.Time  `gorm:"not null"`
}

func (staffModel) TableName() string { return "medical_staff" }

func (m staffModel) toStaff() Staff {
	return Staff{
		ID:                m.ID,
		StaffID:           m.StaffID,
		FullName:          m.FullName,
		Role:              m.Role,
		HospitalID:        m.HospitalID,
		Phone:             m.Phone,
		Email:             m.Email,
		IsActive:          m.IsActive,
		MDCNNumber:        m.MDCNNumber,
		LicenseExpiry:     m.LicenseExpiry,
		VerificationNotes: m.VerificationNotes,
		VerifiedAt:        m.VerifiedAt,
		VerifiedBy:        m.VerifiedBy,
		CreatedAt:         m.CreatedAt,
	}
}

type sessionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubjectType string    `gorm:"type:text;not null;index:idx_sessions_subject,priority:1"`
	SubjectID   uuid.UUID `gorm:"type:uuid;not null;index:idx_sessions_subject,priority:2"`
	ExpiresAt   time.Time `gorm:"not null"`
	RevokedAt   *time.Time
	UserAgent   string    `gorm:"type:text"`
	IPAddress   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (sessionModel) TableName() string { return "sessions" }

// patientCredential is the slice of the patients table needed to log a patient in.
type patientCredential struct {
	ID           uuid.UUID
	HealthMRID   string `gorm:"column:healthmr_id"`
	FirstName    string
	LastName     string
	NIN          *string `gorm:"column:nin"`
	TempID       *string
	PasswordHash string
}

func (patientCredential) TableName() string { return "patients" }
