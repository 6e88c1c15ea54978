package records

import (
	"time"

	"github.com/google/uuid"
)

// Record statuses for patients.
const (
	StatusVerified    = "verified"
	StatusProvisional = "provisional"
)

// Prescription statuses.
const (
	PrescriptionActive    = "active"
	PrescriptionCompleted = "completed"
	PrescriptionCancelled = "cancelled"
)

// Patient is a registered patient. Password hashes never leave the store.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	HealthMRID     string    `json:"healthmr_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	NIN            *string   `json:"nin"`
	TempID         *string   `json:"temp_id"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	DateOfBirth    string    `json:"date_of_birth"`
	Gender         string    `json:"gender"`
	BloodGroup     string    `json:"blood_group"`
	Address        string    `json:"address"`
	State          string    `json:"state"`
	LGA            string    `json:"lga"`
	Occupation     string    `json:"occupation"`
	NextOfKinName  string    `json:"next_of_kin_name"`
	NextOfKinPhone string    `json:"next_of_kin_phone"`
	RecordStatus   string    `json:"record_status"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (p Patient) FullName() string { return p.FirstName + " " + p.LastName }

// Consultation is a signed clinical encounter note.
type Consultation struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	StaffID         uuid.UUID  `json:"staff_id"`
	Type            string     `json:"consultation_type"`
	ChiefComplaint  string     `json:"chief_complaint"`
	Diagnosis       string     `json:"diagnosis"`
	TreatmentPlan   string     `json:"treatment_plan"`
	Notes           string     `json:"notes"`
	SignedByStaffID *uuid.UUID `json:"signed_by_staff_id"`
	SignedAt        *time.Time `json:"signed_at"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Signed reports whether the consultation carries a signature.
func (c Consultation) Signed() bool { return c.SignedAt != nil && c.SignedByStaffID != nil }

// Prescription is a signed medication order.
type Prescription struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	StaffID         uuid.UUID  `json:"staff_id"`
	ConsultationID  *uuid.UUID `json:"consultation_id"`
	Medication      string     `json:"medication_name"`
	Dosage          string     `json:"dosage"`
	Frequency       string     `json:"frequency"`
	Duration        string     `json:"duration"`
	Instructions    string     `json:"instructions"`
	Status          string     `json:"status"`
	SignedByStaffID *uuid.UUID `json:"signed_by_staff_id"`
	SignedAt        *time.Time `json:"signed_at"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Signed reports whether the prescription carries a signature.
func (p Prescription) Signed() bool { return p.SignedAt != nil && p.SignedByStaffID != nil }

// LabTest is a completed investigation with an optional scanned slip.
type LabTest struct {
	ID          uuid.UUID   `json:"id"`
	PatientID   uuid.UUID   `json:"patient_id"`
	StaffID     uuid.UUID   `json:"staff_id"`
	TestType    string      `json:"test_type"`
	Status      string      `json:"status"`
	Results     string      `json:"results"`
	Notes       string      `json:"notes"`
	CompletedAt *time.Time  `json:"completed_at"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Attachment points at an uploaded lab slip.
type Attachment struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Vital is a reading a patient reported about themselves.
type Vital struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Temperature   *float64  `json:"temperature"`
	Pulse         *int      `json:"pulse"`
	BloodPressure string    `json:"blood_pressure"`
	Symptoms      string    `json:"symptoms"`
	Notes         string    `json:"notes"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Models returns the gorm models owned by this package.
func Models() []any {
	return []any{&patientModel{}, &consultationModel{}, &prescriptionModel{}, &labTestModel{}, &vitalModel{}}
}

type patientModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	HealthMRID     string    `gorm:"column:healthmr_id;type:text;uniqueIndex;not null"`
	FirstName      string    `gorm:"type:text;not null"`
	LastName       string    `gorm:"type:text;not null"`
	NIN            *string   `gorm:"column:nin;type:text;uniqueIndex"`
	TempID         *string   `gorm:"type:text;uniqueIndex"`
	Phone          string    `gorm:"type:text;not null"`
	Email          string    `gorm:"type:text"`
	DateOfBirth    string    `gorm:"type:text;not null"`
	Gender         string    `gorm:"type:text;not null"`
	BloodGroup     string    `gorm:"type:text"`
	Address        string    `gorm:"type:text"`
	State          string    `gorm:"type:text"`
	LGA            string    `gorm:"column:lga;type:text"`
	Occupation     string    `gorm:"type:text"`
	NextOfKinName  string    `gorm:"type:text"`
	NextOfKinPhone string    `gorm:"type:text"`
	RecordStatus   string    `gorm:"type:text;not null"`
	PasswordHash   string    `gorm:"type:text"`
	Version        int       `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (patientModel) TableName() string { return "patients" }

func (m patientModel) toAPI() Patient {
	return Patient{
		ID:             m.ID,
		HealthMRID:     m.HealthMRID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		NIN:            m.NIN,
		TempID:         m.TempID,
		Phone:          m.Phone,
		Email:          m.Email,
		DateOfBirth:    m.DateOfBirth,
		Gender:         m.Gender,
		BloodGroup:     m.BloodGroup,
		Address:        m.Address,
		State:          m.State,
		LGA:            m.LGA,
		Occupation:     m.Occupation,
		NextOfKinName:  m.NextOfKinName,
		NextOfKinPhone: m.NextOfKinPhone,
		RecordStatus:   m.RecordStatus,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type consultationModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PatientID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	StaffID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type            string     `gorm:"column:consultation_type;type:text;not null"`
	ChiefComplaint  string     `gorm:"type:text;not null"`
	Diagnosis       string     `gorm:"type:text"`
	TreatmentPlan   string     `gorm:"type:text"`
	Notes           string     `gorm:"type:text"`
	SignedByStaffID *uuid.UUID `gorm:"type:uuid"`
	SignedAt        *time.Time
	Version         int       `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (consultationModel) TableName() string { return "consultations" }

func (m consultationModel) toAPI() Consultation {
	return Consultation{
		ID:              m.ID,
		PatientID:       m.PatientID,
		StaffID:         m.StaffID,
		Type:            m.Type,
		ChiefComplaint:  m.ChiefComplaint,
		Diagnosis:       m.Diagnosis,
		TreatmentPlan:   m.TreatmentPlan,
		Notes:           m.Notes,
		SignedByStaffID: m.SignedByStaffID,
		SignedAt:        m.SignedAt,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type prescriptionModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PatientID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	StaffID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	ConsultationID  *uuid.UUID `gorm:"type:uuid;index"`
	Medication      string     `gorm:"column:medication_name;type:text;not null"`
	Dosage          string     `gorm:"type:text"`
	Frequency       string     `gorm:"type:text"`
	Duration        string     `gorm:"type:text"`
	Instructions    string     `gorm:"type:text"`
	Status          string     `gorm:"type:text;not null"`
	SignedByStaffID *uuid.UUID `gorm:"type:uuid"`
	SignedAt        *time.Time
	Version         int       `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (prescriptionModel) TableName() string { return "prescriptions" }

func (m prescriptionModel) toAPI() Prescription {
	return Prescription{
		ID:              m.ID,
		PatientID:       m.PatientID,
		StaffID:         m.StaffID,
		ConsultationID:  m.ConsultationID,
		Medication:      m.Medication,
		Dosage:          m.Dosage,
		Frequency:       m.Frequency,
		Duration:        m.Duration,
		Instructions:    m.Instructions,
		Status:          m.Status,
		SignedByStaffID: m.SignedByStaffID,
		SignedAt:        m.SignedAt,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type labTestModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID        uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID          uuid.UUID `gorm:"type:uuid;not null"`
	TestType         string    `gorm:"type:text;not null"`
	Status           string    `gorm:"type:text;not null"`
	Results          string    `gorm:"type:text"`
	Notes            string    `gorm:"type:text"`
	CompletedAt      *time.Time
	AttachmentKey    string    `gorm:"type:text"`
	AttachmentURL    string    `gorm:"type:text"`
	AttachmentType   string    `gorm:"type:text"`
	AttachmentSize   int64     `gorm:"not null;default:0"`
	AttachmentSHA256 string    `gorm:"column:attachment_sha256;type:text"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (labTestModel) TableName() string { return "lab_tests" }

func (m labTestModel) toAPI() LabTest {
	out := LabTest{
		ID:          m.ID,
		PatientID:   m.PatientID,
		StaffID:     m.StaffID,
		TestType:    m.TestType,
		Status:      m.Status,
		Results:     m.Results,
		Notes:       m.Notes,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
	}
	if m.AttachmentKey != "" {
		out.Attachment = &Attachment{
			Key:         m.AttachmentKey,
			URL:         m.AttachmentURL,
			ContentType: m.AttachmentType,
			Size:        m.AttachmentSize,
			SHA256:      m.AttachmentSHA256,
		}
	}
	return out
}

type vitalModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Temperature   *float64
	Pulse         *int
	BloodPressure string    `gorm:"type:text"`
	Symptoms      string    `gorm:"type:text"`
	Notes         string    `gorm:"type:text"`
	RecordedAt    time.Time `gorm:"not null"`
}

func (vitalModel) TableName() string { return "self_reported_vitals" }

func (m vitalModel) toAPI() Vital {
	return Vital{
		ID:            m.ID,
		PatientID:     m.PatientID,
		Temperature:   m.Temperature,
		Pulse:         m.Pulse,
		BloodPressure: m.BloodPressure,
		Symptoms:      m.Symptoms,
		Notes:         m.Notes,
		RecordedAt:    m.RecordedAt,
	}
}
