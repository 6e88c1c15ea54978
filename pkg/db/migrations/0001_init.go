package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// The structs below freeze the initial schema. Service models evolve separately.

type Admin struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:text;uniqueIndex;not null"`
	FullName     string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

type MedicalStaff struct {
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
	LicenseExpiry     *time.Time `gorm:"type:timestamptz"`
	VerificationNotes string     `gorm:"type:text"`
	VerifiedAt        *time.Time `gorm:"type:timestamptz"`
	VerifiedBy        *uuid.UUID `gorm:"type:uuid"`
	Verifier          *Admin     `gorm:"foreignKey:VerifiedBy;references:ID;constraint:OnDelete:SET NULL"`
	CreatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

func (MedicalStaff) TableName() string { return "medical_staff" }

type Session struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubjectType string     `gorm:"type:text;not null;index:idx_sessions_subject,priority:1"`
	SubjectID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_sessions_subject,priority:2"`
	ExpiresAt   time.Time  `gorm:"type:timestamptz;not null"`
	RevokedAt   *time.Time `gorm:"type:timestamptz"`
	UserAgent   string     `gorm:"type:text"`
	IPAddress   string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

type Patient struct {
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
	CreatedAt      time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

type Consultation struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"`
	PatientID        uuid.UUID    `gorm:"type:uuid;not null;index"`
	StaffID          uuid.UUID    `gorm:"type:uuid;not null;index"`
	ConsultationType string       `gorm:"type:text;not null"`
	ChiefComplaint   string       `gorm:"type:text;not null"`
	Diagnosis        string       `gorm:"type:text"`
	TreatmentPlan    string       `gorm:"type:text"`
	Notes            string       `gorm:"type:text"`
	SignedByStaffID  *uuid.UUID   `gorm:"type:uuid"`
	SignedAt         *time.Time   `gorm:"type:timestamptz"`
	Version          int          `gorm:"not null;default:1"`
	CreatedAt        time.Time    `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time    `gorm:"type:timestamptz;not null;default:now()"`
	Patient          Patient      `gorm:"foreignKey:PatientID;references:ID;constraint:OnDelete:RESTRICT"`
	Staff            MedicalStaff `gorm:"foreignKey:StaffID;references:ID;constraint:OnDelete:RESTRICT"`
}

type Prescription struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey"`
	PatientID       uuid.UUID     `gorm:"type:uuid;not null;index"`
	StaffID         uuid.UUID     `gorm:"type:uuid;not null;index"`
	ConsultationID  *uuid.UUID    `gorm:"type:uuid;index"`
	MedicationName  string        `gorm:"type:text;not null"`
	Dosage          string        `gorm:"type:text"`
	Frequency       string        `gorm:"type:text"`
	Duration        string        `gorm:"type:text"`
	Instructions    string        `gorm:"type:text"`
	Status          string        `gorm:"type:text;not null;default:'active'"`
	SignedByStaffID *uuid.UUID    `gorm:"type:uuid"`
	SignedAt        *time.Time    `gorm:"type:timestamptz"`
	Version         int           `gorm:"not null;default:1"`
	CreatedAt       time.Time     `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time     `gorm:"type:timestamptz;not null;default:now()"`
	Patient         Patient       `gorm:"foreignKey:PatientID;references:ID;constraint:OnDelete:RESTRICT"`
	Staff           MedicalStaff  `gorm:"foreignKey:StaffID;references:ID;constraint:OnDelete:RESTRICT"`
	Consultation    *Consultation `gorm:"foreignKey:ConsultationID;references:ID;constraint:OnDelete:SET NULL"`
}

type LabTest struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PatientID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	StaffID          uuid.UUID  `gorm:"type:uuid;not null"`
	TestType         string     `gorm:"type:text;not null"`
	Status           string     `gorm:"type:text;not null"`
	Results          string     `gorm:"type:text"`
	Notes            string     `gorm:"type:text"`
	CompletedAt      *time.Time `gorm:"type:timestamptz"`
	AttachmentKey    string     `gorm:"type:text"`
	AttachmentURL    string     `gorm:"type:text"`
	AttachmentType   string     `gorm:"type:text"`
	AttachmentSize   int64      `gorm:"not null;default:0"`
	AttachmentSHA256 string     `gorm:"column:attachment_sha256;type:text"`
	CreatedAt        time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	Patient          Patient    `gorm:"foreignKey:PatientID;references:ID;constraint:OnDelete:RESTRICT"`
}

type SelfReportedVital struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Temperature   *float64  `gorm:"type:numeric(4,1)"`
	Pulse         *int
	BloodPressure string    `gorm:"type:text"`
	Symptoms      string    `gorm:"type:text"`
	Notes         string    `gorm:"type:text"`
	RecordedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Patient       Patient   `gorm:"foreignKey:PatientID;references:ID;constraint:OnDelete:CASCADE"`
}

type AuditEntry struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ActorID   *uuid.UUID        `gorm:"type:uuid;index"`
	Action    string            `gorm:"type:text;not null"`
	TableName string            `gorm:"column:table_name;type:text;not null;index:idx_audit_entries_record,priority:1"`
	RecordID  string            `gorm:"type:text;not null;index:idx_audit_entries_record,priority:2"`
	OldValues datatypes.JSONMap `gorm:"type:jsonb"`
	NewValues datatypes.JSONMap `gorm:"type:jsonb"`
	Reason    string            `gorm:"type:text;not null;check:btrim(reason) <> ''"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();index"`
}

func initModels() []any {
	return []any{
		&Admin{},
		&MedicalStaff{},
		&Session{},
		&Patient{},
		&Consultation{},
		&Prescription{},
		&LabTest{},
		&SelfReportedVital{},
		&AuditEntry{},
	}
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(initModels()...)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	models := initModels()
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(models...)
}
