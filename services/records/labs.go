package records

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medrecords/pkg/validate"
)

// OtherTest lets staff enter a test name that is not in CommonTests.
const OtherTest = "Other"

// LabTestCompleted is the status of every lab test recorded by staff.
const LabTestCompleted = "completed"

// CommonTests is the catalogue offered when recording a lab test.
var CommonTests = []string{
	"HIV/AIDS Test",
	"Hepatitis B Test",
	"Hepatitis C Test",
	"Malaria Test",
	"Typhoid Test",
	"Blood Sugar (Glucose)",
	"Blood Pressure Check",
	"Complete Blood Count (CBC)",
	"Cholesterol Test",
	"Pregnancy Test",
	"COVID-19 Test",
	"Tuberculosis (TB) Test",
	"Urinalysis",
	"Stool Test",
	"X-Ray",
	"Ultrasound",
	"ECG/EKG",
	OtherTest,
}

// LabTestInput records a completed test. CustomTestName is required when TestType
// is OtherTest.
type LabTestInput struct {
	TestType       string `json:"test_type" validate:"required"`
	CustomTestName string `json:"custom_test_name" validate:"required_if=TestType Other"`
	Results        string `json:"results" validate:"required"`
	Notes          string `json:"notes"`
}

// Slip is an uploaded lab slip attached to a test.
type Slip struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AddLabTest records a completed lab test for patientID, uploading the slip first
// when one is supplied.
func (s *Service) AddLabTest(ctx context.Context, staffID, patientID uuid.UUID, in LabTestInput, slip *Slip) (LabTest, error) {
	in.TestType = strings.TrimSpace(in.TestType)
	in.CustomTestName = strings.TrimSpace(in.CustomTestName)
	in.Results = strings.TrimSpace(in.Results)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validate.Struct(in); err != nil {
		return LabTest{}, err
	}
	if !slices.Contains(CommonTests, in.TestType) {
		return LabTest{}, fmt.Errorf("%w: test_type must be one of the common tests or %q", validate.ErrInvalid, OtherTest)
	}
	testType := in.TestType
	if testType == OtherTest {
		testType = in.CustomTestName
	}
	if slip != nil && s.evidence == nil {
		return LabTest{}, ErrNoEvidence
	}
	if _, err := findRow[patientModel](ctx, s.orm, patientID); err != nil {
		return LabTest{}, err
	}

	now := s.now()
	model := labTestModel{
		ID:          uuid.New(),
		PatientID:   patientID,
		StaffID:     staffID,
		TestType:    testType,
		Status:      LabTestCompleted,
		Results:     in.Results,
		Notes:       in.Notes,
		CompletedAt: &now,
		CreatedAt:   now,
	}
	if slip != nil {
		obj, err := s.evidence.Upload(ctx, patientID, slip.Filename, slip.ContentType, slip.Size, slip.Body)
		if err != nil {
			return LabTest{}, err
		}
		model.AttachmentKey = obj.Key
		model.AttachmentURL = obj.URL
		model.AttachmentType = obj.ContentType
		model.AttachmentSize = obj.Size
		model.AttachmentSHA256 = obj.SHA256
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return LabTest{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("lab_test_id", model.ID.String()).
		Str("patient_id", patientID.String()).
		Bool("attachment", model.AttachmentKey != "").
		Msg("lab test recorded")
	return model.toAPI(), nil
}

// VitalInput is a patient's self-reported reading. At least one measurement or
// symptom must be present.
type VitalInput struct {
	Temperature   *float64 `json:"temperature" validate:"omitempty,gte=30,lte=45"`
	Pulse         *int     `json:"pulse" validate:"omitempty,gte=20,lte=250"`
	BloodPressure string   `json:"blood_pressure"`
	Symptoms      string   `json:"symptoms"`
	Notes         string   `json:"notes"`
}

// AddVital stores a reading the patient reported about themselves.
func (s *Service) AddVital(ctx context.Context, patientID uuid.UUID, in VitalInput) (Vital, error) {
	in.BloodPressure = strings.TrimSpace(in.BloodPressure)
	in.Symptoms = strings.TrimSpace(in.Symptoms)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validate.Struct(in); err != nil {
		return Vital{}, err
	}
	if in.Temperature == nil && in.Pulse == nil && in.BloodPressure == "" && in.Symptoms == "" {
		return Vital{}, fmt.Errorf("%w: at least one reading or symptom is required", validate.ErrInvalid)
	}
	if _, err := findRow[patientModel](ctx, s.orm, patientID); err != nil {
		return Vital{}, err
	}

	model := vitalModel{
		ID:            uuid.New(),
		PatientID:     patientID,
		Temperature:   in.Temperature,
		Pulse:         in.Pulse,
		BloodPressure: in.BloodPressure,
		Symptoms:      in.Symptoms,
		Notes:         in.Notes,
		RecordedAt:    s.now(),
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Vital{}, err
	}
	return model.toAPI(), nil
}
