package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medrecords/pkg/render"
)

// LegalNotice is printed under every signature badge.
const LegalNotice = "This record is legally binding and cannot be modified without audit trail"

// Badge is the signature attestation shown with a signed record.
type Badge struct {
	DoctorName   string    `json:"doctor_name"`
	StaffID      string    `json:"staff_id"`
	SignedAt     time.Time `json:"signed_at"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notice       string    `json:"notice"`
	Text         string    `json:"text"`
}

// PrescriptionText formats a prescription the way it is attested on a badge.
func PrescriptionText(p Prescription) string {
	text := p.Medication
	if p.Dosage != "" {
		text += " - " + p.Dosage
	}
	if p.Frequency != "" {
		text += ", " + p.Frequency
	}
	if p.Duration != "" {
		text += " for " + p.Duration
	}
	return text
}

// ConsultationBadge returns the badge of a signed consultation.
func (s *Service) ConsultationBadge(ctx context.Context, id uuid.UUID) (Badge, error) {
	c, err := findRow[consultationModel](ctx, s.orm, id)
	if err != nil {
		return Badge{}, err
	}
	if !c.toAPI().Signed() {
		return Badge{}, ErrNotSigned
	}
	return s.badge(ctx, *c.SignedByStaffID, *c.SignedAt, c.Diagnosis, "")
}

// PrescriptionBadge returns the badge of a signed prescription.
func (s *Service) PrescriptionBadge(ctx context.Context, id uuid.UUID) (Badge, error) {
	p, err := findRow[prescriptionModel](ctx, s.orm, id)
	if err != nil {
		return Badge{}, err
	}
	rx := p.toAPI()
	if !rx.Signed() {
		return Badge{}, ErrNotSigned
	}
	return s.badge(ctx, *p.SignedByStaffID, *p.SignedAt, "", PrescriptionText(rx))
}

type signer struct {
	FullName string
	StaffID  string
}

func (s *Service) badge(ctx context.Context, staffID uuid.UUID, signedAt time.Time, diagnosis, prescription string) (Badge, error) {
	var who signer
	err := s.orm.WithContext(ctx).
		Table("medical_staff").
		Select("full_name, staff_id").
		Where("id = ?", staffID).
		Limit(1).
		Scan(&who).Error
	if err != nil {
		return Badge{}, err
	}
	if who.FullName == "" {
		who.FullName = "Unknown staff"
	}

	b := Badge{
		DoctorName:   who.FullName,
		StaffID:      who.StaffID,
		SignedAt:     signedAt,
		Diagnosis:    strings.TrimSpace(diagnosis),
		Prescription: prescription,
		Notice:       LegalNotice,
	}
	text, err := s.render.Render(render.Signature, b)
	if err != nil {
		return Badge{}, fmt.Errorf("render signature: %w", err)
	}
	b.Text = text
	return b, nil
}
