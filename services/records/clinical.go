package records

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"medrecords/pkg/validate"
	"medrecords/services/audit"
)

// ConsultationInput is what a staff member records during an encounter. Unless
// Draft is set the consultation is signed by its author on creation.
type ConsultationInput struct {
	Type           string `json:"consultation_type" validate:"required"`
	ChiefComplaint string `json:"chief_complaint" validate:"required"`
	Diagnosis      string `json:"diagnosis"`
	TreatmentPlan  string `json:"treatment_plan"`
	Notes          string `json:"notes"`
	Draft          bool   `json:"draft"`
}

func (in *ConsultationInput) normalise() {
	in.Type = strings.TrimSpace(in.Type)
	in.ChiefComplaint = strings.TrimSpace(in.ChiefComplaint)
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	in.TreatmentPlan = strings.TrimSpace(in.TreatmentPlan)
	in.Notes = strings.TrimSpace(in.Notes)
}

// CreateConsultation records a consultation for patientID authored by staffID.
func (s *Service) CreateConsultation(ctx context.Context, staffID, patientID uuid.UUID, in ConsultationInput) (Consultation, error) {
	in.normalise()
	if err := validate.Struct(in); err != nil {
		return Consultation{}, err
	}
	if _, err := findRow[patientModel](ctx, s.orm, patientID); err != nil {
		return Consultation{}, err
	}

	now := s.now()
	model := consultationModel{
		ID:             uuid.New(),
		PatientID:      patientID,
		StaffID:        staffID,
		Type:           in.Type,
		ChiefComplaint: in.ChiefComplaint,
		Diagnosis:      in.Diagnosis,
		TreatmentPlan:  in.TreatmentPlan,
		Notes:          in.Notes,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !in.Draft {
		model.SignedByStaffID = &staffID
		model.SignedAt = &now
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Consultation{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("consultation_id", model.ID.String()).
		Str("patient_id", patientID.String()).
		Bool("signed", !in.Draft).
		Msg("consultation recorded")
	return model.toAPI(), nil
}

// UpdateConsultationDraft lets the author revise an unsigned consultation.
func (s *Service) UpdateConsultationDraft(ctx context.Context, staffID, id uuid.UUID, in ConsultationInput) (Consultation, error) {
	in.normalise()
	if err := validate.Struct(in); err != nil {
		return Consultation{}, err
	}

	var out consultationModel
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockRow[consultationModel](tx, id)
		if err != nil {
			return err
		}
		if err := authorMayChange(m.StaffID, staffID, m.SignedAt != nil); err != nil {
			return err
		}
		m.Type = in.Type
		m.ChiefComplaint = in.ChiefComplaint
		m.Diagnosis = in.Diagnosis
		m.TreatmentPlan = in.TreatmentPlan
		m.Notes = in.Notes
		m.Version++
		m.UpdatedAt = s.now()
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return Consultation{}, err
	}
	return out.toAPI(), nil
}

// SignConsultation signs a draft consultation. A signature is set exactly once.
func (s *Service) SignConsultation(ctx context.Context, staffID, id uuid.UUID) (Consultation, error) {
	var out consultationModel
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockRow[consultationModel](tx, id)
		if err != nil {
			return err
		}
		if err := authorMayChange(m.StaffID, staffID, m.SignedAt != nil); err != nil {
			return err
		}
		now := s.now()
		m.SignedByStaffID = &staffID
		m.SignedAt = &now
		m.Version++
		m.UpdatedAt = now
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return Consultation{}, err
	}
	return out.toAPI(), nil
}

// ConsultationPatch carries an administrator's edits to a consultation. The
// signature is preserved.
type ConsultationPatch struct {
	Type           *string `json:"consultation_type" validate:"omitempty,min=1"`
	ChiefComplaint *string `json:"chief_complaint" validate:"omitempty,min=1"`
	Diagnosis      *string `json:"diagnosis"`
	TreatmentPlan  *string `json:"treatment_plan"`
	Notes          *string `json:"notes"`
}

func (p ConsultationPatch) columns() map[string]any {
	out := map[string]any{}
	setTrimmed(out, "consultation_type", p.Type)
	setTrimmed(out, "chief_complaint", p.ChiefComplaint)
	setTrimmed(out, "diagnosis", p.Diagnosis)
	setTrimmed(out, "treatment_plan", p.TreatmentPlan)
	setTrimmed(out, "notes", p.Notes)
	return out
}

// EditConsultation applies an administrator's edit and records it in the audit trail.
func (s *Service) EditConsultation(ctx context.Context, id uuid.UUID, patch ConsultationPatch, meta EditMeta) (Consultation, audit.Entry, error) {
	if err := validate.Struct(patch); err != nil {
		return Consultation{}, audit.Entry{}, err
	}
	columns := patch.columns()
	if len(columns) == 0 {
		return Consultation{}, audit.Entry{}, ErrNoChanges
	}

	return applyEdit(ctx, s, id, meta, governedEdit[consultationModel, Consultation]{
		table:   audit.TableConsultations,
		action:  audit.ActionEditConsultation,
		version: func(m consultationModel) int { return m.Version },
		view:    consultationModel.toAPI,
		changes: func(*gorm.DB, consultationModel) (map[string]any, error) {
			return columns, nil
		},
	})
}

// PrescriptionInput is a medication order. Unless Draft is set the prescription is
// signed by its author on creation.
type PrescriptionInput struct {
	ConsultationID *uuid.UUID `json:"consultation_id"`
	Medication     string     `json:"medication_name" validate:"required"`
	Dosage         string     `json:"dosage" validate:"required"`
	Frequency      string     `json:"frequency" validate:"required"`
	Duration       string     `json:"duration"`
	Instructions   string     `json:"instructions"`
	Draft          bool       `json:"draft"`
}

func (in *PrescriptionInput) normalise() {
	in.Medication = strings.TrimSpace(in.Medication)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Frequency = strings.TrimSpace(in.Frequency)
	in.Duration = strings.TrimSpace(in.Duration)
	in.Instructions = strings.TrimSpace(in.Instructions)
}

// CreatePrescription records a prescription for patientID authored by staffID. A
// linked consultation must belong to the same patient.
func (s *Service) CreatePrescription(ctx context.Context, staffID, patientID uuid.UUID, in PrescriptionInput) (Prescription, error) {
	in.normalise()
	if err := validate.Struct(in); err != nil {
		return Prescription{}, err
	}
	if _, err := findRow[patientModel](ctx, s.orm, patientID); err != nil {
		return Prescription{}, err
	}
	if in.ConsultationID != nil {
		c, err := findRow[consultationModel](ctx, s.orm, *in.ConsultationID)
		if err != nil {
			return Prescription{}, err
		}
		if c.PatientID != patientID {
			return Prescription{}, ErrNotFound
		}
	}

	now := s.now()
	model := prescriptionModel{
		ID:             uuid.New(),
		PatientID:      patientID,
		StaffID:        staffID,
		ConsultationID: in.ConsultationID,
		Medication:     in.Medication,
		Dosage:         in.Dosage,
		Frequency:      in.Frequency,
		Duration:       in.Duration,
		Instructions:   in.Instructions,
		Status:         PrescriptionActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !in.Draft {
		model.SignedByStaffID = &staffID
		model.SignedAt = &now
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Prescription{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("prescription_id", model.ID.String()).
		Str("patient_id", patientID.String()).
		Bool("signed", !in.Draft).
		Msg("prescription recorded")
	return model.toAPI(), nil
}

// UpdatePrescriptionDraft lets the author revise an unsigned prescription.
func (s *Service) UpdatePrescriptionDraft(ctx context.Context, staffID, id uuid.UUID, in PrescriptionInput) (Prescription, error) {
	in.normalise()
	if err := validate.Struct(in); err != nil {
		return Prescription{}, err
	}

	var out prescriptionModel
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockRow[prescriptionModel](tx, id)
		if err != nil {
			return err
		}
		if err := authorMayChange(m.StaffID, staffID, m.SignedAt != nil); err != nil {
			return err
		}
		m.Medication = in.Medication
		m.Dosage = in.Dosage
		m.Frequency = in.Frequency
		m.Duration = in.Duration
		m.Instructions = in.Instructions
		m.Version++
		m.UpdatedAt = s.now()
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return Prescription{}, err
	}
	return out.toAPI(), nil
}

// SignPrescription signs a draft prescription. A signature is set exactly once.
func (s *Service) SignPrescription(ctx context.Context, staffID, id uuid.UUID) (Prescription, error) {
	var out prescriptionModel
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockRow[prescriptionModel](tx, id)
		if err != nil {
			return err
		}
		if err := authorMayChange(m.StaffID, staffID, m.SignedAt != nil); err != nil {
			return err
		}
		now := s.now()
		m.SignedByStaffID = &staffID
		m.SignedAt = &now
		m.Version++
		m.UpdatedAt = now
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return Prescription{}, err
	}
	return out.toAPI(), nil
}

// PrescriptionPatch carries an administrator's edits to a prescription.
type PrescriptionPatch struct {
	Medication   *string `json:"medication_name" validate:"omitempty,min=1"`
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	Duration     *string `json:"duration"`
	Instructions *string `json:"instructions"`
	Status       *string `json:"status" validate:"omitempty,oneof=active completed cancelled"`
}

func (p PrescriptionPatch) columns() map[string]any {
	out := map[string]any{}
	setTrimmed(out, "medication_name", p.Medication)
	setTrimmed(out, "dosage", p.Dosage)
	setTrimmed(out, "frequency", p.Frequency)
	setTrimmed(out, "duration", p.Duration)
	setTrimmed(out, "instructions", p.Instructions)
	setTrimmed(out, "status", p.Status)
	return out
}

// EditPrescription applies an administrator's edit and records it in the audit trail.
func (s *Service) EditPrescription(ctx context.Context, id uuid.UUID, patch PrescriptionPatch, meta EditMeta) (Prescription, audit.Entry, error) {
	if err := validate.Struct(patch); err != nil {
		return Prescription{}, audit.Entry{}, err
	}
	columns := patch.columns()
	if len(columns) == 0 {
		return Prescription{}, audit.Entry{}, ErrNoChanges
	}

	return applyEdit(ctx, s, id, meta, governedEdit[prescriptionModel, Prescription]{
		table:   audit.TablePrescriptions,
		action:  audit.ActionEditPrescription,
		version: func(m prescriptionModel) int { return m.Version },
		view:    prescriptionModel.toAPI,
		changes: func(*gorm.DB, prescriptionModel) (map[string]any, error) {
			return columns, nil
		},
	})
}

// authorMayChange guards draft edits and signing: only the author, only before signing.
func authorMayChange(author, staffID uuid.UUID, signed bool) error {
	if signed {
		return ErrAlreadySigned
	}
	if author != staffID {
		return ErrForbidden
	}
	return nil
}

func setTrimmed(out map[string]any, col string, v *string) {
	if v != nil {
		out[col] = strings.TrimSpace(*v)
	}
}
