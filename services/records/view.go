package records

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StaffRef names the staff member who authored a record.
type StaffRef struct {
	FullName string `json:"full_name"`
	StaffID  string `json:"staff_id"`
}

// ConsultationView is a consultation with its author.
type ConsultationView struct {
	Consultation
	Staff *StaffRef `json:"medical_staff"`
}

// PrescriptionView is a prescription with its author.
type PrescriptionView struct {
	Prescription
	Staff *StaffRef `json:"medical_staff"`
}

// LabTestView is a lab test with the staff member who recorded it.
type LabTestView struct {
	LabTest
	Staff *StaffRef `json:"medical_staff"`
}

// RecordView is everything shown on a patient's record page. Every list is newest first.
type RecordView struct {
	Patient       Patient            `json:"patient"`
	Consultations []ConsultationView `json:"consultations"`
	Prescriptions []PrescriptionView `json:"prescriptions"`
	LabTests      []LabTestView      `json:"lab_tests"`
	Vitals        []Vital            `json:"self_reported_vitals"`
}

type authored struct {
	StaffName *string
	StaffCode *string
}

func (a authored) ref() *StaffRef {
	if a.StaffName == nil {
		return nil
	}
	ref := &StaffRef{FullName: *a.StaffName}
	if a.StaffCode != nil {
		ref.StaffID = *a.StaffCode
	}
	return ref
}

type consultationRow struct {
	Record consultationModel `gorm:"embedded"`
	Author authored          `gorm:"embedded"`
}

type prescriptionRow struct {
	Record prescriptionModel `gorm:"embedded"`
	Author authored          `gorm:"embedded"`
}

type labTestRow struct {
	Record labTestModel `gorm:"embedded"`
	Author authored     `gorm:"embedded"`
}

func withAuthor(tx *gorm.DB, table string, patientID uuid.UUID) *gorm.DB {
	return tx.Table(table+" AS r").
		Select("r.*, ms.full_name AS staff_name, ms.staff_id AS staff_code").
		Joins("LEFT JOIN medical_staff AS ms ON ms.id = r.staff_id").
		Where("r.patient_id = ?", patientID).
		Order("r.created_at DESC")
}

// RecordView loads a patient's full record.
func (s *Service) RecordView(ctx context.Context, patientID uuid.UUID) (RecordView, error) {
	patient, err := findRow[patientModel](ctx, s.orm, patientID)
	if err != nil {
		return RecordView{}, err
	}
	db := s.orm.WithContext(ctx)

	var consultations []consultationRow
	if err := withAuthor(db, "consultations", patientID).Scan(&consultations).Error; err != nil {
		return RecordView{}, err
	}
	var prescriptions []prescriptionRow
	if err := withAuthor(db, "prescriptions", patientID).Scan(&prescriptions).Error; err != nil {
		return RecordView{}, err
	}
	var labs []labTestRow
	if err := withAuthor(db, "lab_tests", patientID).Scan(&labs).Error; err != nil {
		return RecordView{}, err
	}
	var vitals []vitalModel
	if err := db.Where("patient_id = ?", patientID).Order("recorded_at DESC").Find(&vitals).Error; err != nil {
		return RecordView{}, err
	}

	view := RecordView{
		Patient:       patient.toAPI(),
		Consultations: make([]ConsultationView, 0, len(consultations)),
		Prescriptions: make([]PrescriptionView, 0, len(prescriptions)),
		LabTests:      make([]LabTestView, 0, len(labs)),
		Vitals:        make([]Vital, 0, len(vitals)),
	}
	for _, row := range consultations {
		view.Consultations = append(view.Consultations, ConsultationView{Consultation: row.Record.toAPI(), Staff: row.Author.ref()})
	}
	for _, row := range prescriptions {
		view.Prescriptions = append(view.Prescriptions, PrescriptionView{Prescription: row.Record.toAPI(), Staff: row.Author.ref()})
	}
	for _, row := range labs {
		view.LabTests = append(view.LabTests, LabTestView{LabTest: row.Record.toAPI(), Staff: row.Author.ref()})
	}
	for _, row := range vitals {
		view.Vitals = append(view.Vitals, row.toAPI())
	}
	return view, nil
}
