package records

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"medrecords/pkg/ids"
	"medrecords/pkg/validate"
	"medrecords/services/audit"
	"medrecords/services/identity"
)

// PatientRegistration is the self-registration payload. NIN is optional; without it
// the record is provisional and a temporary ID is issued.
type PatientRegistration struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	NIN             string `json:"nin" validate:"omitempty,len=11,numeric"`
	Phone           string `json:"phone" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	DateOfBirth     string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender          string `json:"gender" validate:"required,oneof=male female"`
	BloodGroup      string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Address         string `json:"address" validate:"required"`
	State           string `json:"state"`
	LGA             string `json:"lga" validate:"required"`
	Occupation      string `json:"occupation"`
	NextOfKinName   string `json:"next_of_kin_name" validate:"required"`
	NextOfKinPhone  string `json:"next_of_kin_phone" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

func (in *PatientRegistration) normalise() {
	for _, f := range []*string{
		&in.FirstName, &in.LastName, &in.NIN, &in.Phone, &in.Email, &in.DateOfBirth,
		&in.Address, &in.State, &in.LGA, &in.Occupation, &in.NextOfKinName, &in.NextOfKinPhone,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.Email = strings.ToLower(in.Email)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.BloodGroup = strings.ToUpper(strings.TrimSpace(in.BloodGroup))
}

// RegisterPatient creates a patient record with a fresh HealthMR ID.
func (s *Service) RegisterPatient(ctx context.Context, in PatientRegistration) (Patient, error) {
	in.normalise()
	if err := validate.Struct(in); err != nil {
		return Patient{}, err
	}
	if err := identity.ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return Patient{}, err
	}

	hash, err := identity.HashPassword(in.Password)
	if err != nil {
		return Patient{}, err
	}
	healthMRID, err := ids.HealthMR()
	if err != nil {
		return Patient{}, err
	}

	now := s.now()
	model := patientModel{
		ID:             uuid.New(),
		HealthMRID:     healthMRID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		Email:          in.Email,
		DateOfBirth:    in.DateOfBirth,
		Gender:         in.Gender,
		BloodGroup:     in.BloodGroup,
		Address:        in.Address,
		State:          in.State,
		LGA:            in.LGA,
		Occupation:     in.Occupation,
		NextOfKinName:  in.NextOfKinName,
		NextOfKinPhone: in.NextOfKinPhone,
		RecordStatus:   StatusVerified,
		PasswordHash:   hash,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.NIN != "" {
		nin := in.NIN
		model.NIN = &nin
	} else {
		tempID, err := ids.Temp()
		if err != nil {
			return Patient{}, err
		}
		model.TempID = &tempID
		model.RecordStatus = StatusProvisional
	}

	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if model.NIN != nil {
			if err := ensureNINFree(tx, *model.NIN, uuid.Nil); err != nil {
				return err
			}
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return Patient{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("patient_id", model.ID.String()).
		Str("healthmr_id", model.HealthMRID).
		Str("record_status", model.RecordStatus).
		Msg("patient registered")
	return model.toAPI(), nil
}

func ensureNINFree(tx *gorm.DB, nin string, except uuid.UUID) error {
	var count int64
	q := tx.Model(&patientModel{}).Where("nin = ?", nin)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrNINTaken
	}
	return nil
}

// GetPatient returns one patient.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (Patient, error) {
	m, err := findRow[patientModel](ctx, s.orm, id)
	if err != nil {
		return Patient{}, err
	}
	return m.toAPI(), nil
}

// PatientByHealthMRID looks a patient up by the ID printed on their card.
func (s *Service) PatientByHealthMRID(ctx context.Context, healthMRID string) (Patient, error) {
	var m patientModel
	err := s.orm.WithContext(ctx).First(&m, "healthmr_id = ?", strings.ToUpper(strings.TrimSpace(healthMRID))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Patient{}, ErrNotFound
		}
		return Patient{}, err
	}
	return m.toAPI(), nil
}

// PatientFilter narrows ListPatients.
type PatientFilter struct {
	// Query matches name, HealthMR ID, NIN or phone.
	Query  string
	Status string
	Limit  int
	Offset int
}

// ListPatients returns patients newest first.
func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q := s.orm.WithContext(ctx).Model(&patientModel{})
	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(healthmr_id) LIKE ? OR nin LIKE ? OR phone LIKE ?",
			like, like, like, like, like)
	}
	if f.Status != "" {
		q = q.Where("record_status = ?", f.Status)
	}

	var rows []patientModel
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Patient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	return out, nil
}

// PatientPatch carries an administrator's edits. Nil fields are left unchanged; an
// empty NIN clears it.
type PatientPatch struct {
	FirstName      *string `json:"first_name" validate:"omitempty,min=1"`
	LastName       *string `json:"last_name" validate:"omitempty,min=1"`
	NIN            *string `json:"nin" validate:"omitempty,len=11,numeric"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email" validate:"omitempty,email"`
	DateOfBirth    *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender         *string `json:"gender" validate:"omitempty,oneof=male female"`
	BloodGroup     *string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Address        *string `json:"address"`
	State          *string `json:"state"`
	LGA            *string `json:"lga"`
	Occupation     *string `json:"occupation"`
	NextOfKinName  *string `json:"next_of_kin_name"`
	NextOfKinPhone *string `json:"next_of_kin_phone"`
	RecordStatus   *string `json:"record_status" validate:"omitempty,oneof=verified provisional"`
}

func (p PatientPatch) columns() map[string]any {
	out := map[string]any{}
	set := func(col string, v *string) { setTrimmed(out, col, v) }
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("phone", p.Phone)
	set("email", p.Email)
	set("date_of_birth", p.DateOfBirth)
	set("gender", p.Gender)
	set("blood_group", p.BloodGroup)
	set("address", p.Address)
	set("state", p.State)
	set("lga", p.LGA)
	set("occupation", p.Occupation)
	set("next_of_kin_name", p.NextOfKinName)
	set("next_of_kin_phone", p.NextOfKinPhone)
	set("record_status", p.RecordStatus)
	if p.NIN != nil {
		if nin := strings.TrimSpace(*p.NIN); nin != "" {
			out["nin"] = nin
		} else {
			out["nin"] = nil
		}
	}
	return out
}

// EditPatient applies an administrator's edit and records it in the audit trail.
// Setting a NIN on a provisional record verifies it.
func (s *Service) EditPatient(ctx context.Context, id uuid.UUID, patch PatientPatch, meta EditMeta) (Patient, audit.Entry, error) {
	if err := validate.Struct(patch); err != nil {
		return Patient{}, audit.Entry{}, err
	}
	columns := patch.columns()
	if len(columns) == 0 {
		return Patient{}, audit.Entry{}, ErrNoChanges
	}

	return applyEdit(ctx, s, id, meta, governedEdit[patientModel, Patient]{
		table:   audit.TablePatients,
		action:  audit.ActionEditPatient,
		version: func(m patientModel) int { return m.Version },
		view:    patientModel.toAPI,
		changes: func(tx *gorm.DB, current patientModel) (map[string]any, error) {
			updates := make(map[string]any, len(columns)+1)
			for col, v := range columns {
				updates[col] = v
			}
			if nin, ok := updates["nin"].(string); ok {
				if err := ensureNINFree(tx, nin, current.ID); err != nil {
					return nil, err
				}
				if patch.RecordStatus == nil && current.RecordStatus == StatusProvisional {
					updates["record_status"] = StatusVerified
				}
			}
			return updates, nil
		},
	})
}

