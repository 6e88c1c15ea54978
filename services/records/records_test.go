package records

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"medrecords/pkg/db/dbtest"
	"medrecords/pkg/validate"
	"medrecords/services/audit"
	"medrecords/services/evidence"
	"medrecords/services/identity"
)

type testAdmin struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string
}

func (testAdmin) TableName() string { return "admins" }

type testStaff struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	StaffID  string
	FullName string
}

func (testStaff) TableName() string { return "medical_staff" }

type slipUploader struct {
	calls int
}

func (u *slipUploader) PutObject(_ context.Context, _, _ string, r io.Reader, _ int64, _, _ string) error {
	u.calls++
	_, err := io.Copy(io.Discard, r)
	return err
}

func (u *slipUploader) PublicURL(bucket, key string) string {
	return "http://files.local/" + bucket + "/" + key
}

func (u *slipUploader) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", nil
}

type fixture struct {
	orm      *gorm.DB
	svc      *Service
	uploader *slipUploader
	admin    testAdmin
	doctor   testStaff
	nurse    testStaff
}

func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	models := append(Models(), audit.Models()...)
	orm := dbtest.Open(t, append(models, &testAdmin{}, &testStaff{})...)

	clock := steppingClock()
	recorder, err := audit.NewRecorder(orm, audit.WithClock(clock))
	require.NoError(t, err)

	uploader := &slipUploader{}
	store, err := evidence.NewStore(uploader, evidence.Config{Bucket: "medical-files"})
	require.NoError(t, err)

	svc, err := NewService(orm, recorder, WithClock(clock), WithEvidence(store))
	require.NoError(t, err)

	f := &fixture{
		orm:      orm,
		svc:      svc,
		uploader: uploader,
		admin:    testAdmin{ID: uuid.New(), FullName: "Amaka Obi"},
		doctor:   testStaff{ID: uuid.New(), StaffID: "STF-DOC001", FullName: "Dr. Ada Eze"},
		nurse:    testStaff{ID: uuid.New(), StaffID: "STF-NRS001", FullName: "Bola Ade"},
	}
	require.NoError(t, orm.Create(&f.admin).Error)
	require.NoError(t, orm.Create(&f.doctor).Error)
	require.NoError(t, orm.Create(&f.nurse).Error)
	return f
}

func registration(nin string) PatientRegistration {
	return PatientRegistration{
		FirstName:       "Chidi",
		LastName:        "Okafor",
		NIN:             nin,
		Phone:           "08011111111",
		DateOfBirth:     "1990-06-15",
		Gender:          "male",
		BloodGroup:      "o+",
		Address:         "12 Broad Street",
		State:           "Lagos",
		LGA:             "Ikeja",
		NextOfKinName:   "Ngozi Okafor",
		NextOfKinPhone:  "08033333333",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
	}
}

func (f *fixture) patient(t *testing.T, nin string) Patient {
	t.Helper()
	p, err := f.svc.RegisterPatient(context.Background(), registration(nin))
	require.NoError(t, err)
	return p
}

func (f *fixture) auditCount(t *testing.T, table, recordID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.orm.Table("audit_entries").Where("table_name = ? AND record_id = ?", table, recordID).Count(&n).Error)
	return n
}

func ptr[T any](v T) *T { return &v }

func TestRegisterPatient(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*PatientRegistration)
		wantErr    error
		wantStatus string
	}{
		{name: "with nin", wantStatus: StatusVerified},
		{name: "without nin", mutate: func(r *PatientRegistration) { r.NIN = "" }, wantStatus: StatusProvisional},
		{name: "short nin", mutate: func(r *PatientRegistration) { r.NIN = "1234" }, wantErr: validate.ErrInvalid},
		{name: "bad date", mutate: func(r *PatientRegistration) { r.DateOfBirth = "15/06/1990" }, wantErr: validate.ErrInvalid},
		{name: "missing next of kin", mutate: func(r *PatientRegistration) { r.NextOfKinName = " " }, wantErr: validate.ErrInvalid},
		{name: "short password", mutate: func(r *PatientRegistration) { r.Password, r.ConfirmPassword = "short", "short" }, wantErr: identity.ErrPasswordTooShort},
		{name: "password mismatch", mutate: func(r *PatientRegistration) { r.ConfirmPassword = "different!" }, wantErr: identity.ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := registration("12345678901")
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			p, err := f.svc.RegisterPatient(context.Background(), in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^HMR-[2-9A-Z]{8}$`, p.HealthMRID)
			assert.Equal(t, tt.wantStatus, p.RecordStatus)
			assert.Equal(t, "O+", p.BloodGroup)
			assert.Equal(t, 1, p.Version)
			if tt.wantStatus == StatusProvisional {
				require.NotNil(t, p.TempID)
				assert.True(t, strings.HasPrefix(*p.TempID, "TMP-"))
				assert.Nil(t, p.NIN)
			} else {
				assert.Nil(t, p.TempID)
			}
		})
	}
}

func TestRegisterPatientDuplicateNIN(t *testing.T) {
	f := newFixture(t)
	f.patient(t, "12345678901")

	_, err := f.svc.RegisterPatient(context.Background(), registration("12345678901"))
	assert.ErrorIs(t, err, ErrNINTaken)
}

func TestEditPatientRecordsOneEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")

	updated, entry, err := f.svc.EditPatient(ctx, p.ID, PatientPatch{Phone: ptr("08022222222")}, EditMeta{
		ActorID:         f.admin.ID,
		Reason:          "Corrected typo",
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "08022222222", updated.Phone)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, int64(1), f.auditCount(t, audit.TablePatients, p.ID.String()))

	assert.Equal(t, audit.ActionEditPatient, entry.Action)
	assert.Equal(t, "08011111111", entry.OldValues["phone"])
	assert.Equal(t, "08022222222", entry.NewValues["phone"])
	assert.NotContains(t, entry.NewValues, "password_hash")

	viewer, err := audit.NewViewer(f.orm)
	require.NoError(t, err)
	trail, err := viewer.Trail(ctx, audit.TablePatients, p.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "Amaka Obi", trail[0].ActorName)
	assert.Equal(t, "Corrected typo", trail[0].Reason)
	phone, ok := trail[0].Changes.Get("phone")
	require.True(t, ok)
	assert.Equal(t, "phone: 08011111111 → 08022222222", phone.String())
}

func TestEditPatientRejectedWithoutWrites(t *testing.T) {
	tests := []struct {
		name  string
		patch PatientPatch
		meta  func(admin uuid.UUID) EditMeta
		want  error
	}{
		{
			name:  "blank reason",
			patch: PatientPatch{Phone: ptr("08022222222")},
			meta:  func(a uuid.UUID) EditMeta { return EditMeta{ActorID: a, Reason: "   "} },
			want:  audit.ErrReasonRequired,
		},
		{
			name:  "stale version",
			patch: PatientPatch{Phone: ptr("08022222222")},
			meta:  func(a uuid.UUID) EditMeta { return EditMeta{ActorID: a, Reason: "Update", ExpectedVersion: 4} },
			want:  audit.ErrVersionConflict,
		},
		{
			name: "empty patch",
			meta: func(a uuid.UUID) EditMeta { return EditMeta{ActorID: a, Reason: "Update"} },
			want: ErrNoChanges,
		},
		{
			name:  "invalid gender",
			patch: PatientPatch{Gender: ptr("unknown")},
			meta:  func(a uuid.UUID) EditMeta { return EditMeta{ActorID: a, Reason: "Update"} },
			want:  validate.ErrInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.patient(t, "12345678901")

			_, _, err := f.svc.EditPatient(context.Background(), p.ID, tt.patch, tt.meta(f.admin.ID))
			require.ErrorIs(t, err, tt.want)

			after, err := f.svc.GetPatient(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, "08011111111", after.Phone)
			assert.Equal(t, 1, after.Version)
			assert.Zero(t, f.auditCount(t, audit.TablePatients, p.ID.String()))
		})
	}
}

func TestEditPatientMissing(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.EditPatient(context.Background(), uuid.New(), PatientPatch{Phone: ptr("0801")}, EditMeta{ActorID: f.admin.ID, Reason: "Fix"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditPatientNINVerifiesProvisionalRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "")
	require.Equal(t, StatusProvisional, p.RecordStatus)

	updated, entry, err := f.svc.EditPatient(ctx, p.ID, PatientPatch{NIN: ptr("10987654321")}, EditMeta{ActorID: f.admin.ID, Reason: "NIN confirmed"})
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, updated.RecordStatus)
	require.NotNil(t, updated.NIN)
	assert.Equal(t, "10987654321", *updated.NIN)

	cs := entry.Changes()
	for _, path := range []string{"nin", "record_status"} {
		_, ok := cs.Get(path)
		assert.True(t, ok, path)
	}

	other := f.patient(t, "")
	_, _, err = f.svc.EditPatient(ctx, other.ID, PatientPatch{NIN: ptr("10987654321")}, EditMeta{ActorID: f.admin.ID, Reason: "NIN confirmed"})
	assert.ErrorIs(t, err, ErrNINTaken)
	assert.Zero(t, f.auditCount(t, audit.TablePatients, other.ID.String()))
}

func TestListPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verified := f.patient(t, "12345678901")
	provisional := f.patient(t, "")

	all, err := f.svc.ListPatients(ctx, PatientFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, provisional.ID, all[0].ID)

	onlyProvisional, err := f.svc.ListPatients(ctx, PatientFilter{Status: StatusProvisional})
	require.NoError(t, err)
	require.Len(t, onlyProvisional, 1)
	assert.Equal(t, provisional.ID, onlyProvisional[0].ID)

	byID, err := f.svc.ListPatients(ctx, PatientFilter{Query: strings.ToLower(verified.HealthMRID)})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, verified.ID, byID[0].ID)

	found, err := f.svc.PatientByHealthMRID(ctx, strings.ToLower(verified.HealthMRID))
	require.NoError(t, err)
	assert.Equal(t, verified.ID, found.ID)
}

func consultationInput(draft bool) ConsultationInput {
	return ConsultationInput{
		Type:           "General",
		ChiefComplaint: "Fever and headache",
		Diagnosis:      "Malaria",
		TreatmentPlan:  "ACT for 3 days",
		Draft:          draft,
	}
}

func TestConsultationSignatureLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")

	signed, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(false))
	require.NoError(t, err)
	require.True(t, signed.Signed())
	assert.Equal(t, f.doctor.ID, *signed.SignedByStaffID)

	_, err = f.svc.SignConsultation(ctx, f.doctor.ID, signed.ID)
	assert.ErrorIs(t, err, ErrAlreadySigned)
	_, err = f.svc.UpdateConsultationDraft(ctx, f.doctor.ID, signed.ID, consultationInput(false))
	assert.ErrorIs(t, err, ErrAlreadySigned)

	draft, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(true))
	require.NoError(t, err)
	assert.False(t, draft.Signed())

	_, err = f.svc.UpdateConsultationDraft(ctx, f.nurse.ID, draft.ID, consultationInput(true))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SignConsultation(ctx, f.nurse.ID, draft.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	revised := consultationInput(true)
	revised.Diagnosis = "Typhoid"
	draft, err = f.svc.UpdateConsultationDraft(ctx, f.doctor.ID, draft.ID, revised)
	require.NoError(t, err)
	assert.Equal(t, "Typhoid", draft.Diagnosis)
	assert.Equal(t, 2, draft.Version)

	draft, err = f.svc.SignConsultation(ctx, f.doctor.ID, draft.ID)
	require.NoError(t, err)
	assert.True(t, draft.Signed())

	_, err = f.svc.CreateConsultation(ctx, f.doctor.ID, uuid.New(), consultationInput(false))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, ConsultationInput{Type: "General"})
	assert.ErrorIs(t, err, validate.ErrInvalid)
}

func TestEditConsultationKeepsSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")
	c, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(false))
	require.NoError(t, err)

	edited, entry, err := f.svc.EditConsultation(ctx, c.ID, ConsultationPatch{Diagnosis: ptr("Severe malaria")}, EditMeta{ActorID: f.admin.ID, Reason: "Lab confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "Severe malaria", edited.Diagnosis)
	assert.Equal(t, c.SignedAt.Unix(), edited.SignedAt.Unix())
	assert.Equal(t, *c.SignedByStaffID, *edited.SignedByStaffID)
	assert.Equal(t, audit.ActionEditConsultation, entry.Action)
	assert.Equal(t, audit.TableConsultations, entry.Table)

	change, ok := entry.Changes().Get("diagnosis")
	require.True(t, ok)
	assert.Equal(t, "Malaria", change.Old)
	assert.Equal(t, "Severe malaria", change.New)
}

func TestPrescriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")
	other := f.patient(t, "")
	c, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(false))
	require.NoError(t, err)

	in := PrescriptionInput{
		ConsultationID: &c.ID,
		Medication:     "Amoxicillin",
		Dosage:         "500mg",
		Frequency:      "twice daily",
		Duration:       "7 days",
	}
	rx, err := f.svc.CreatePrescription(ctx, f.doctor.ID, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, PrescriptionActive, rx.Status)
	assert.True(t, rx.Signed())
	assert.Equal(t, "Amoxicillin - 500mg, twice daily for 7 days", PrescriptionText(rx))

	_, err = f.svc.CreatePrescription(ctx, f.doctor.ID, other.ID, in)
	assert.ErrorIs(t, err, ErrNotFound)

	edited, entry, err := f.svc.EditPrescription(ctx, rx.ID, PrescriptionPatch{Status: ptr(PrescriptionCompleted)}, EditMeta{ActorID: f.admin.ID, Reason: "Course finished"})
	require.NoError(t, err)
	assert.Equal(t, PrescriptionCompleted, edited.Status)
	assert.Equal(t, audit.ActionEditPrescription, entry.Action)

	_, _, err = f.svc.EditPrescription(ctx, rx.ID, PrescriptionPatch{Status: ptr("paused")}, EditMeta{ActorID: f.admin.ID, Reason: "x"})
	assert.ErrorIs(t, err, validate.ErrInvalid)
	assert.Equal(t, int64(1), f.auditCount(t, audit.TablePrescriptions, rx.ID.String()))

	in.Draft = true
	draft, err := f.svc.CreatePrescription(ctx, f.doctor.ID, p.ID, in)
	require.NoError(t, err)
	in.Dosage = "250mg"
	draft, err = f.svc.UpdatePrescriptionDraft(ctx, f.doctor.ID, draft.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "250mg", draft.Dosage)
	draft, err = f.svc.SignPrescription(ctx, f.doctor.ID, draft.ID)
	require.NoError(t, err)
	assert.True(t, draft.Signed())
	_, err = f.svc.SignPrescription(ctx, f.doctor.ID, draft.ID)
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestBadges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")

	draft, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(true))
	require.NoError(t, err)
	_, err = f.svc.ConsultationBadge(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrNotSigned)

	c, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(false))
	require.NoError(t, err)
	badge, err := f.svc.ConsultationBadge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ada Eze", badge.DoctorName)
	assert.Equal(t, "STF-DOC001", badge.StaffID)
	assert.Equal(t, "Malaria", badge.Diagnosis)
	assert.Contains(t, badge.Text, "Digitally signed by Dr. Ada Eze (STF-DOC001)")
	assert.Contains(t, badge.Text, "Diagnosis: Malaria")
	assert.Contains(t, badge.Text, LegalNotice)

	rx, err := f.svc.CreatePrescription(ctx, f.doctor.ID, p.ID, PrescriptionInput{Medication: "Paracetamol", Dosage: "1g", Frequency: "every 8 hours"})
	require.NoError(t, err)
	badge, err = f.svc.PrescriptionBadge(ctx, rx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol - 1g, every 8 hours", badge.Prescription)
	assert.NotContains(t, badge.Text, "Diagnosis:")

	_, err = f.svc.PrescriptionBadge(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddLabTest(t *testing.T) {
	tests := []struct {
		name     string
		in       LabTestInput
		slip     *Slip
		wantErr  error
		wantType string
	}{
		{name: "common test", in: LabTestInput{TestType: "Malaria Test", Results: "Negative"}, wantType: "Malaria Test"},
		{name: "custom test", in: LabTestInput{TestType: OtherTest, CustomTestName: "Lipid Panel", Results: "Normal"}, wantType: "Lipid Panel"},
		{name: "other without name", in: LabTestInput{TestType: OtherTest, Results: "Normal"}, wantErr: validate.ErrInvalid},
		{name: "unknown test", in: LabTestInput{TestType: "Blood Magic", Results: "Normal"}, wantErr: validate.ErrInvalid},
		{name: "missing results", in: LabTestInput{TestType: "Urinalysis"}, wantErr: validate.ErrInvalid},
		{
			name:     "with slip",
			in:       LabTestInput{TestType: "X-Ray", Results: "Clear"},
			slip:     &Slip{Filename: "chest.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")},
			wantType: "X-Ray",
		},
		{
			name:    "slip of wrong type",
			in:      LabTestInput{TestType: "X-Ray", Results: "Clear"},
			slip:    &Slip{Filename: "chest.gif", ContentType: "image/gif", Size: 4, Body: strings.NewReader("GIF8")},
			wantErr: evidence.ErrUnsupportedType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.patient(t, "12345678901")

			lab, err := f.svc.AddLabTest(context.Background(), f.doctor.ID, p.ID, tt.in, tt.slip)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var n int64
				require.NoError(t, f.orm.Model(&labTestModel{}).Count(&n).Error)
				assert.Zero(t, n)
				assert.Zero(t, f.uploader.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, lab.TestType)
			assert.Equal(t, LabTestCompleted, lab.Status)
			assert.NotNil(t, lab.CompletedAt)
			if tt.slip == nil {
				assert.Nil(t, lab.Attachment)
				return
			}
			require.NotNil(t, lab.Attachment)
			assert.Equal(t, 1, f.uploader.calls)
			assert.True(t, strings.HasPrefix(lab.Attachment.Key, "lab-slips/"+p.ID.String()+"/"))
			assert.Equal(t, "http://files.local/medical-files/"+lab.Attachment.Key, lab.Attachment.URL)
		})
	}
}

func TestAddVital(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")

	_, err := f.svc.AddVital(ctx, p.ID, VitalInput{Notes: "felt fine"})
	assert.ErrorIs(t, err, validate.ErrInvalid)
	_, err = f.svc.AddVital(ctx, p.ID, VitalInput{Temperature: ptr(60.0)})
	assert.ErrorIs(t, err, validate.ErrInvalid)

	v, err := f.svc.AddVital(ctx, p.ID, VitalInput{Temperature: ptr(37.8), Pulse: ptr(88), Symptoms: "chills"})
	require.NoError(t, err)
	assert.Equal(t, 37.8, *v.Temperature)
	assert.Equal(t, 88, *v.Pulse)
}

func TestRecordViewNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "12345678901")

	first, err := f.svc.CreateConsultation(ctx, f.doctor.ID, p.ID, consultationInput(false))
	require.NoError(t, err)
	second, err := f.svc.CreateConsultation(ctx, f.nurse.ID, p.ID, consultationInput(false))
	require.NoError(t, err)
	_, err = f.svc.CreatePrescription(ctx, f.doctor.ID, p.ID, PrescriptionInput{Medication: "Paracetamol", Dosage: "1g", Frequency: "daily"})
	require.NoError(t, err)
	_, err = f.svc.AddLabTest(ctx, f.doctor.ID, p.ID, LabTestInput{TestType: "Malaria Test", Results: "Positive"}, nil)
	require.NoError(t, err)
	_, err = f.svc.AddVital(ctx, p.ID, VitalInput{Pulse: ptr(70)})
	require.NoError(t, err)

	view, err := f.svc.RecordView(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, view.Patient.ID)

	require.Len(t, view.Consultations, 2)
	assert.Equal(t, second.ID, view.Consultations[0].ID)
	assert.Equal(t, first.ID, view.Consultations[1].ID)
	require.NotNil(t, view.Consultations[0].Staff)
	assert.Equal(t, StaffRef{FullName: "Bola Ade", StaffID: "STF-NRS001"}, *view.Consultations[0].Staff)

	require.Len(t, view.Prescriptions, 1)
	require.NotNil(t, view.Prescriptions[0].Staff)
	assert.Equal(t, "Dr. Ada Eze", view.Prescriptions[0].Staff.FullName)
	require.Len(t, view.LabTests, 1)
	assert.Equal(t, "STF-DOC001", view.LabTests[0].Staff.StaffID)
	require.Len(t, view.Vitals, 1)

	_, err = f.svc.RecordView(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
