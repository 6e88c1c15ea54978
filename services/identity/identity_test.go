package identity

import (
	"context"
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
)

const testSetupKey = "HMR-ADMIN-01"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	orm    *gorm.DB
	svc    *Service
	viewer *audit.Viewer
	clock  *testClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	orm := dbtest.Open(t, append(append(Models(), audit.Models()...), &patientCredential{})...)

	clock := &testClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	rec, err := audit.NewRecorder(orm, audit.WithClock(clock.Now))
	require.NoError(t, err)
	viewer, err := audit.NewViewer(orm)
	require.NoError(t, err)

	svc, err := NewService(orm, rec, Config{
		SigningKey: []byte(strings.Repeat("k", 32)),
		SessionTTL: time.Hour,
		SetupKey:   testSetupKey,
	}, WithClock(clock.Now))
	require.NoError(t, err)

	return fixture{orm: orm, svc: svc, viewer: viewer, clock: clock}
}

func adminInput(username string) AdminInput {
	return AdminInput{
		Username:        username,
		FullName:        "Amaka Obi",
		Email:           "amaka@example.com",
		Password:        "s3cure-pass",
		ConfirmPassword: "s3cure-pass",
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{name: "ok", password: "abcdefgh", confirm: "abcdefgh"},
		{name: "no confirmation", password: "abcdefgh"},
		{name: "too short", password: "abc", confirm: "abc", want: ErrPasswordTooShort},
		{name: "mismatch", password: "abcdefgh", confirm: "abcdefgi", want: ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.confirm)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetupAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetupAdmin(ctx, "wrong", adminInput("root"))
	require.ErrorIs(t, err, ErrInvalidSetupKey)

	admin, err := f.svc.SetupAdmin(ctx, testSetupKey, adminInput("root"))
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)

	_, err = f.svc.SetupAdmin(ctx, testSetupKey, adminInput("second"))
	require.ErrorIs(t, err, ErrSetupComplete)

	_, err = f.svc.CreateAdmin(ctx, adminInput("root"))
	require.ErrorIs(t, err, ErrUsernameTaken)

	short := adminInput("other")
	short.Password, short.ConfirmPassword = "short", "short"
	_, err = f.svc.CreateAdmin(ctx, short)
	require.ErrorIs(t, err, ErrPasswordTooShort)

	var stored adminModel
	require.NoError(t, f.orm.First(&stored, "username = ?", "root").Error)
	assert.NotEqual(t, "s3cure-pass", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))
}

func TestAdminSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateAdmin(ctx, adminInput("root"))
	require.NoError(t, err)

	_, err = f.svc.LoginAdmin(ctx, "root", "not-the-password", SessionMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.LoginAdmin(ctx, "nobody", "s3cure-pass", SessionMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := f.svc.LoginAdmin(ctx, "root", "s3cure-pass", SessionMeta{UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, login.Role)

	p, err := f.svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.SubjectID)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "Amaka Obi", p.Name)

	require.NoError(t, f.svc.Logout(ctx, p.SessionID))
	_, err = f.svc.Authenticate(ctx, login.Token)
	require.ErrorIs(t, err, ErrSessionRevoked)

	second, err := f.svc.LoginAdmin(ctx, "root", "s3cure-pass", SessionMeta{})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Authenticate(ctx, second.Token)
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = f.svc.Authenticate(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSignedWithOtherKeyIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAdmin(ctx, adminInput("root"))
	require.NoError(t, err)
	login, err := f.svc.LoginAdmin(ctx, "root", "s3cure-pass", SessionMeta{})
	require.NoError(t, err)

	other := signer{key: []byte(strings.Repeat("x", 32)), now: f.clock.Now}
	_, err = other.parse(login.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func registration(email string) StaffRegistration {
	return StaffRegistration{
		FullName:        "Dr Tunde Bello",
		Role:            "doctor",
		HospitalID:      "LUTH-01",
		Phone:           "08030000000",
		Email:           email,
		Password:        "doctor-pass",
		ConfirmPassword: "doctor-pass",
	}
}

func TestStaffVerificationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := uuid.New()

	staff, err := f.svc.RegisterStaff(ctx, registration("Tunde@Example.com"))
	require.NoError(t, err)
	assert.False(t, staff.IsActive)
	assert.Equal(t, "tunde@example.com", staff.Email)
	assert.True(t, strings.HasPrefix(staff.StaffID, "STF-"))

	_, err = f.svc.RegisterStaff(ctx, registration("tunde@example.com"))
	require.ErrorIs(t, err, ErrEmailTaken)

	bad := registration("x@example.com")
	bad.Role = "surgeon"
	_, err = f.svc.RegisterStaff(ctx, bad)
	require.ErrorIs(t, err, validate.ErrInvalid)

	_, err = f.svc.LoginStaff(ctx, "tunde@example.com", "doctor-pass", SessionMeta{})
	require.ErrorIs(t, err, ErrInactiveStaff)

	pending, err := f.svc.PendingStaff(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, _, err = f.svc.ApproveStaff(ctx, adminID, staff.ID, Approval{})
	require.ErrorIs(t, err, validate.ErrInvalid)

	approved, entry, err := f.svc.ApproveStaff(ctx, adminID, staff.ID, Approval{MDCNNumber: "MDCN/12345"})
	require.NoError(t, err)
	assert.True(t, approved.IsActive)
	assert.Equal(t, "MDCN/12345", approved.MDCNNumber)
	require.NotNil(t, approved.VerifiedBy)
	assert.Equal(t, adminID, *approved.VerifiedBy)
	assert.Equal(t, audit.ActionApproveStaff, entry.Action)
	assert.Equal(t, "MDCN MDCN/12345 verified", entry.Reason)

	_, _, err = f.svc.ApproveStaff(ctx, adminID, staff.ID, Approval{MDCNNumber: "MDCN/12345"})
	require.ErrorIs(t, err, ErrAlreadyVerified)

	login, err := f.svc.LoginStaff(ctx, staff.StaffID, "doctor-pass", SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, login.Role)

	trail, err := f.viewer.Trail(ctx, audit.TableMedicalStaff, staff.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	active, ok := trail[0].Changes.Get("is_active")
	require.True(t, ok)
	assert.Equal(t, false, active.Old)
	assert.Equal(t, true, active.New)
}

func TestRejectStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := uuid.New()

	staff, err := f.svc.RegisterStaff(ctx, registration("nurse@example.com"))
	require.NoError(t, err)

	_, err = f.svc.RejectStaff(ctx, adminID, staff.ID, "  ")
	require.ErrorIs(t, err, audit.ErrReasonRequired)

	_, err = f.svc.RejectStaff(ctx, adminID, uuid.New(), "Unknown")
	require.ErrorIs(t, err, ErrNotFound)

	entry, err := f.svc.RejectStaff(ctx, adminID, staff.ID, "Licence could not be confirmed")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionRejectStaff, entry.Action)
	assert.Equal(t, "nurse@example.com", entry.OldValues["email"])
	assert.Nil(t, entry.NewValues)

	_, err = f.svc.StaffByID(ctx, staff.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoginPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hash, err := HashPassword("patient-pass")
	require.NoError(t, err)
	nin := "12345678901"
	temp := "TMP-ABCDEFGH"
	withNIN := patientCredential{ID: uuid.New(), HealthMRID: "HMR-AAAA2222", FirstName: "Ada", LastName: "Eze", NIN: &nin, PasswordHash: hash}
	withTemp := patientCredential{ID: uuid.New(), HealthMRID: "HMR-BBBB3333", FirstName: "Obi", LastName: "Okafor", TempID: &temp, PasswordHash: hash}
	require.NoError(t, f.orm.Create(&withNIN).Error)
	require.NoError(t, f.orm.Create(&withTemp).Error)

	tests := []struct {
		name       string
		healthMR   string
		identifier string
		password   string
		wantErr    error
		wantID     uuid.UUID
	}{
		{name: "nin", healthMR: "HMR-AAAA2222", identifier: nin, password: "patient-pass", wantID: withNIN.ID},
		{name: "lowercase health id", healthMR: "hmr-aaaa2222", identifier: nin, password: "patient-pass", wantID: withNIN.ID},
		{name: "temp id", healthMR: "HMR-BBBB3333", identifier: "tmp-abcdefgh", password: "patient-pass", wantID: withTemp.ID},
		{name: "wrong nin", healthMR: "HMR-AAAA2222", identifier: "00000000000", password: "patient-pass", wantErr: ErrInvalidCredentials},
		{name: "blank identifier", healthMR: "HMR-AAAA2222", identifier: "", password: "patient-pass", wantErr: ErrInvalidCredentials},
		{name: "wrong password", healthMR: "HMR-AAAA2222", identifier: nin, password: "nope-nope", wantErr: ErrInvalidCredentials},
		{name: "unknown patient", healthMR: "HMR-ZZZZ9999", identifier: nin, password: "patient-pass", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			login, err := f.svc.LoginPatient(ctx, tt.healthMR, tt.identifier, tt.password, SessionMeta{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RolePatient, login.Role)
			assert.Equal(t, tt.wantID, login.SubjectID)
		})
	}
}
