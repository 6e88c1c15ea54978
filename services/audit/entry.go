package audit

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tables whose administrative edits are governed by the audit trail.
const (
	TablePatients      = "patients"
	TableConsultations = "consultations"
	TablePrescriptions = "prescriptions"
	TableMedicalStaff  = "medical_staff"
)

// Actions recorded against governed tables.
const (
	ActionEditPatient      = "edit_patient"
	ActionEditConsultation = "edit_consultation"
	ActionEditPrescription = "edit_prescription"
	ActionApproveStaff     = "approve_staff"
	ActionRejectStaff      = "reject_staff"
)

var (
	// ErrReasonRequired is returned when an edit is attempted without a justification.
	ErrReasonRequired = errors.New("a reason for the edit is required")
	// ErrInvalidChange is returned when table, record id or action are missing.
	ErrInvalidChange = errors.New("table, record id and action are required")
)

// Entry is an append-only record of one administrative mutation.
type Entry struct {
	ID        uuid.UUID      `json:"id" yaml:"id"`
	ActorID   *uuid.UUID     `json:"actor_id" yaml:"actor_id"`
	Action    string         `json:"action" yaml:"action"`
	Table     string         `json:"table_name" yaml:"table_name"`
	RecordID  string         `json:"record_id" yaml:"record_id"`
	OldValues map[string]any `json:"old_values" yaml:"old_values"`
	NewValues map[string]any `json:"new_values" yaml:"new_values"`
	Reason    string         `json:"reason" yaml:"reason"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

type entryModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ActorID   *uuid.UUID        `gorm:"type:uuid;index"`
	Action    string            `gorm:"type:text;not null"`
	Table     string            `gorm:"column:table_name;type:text;not null;index:idx_audit_entries_record,priority:1"`
	RecordID  string            `gorm:"type:text;not null;index:idx_audit_entries_record,priority:2"`
	OldValues datatypes.JSONMap `gorm:"type:jsonb"`
	NewValues datatypes.JSONMap `gorm:"type:jsonb"`
	Reason    string            `gorm:"type:text;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

func (entryModel) TableName() string { return "audit_entries" }

func (m entryModel) toEntry() Entry {
	return Entry{
		ID:        m.ID,
		ActorID:   m.ActorID,
		Action:    m.Action,
		Table:     m.Table,
		RecordID:  m.RecordID,
		OldValues: mapFromJSONMap(m.OldValues),
		NewValues: mapFromJSONMap(m.NewValues),
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

// Models returns the gorm models owned by this package.
func Models() []any { return []any{&entryModel{}, &outboxModel{}} }

// Snapshot converts a record into the key-value map stored as old/new values. The
// record's JSON encoding decides which fields appear, so secrets tagged `json:"-"`
// never reach the trail.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mapFromJSONMap treats an empty map as absent, since JSONMap scans NULL as {}.
func mapFromJSONMap(src datatypes.JSONMap) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func toJSONMap(src map[string]any) datatypes.JSONMap {
	if src == nil {
		return nil
	}
	out := datatypes.JSONMap{}
	for k, v := range src {
		out[k] = v
	}
	return out
}
