package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"medrecords/pkg/diff"
)

// SystemActor is shown for entries whose actor is unknown or has been removed.
const SystemActor = "System"

// TrailEntry is an Entry annotated for display.
type TrailEntry struct {
	Entry     `yaml:",inline"`
	ActorName string         `json:"actor_name" yaml:"actor_name"`
	Changes   diff.Changeset `json:"changes" yaml:"changes"`
}

// Viewer reads the audit history of governed records.
type Viewer struct {
	orm *gorm.DB
}

// NewViewer constructs a Viewer.
func NewViewer(orm *gorm.DB) (*Viewer, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Viewer{orm: orm}, nil
}

type trailRow struct {
	ID        uuid.UUID
	ActorID   *uuid.UUID
	Action    string
	TableName string
	RecordID  string
	OldValues datatypes.JSONMap
	NewValues datatypes.JSONMap
	Reason    string
	CreatedAt time.Time
	ActorName *string
}

// Trail returns every entry for (table, recordID), newest first. The whole history
// is loaded.
func (v *Viewer) Trail(ctx context.Context, table, recordID string) ([]TrailEntry, error) {
	if table == "" || recordID == "" {
		return nil, ErrInvalidChange
	}

	var rows []trailRow
	err := v.orm.WithContext(ctx).
		Table("audit_entries AS e").
		Select("e.id, e.actor_id, e.action, e.table_name, e.record_id, e.old_values, e.new_values, e.reason, e.created_at, a.full_name AS actor_name").
		Joins("LEFT JOIN admins a ON a.id = e.actor_id").
		Where("e.table_name = ? AND e.record_id = ?", table, recordID).
		Order("e.created_at DESC, e.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}

	out := make([]TrailEntry, 0, len(rows))
	for _, row := range rows {
		entry := entryModel{
			ID:        row.ID,
			ActorID:   row.ActorID,
			Action:    row.Action,
			Table:     row.TableName,
			RecordID:  row.RecordID,
			OldValues: row.OldValues,
			NewValues: row.NewValues,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		}.toEntry()

		name := SystemActor
		if row.ActorName != nil && *row.ActorName != "" {
			name = *row.ActorName
		}
		out = append(out, TrailEntry{Entry: entry, ActorName: name, Changes: entry.Changes()})
	}
	return out, nil
}
