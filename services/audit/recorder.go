package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"medrecords/pkg/diff"
)

// ErrVersionConflict is returned when the caller's expected version no longer matches the row.
var ErrVersionConflict = errors.New("record was modified by someone else")

// Change is one administrative mutation to append to the trail.
type Change struct {
	Table     string
	RecordID  string
	Action    string
	ActorID   *uuid.UUID
	Reason    string
	OldValues map[string]any
	NewValues map[string]any
}

func (c Change) validate() error {
	if strings.TrimSpace(c.Reason) == "" {
		return ErrReasonRequired
	}
	if c.Table == "" || c.RecordID == "" || c.Action == "" {
		return ErrInvalidChange
	}
	return nil
}

// Mutation describes a governed edit that Apply runs inside a single transaction.
// Load must lock the row and return its pre-image; Update writes the row and
// returns the post-image. A nil post-image means the row was deleted.
type Mutation struct {
	Table    string
	RecordID string
	Action   string
	ActorID  *uuid.UUID
	Reason   string

	Load   func(tx *gorm.DB) (map[string]any, error)
	Update func(tx *gorm.DB, previous map[string]any) (map[string]any, error)
}

// Recorder appends audit entries and their outbox events.
type Recorder struct {
	orm     *gorm.DB
	now     func() time.Time
	subject string
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithSubject sets the bus subject stamped on outbox events.
func WithSubject(subject string) Option {
	return func(r *Recorder) { r.subject = subject }
}

// NewRecorder constructs a Recorder bound to orm.
func NewRecorder(orm *gorm.DB, opts ...Option) (*Recorder, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	r := &Recorder{
		orm:     orm,
		now:     func() time.Time { return time.Now().UTC() },
		subject: SubjectRecorded,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends exactly one entry for ch using tx. The caller owns the transaction.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, ch Change) (Entry, error) {
	if err := ch.validate(); err != nil {
		editsRejected.WithLabelValues(rejectLabel(err)).Inc()
		return Entry{}, err
	}
	if tx == nil {
		return Entry{}, errors.New("transaction is required")
	}

	model := entryModel{
		ID:        uuid.New(),
		ActorID:   ch.ActorID,
		Action:    ch.Action,
		Table:     ch.Table,
		RecordID:  ch.RecordID,
		OldValues: toJSONMap(ch.OldValues),
		NewValues: toJSONMap(ch.NewValues),
		Reason:    strings.TrimSpace(ch.Reason),
		CreatedAt: r.now(),
	}
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return Entry{}, fmt.Errorf("append audit entry: %w", err)
	}

	entry := model.toEntry()
	if err := enqueue(ctx, tx, r.subject, newEvent(entry)); err != nil {
		return Entry{}, err
	}

	entriesRecorded.WithLabelValues(entry.Table, entry.Action).Inc()
	zerolog.Ctx(ctx).Info().
		Str("audit_id", entry.ID.String()).
		Str("table", entry.Table).
		Str("record_id", entry.RecordID).
		Str("action", entry.Action).
		Msg("audit entry recorded")

	return entry, nil
}

// Apply locks the governed row, updates it, and appends the audit entry in one
// transaction. The reason is checked before any database work starts.
func (r *Recorder) Apply(ctx context.Context, m Mutation) (Entry, error) {
	ch := Change{
		Table:    m.Table,
		RecordID: m.RecordID,
		Action:   m.Action,
		ActorID:  m.ActorID,
		Reason:   m.Reason,
	}
	if err := ch.validate(); err != nil {
		editsRejected.WithLabelValues(rejectLabel(err)).Inc()
		return Entry{}, err
	}
	if m.Load == nil || m.Update == nil {
		return Entry{}, errors.New("mutation requires load and update")
	}

	var entry Entry
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, err := m.Load(tx)
		if err != nil {
			return err
		}
		current, err := m.Update(tx, previous)
		if err != nil {
			return err
		}

		ch.OldValues = previous
		ch.NewValues = current
		entry, err = r.Record(ctx, tx, ch)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			editsRejected.WithLabelValues("version_conflict").Inc()
		}
		return Entry{}, err
	}
	return entry, nil
}

// Changes returns the structural diff between an entry's old and new values.
func (e Entry) Changes() diff.Changeset {
	return diff.Compare(e.OldValues, e.NewValues)
}

func rejectLabel(err error) string {
	switch {
	case errors.Is(err, ErrReasonRequired):
		return "reason_required"
	case errors.Is(err, ErrInvalidChange):
		return "invalid_change"
	default:
		return "other"
	}
}
