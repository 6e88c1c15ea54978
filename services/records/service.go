package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medrecords/pkg/render"
	"medrecords/services/audit"
	"medrecords/services/evidence"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrForbidden     = errors.New("not permitted to change this record")
	ErrNINTaken      = errors.New("a patient with this NIN is already registered")
	ErrAlreadySigned = errors.New("record has already been signed")
	ErrNotSigned     = errors.New("record has not been signed")
	ErrNoChanges     = errors.New("no changes supplied")
	ErrNoEvidence    = errors.New("lab slip uploads are not configured")
)

// Service owns patients and their clinical records.
type Service struct {
	orm      *gorm.DB
	recorder *audit.Recorder
	evidence *evidence.Store
	render   *render.Engine
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvidence enables lab slip attachments.
func WithEvidence(store *evidence.Store) Option {
	return func(s *Service) { s.evidence = store }
}

// NewService constructs the records service.
func NewService(orm *gorm.DB, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	engine, err := render.New()
	if err != nil {
		return nil, err
	}

	s := &Service{
		orm:      orm,
		recorder: recorder,
		render:   engine,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EditMeta identifies who is editing a governed record and why.
type EditMeta struct {
	ActorID uuid.UUID
	Reason  string
	// ExpectedVersion enables an optimistic check when non-zero.
	ExpectedVersion int
}

func lockRow[M any](tx *gorm.DB, id uuid.UUID) (M, error) {
	var m M
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, ErrNotFound
	}
	return m, err
}

func findRow[M any](ctx context.Context, orm *gorm.DB, id uuid.UUID) (M, error) {
	var m M
	err := orm.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, ErrNotFound
	}
	return m, err
}

// governedEdit describes how one governed table is edited by an administrator.
type governedEdit[M any, T any] struct {
	table   string
	action  string
	version func(M) int
	view    func(M) T
	// changes returns the column updates to apply to the locked row.
	changes func(tx *gorm.DB, current M) (map[string]any, error)
}

// applyEdit locks the row, applies the edit and appends one audit entry, all in
// the recorder's transaction.
func applyEdit[M any, T any](ctx context.Context, s *Service, id uuid.UUID, meta EditMeta, g governedEdit[M, T]) (T, audit.Entry, error) {
	var (
		locked  M
		updated M
		zero    T
	)
	entry, err := s.recorder.Apply(ctx, audit.Mutation{
		Table:    g.table,
		RecordID: id.String(),
		Action:   g.action,
		ActorID:  &meta.ActorID,
		Reason:   meta.Reason,
		Load: func(tx *gorm.DB) (map[string]any, error) {
			current, err := lockRow[M](tx, id)
			if err != nil {
				return nil, err
			}
			if meta.ExpectedVersion > 0 && g.version(current) != meta.ExpectedVersion {
				return nil, audit.ErrVersionConflict
			}
			locked = current
			return audit.Snapshot(g.view(current))
		},
		Update: func(tx *gorm.DB, _ map[string]any) (map[string]any, error) {
			changes, err := g.changes(tx, locked)
			if err != nil {
				return nil, err
			}
			if len(changes) == 0 {
				return nil, ErrNoChanges
			}
			updates := make(map[string]any, len(changes)+2)
			for col, v := range changes {
				updates[col] = v
			}
			updates["version"] = gorm.Expr("version + 1")
			updates["updated_at"] = s.now()

			if err := tx.Model(&locked).Where("id = ?", id).Updates(updates).Error; err != nil {
				return nil, err
			}
			if err := tx.First(&updated, "id = ?", id).Error; err != nil {
				return nil, err
			}
			return audit.Snapshot(g.view(updated))
		},
	})
	if err != nil {
		return zero, audit.Entry{}, err
	}
	return g.view(updated), entry, nil
}
