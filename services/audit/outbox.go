package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubjectRecorded is the bus subject audit events are relayed to.
const SubjectRecorded = "medrecords.audit.recorded"

const (
	defaultRelayInterval = 2 * time.Second
	defaultRelayBatch    = 100
)

// Event is the bus payload announcing a new audit entry.
type Event struct {
	EntryID   uuid.UUID  `json:"entry_id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	Action    string     `json:"action"`
	Table     string     `json:"table_name"`
	RecordID  string     `json:"record_id"`
	Reason    string     `json:"reason"`
	Changed   []string   `json:"changed"`
	CreatedAt time.Time  `json:"created_at"`
}

func newEvent(e Entry) Event {
	return Event{
		EntryID:   e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Table:     e.Table,
		RecordID:  e.RecordID,
		Reason:    e.Reason,
		Changed:   e.Changes().Paths(),
		CreatedAt: e.CreatedAt,
	}
}

type outboxModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Subject     string            `gorm:"type:text;not null"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	Attempts    int               `gorm:"not null;default:0"`
	LastError   string            `gorm:"type:text"`
	CreatedAt   time.Time         `gorm:"not null;index"`
	PublishedAt *time.Time        `gorm:"index"`
}

func (outboxModel) TableName() string { return "audit_outbox" }

func enqueue(ctx context.Context, tx *gorm.DB, subject string, evt Event) error {
	payload, err := Snapshot(evt)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	row := outboxModel{
		ID:        uuid.New(),
		Subject:   subject,
		Payload:   toJSONMap(payload),
		CreatedAt: evt.CreatedAt,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("enqueue audit event: %w", err)
	}
	return nil
}

// Publisher delivers relayed events. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Relay moves committed outbox rows onto the bus. Delivery is at-least-once.
type Relay struct {
	orm      *gorm.DB
	pub      Publisher
	interval time.Duration
	batch    int
	logger   zerolog.Logger
}

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	Interval time.Duration
	Batch    int
}

// NewRelay constructs a Relay.
func NewRelay(orm *gorm.DB, pub Publisher, cfg RelayConfig, logger zerolog.Logger) (*Relay, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultRelayInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultRelayBatch
	}
	return &Relay{orm: orm, pub: pub, interval: cfg.Interval, batch: cfg.Batch, logger: logger}, nil
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("flush audit outbox")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch of pending events and returns how many were delivered.
// Rows that fail to publish stay pending with their attempt count bumped.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	published := 0
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []outboxModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("published_at IS NULL").
			Order("created_at ASC").
			Limit(r.batch).
			Find(&pending).Error
		if err != nil {
			return err
		}

		for _, row := range pending {
			if pubErr := r.pub.Publish(ctx, row.Subject, map[string]any(row.Payload)); pubErr != nil {
				outboxFailures.Inc()
				r.logger.Warn().Err(pubErr).Str("outbox_id", row.ID.String()).Msg("publish audit event")
				if err := tx.Model(&outboxModel{}).Where("id = ?", row.ID).Updates(map[string]any{
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": pubErr.Error(),
				}).Error; err != nil {
					return err
				}
				continue
			}

			now := time.Now().UTC()
			if err := tx.Model(&outboxModel{}).Where("id = ?", row.ID).Update("published_at", now).Error; err != nil {
				return err
			}
			published++
			outboxPublished.Inc()
		}
		return nil
	})
	return published, err
}
