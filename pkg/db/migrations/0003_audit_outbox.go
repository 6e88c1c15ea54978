package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
)

func init() {
	goose.AddMigrationContext(upAuditOutbox, downAuditOutbox)
}

type AuditOutbox struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Subject     string            `gorm:"type:text;not null"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	Attempts    int               `gorm:"not null;default:0"`
	LastError   string            `gorm:"type:text"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();index"`
	PublishedAt *time.Time        `gorm:"type:timestamptz;index"`
}

func (AuditOutbox) TableName() string { return "audit_outbox" }

func upAuditOutbox(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	if err := gormDB.WithContext(ctx).AutoMigrate(&AuditOutbox{}); err != nil {
		return err
	}
	// The relay only scans rows that still need publishing.
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_outbox_pending ON audit_outbox (created_at) WHERE published_at IS NULL`)
	return err
}

func downAuditOutbox(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&AuditOutbox{})
}
