package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"medrecords/pkg/bus"
	"medrecords/pkg/db"
	"medrecords/services/audit"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail export and event streaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAuditExportCommand())
	cmd.AddCommand(newAuditWatchCommand())
	return cmd
}

// exportRow is one audit_entries row as written to an export archive.
type exportRow struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	ActorID   *uuid.UUID     `db:"actor_id" json:"actor_id"`
	Action    string         `db:"action" json:"action"`
	Table     string         `db:"table_name" json:"table_name"`
	RecordID  string         `db:"record_id" json:"record_id"`
	OldValues map[string]any `db:"old_values" json:"old_values"`
	NewValues map[string]any `db:"new_values" json:"new_values"`
	Reason    string         `db:"reason" json:"reason"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

const exportQuery = `SELECT id, actor_id, action, table_name, record_id, old_values, new_values, reason, created_at
FROM audit_entries
ORDER BY created_at ASC, id ASC`

func newAuditExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every audit entry to a zstd-compressed JSON lines file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var total int64
			if err := db.Get(ctx, a.pool, &total, "SELECT count(*) FROM audit_entries"); err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			written, err := writeArchive(f, func(fn func(exportRow) error) error {
				return db.Stream(ctx, a.pool, fn, exportQuery)
			})
			if err != nil {
				return err
			}
			if err := f.Sync(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d entries to %s\n", written, total, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Destination file (for example audit.jsonl.zst)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// writeArchive compresses one JSON document per row produced by each.
func writeArchive(w io.Writer, each func(func(exportRow) error) error) (int, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}

	count := 0
	lines := json.NewEncoder(enc)
	err = each(func(row exportRow) error {
		count++
		return lines.Encode(row)
	})
	if err != nil {
		_ = enc.Close()
		return count, err
	}
	return count, enc.Close()
}

func newAuditWatchCommand() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print audit events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Audit.NATSURL == "" {
				return fmt.Errorf("AUDIT_NATS_URL is required to watch audit events")
			}
			b, err := bus.New(a.cfg.Audit.NATSURL, nats.Name(serviceName+"-watch"))
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			sub, err := b.Subscribe(a.logger.WithContext(ctx), audit.SubjectRecorded, durable, func(_ context.Context, data []byte) error {
				var evt audit.Event
				if err := json.Unmarshal(data, &evt); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, formatEvent(evt))
				return err
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty only shows new events")
	return cmd
}

func formatEvent(evt audit.Event) string {
	actor := audit.SystemActor
	if evt.ActorID != nil {
		actor = evt.ActorID.String()
	}
	line := fmt.Sprintf("%s %s %s/%s by %s: %s",
		evt.CreatedAt.UTC().Format(time.RFC3339), evt.Action, evt.Table, evt.RecordID, actor, evt.Reason)
	if len(evt.Changed) > 0 {
		line += " [" + strings.Join(evt.Changed, ", ") + "]"
	}
	return line
}
