package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"medrecords/pkg/diff"
	"medrecords/services/audit"
)

func sampleTrail() []audit.TrailEntry {
	actor := uuid.New()
	return []audit.TrailEntry{{
		Entry: audit.Entry{
			ID:        uuid.New(),
			ActorID:   &actor,
			Action:    audit.ActionEditPatient,
			Table:     audit.TablePatients,
			RecordID:  "p-1",
			Reason:    "Corrected typo",
			CreatedAt: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		},
		ActorName: "Amaka Obi",
		Changes: diff.Changeset{
			{Path: "phone", Kind: diff.Modified, Old: "08011111111", New: "08022222222"},
		},
	}}
}

func TestWriteTrail(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{format: "text", want: []string{"Audit history for patients/p-1", "edit_patient by Amaka Obi", "- phone: 08011111111 → 08022222222"}},
		{format: "json", want: []string{`"record_id": "p-1"`, `"actor_name": "Amaka Obi"`, `"path": "phone"`}},
		{format: "yaml", want: []string{"record_id: p-1", "actor_name: Amaka Obi", "reason: Corrected typo", "path: phone"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeTrail(&buf, tt.format, audit.TablePatients, "p-1", sampleTrail()))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	var buf bytes.Buffer
	assert.Error(t, writeTrail(&buf, "xml", audit.TablePatients, "p-1", nil))
}

func TestWriteArchive(t *testing.T) {
	rows := []exportRow{
		{ID: uuid.New(), Action: audit.ActionEditPatient, Table: audit.TablePatients, RecordID: "p-1", Reason: "first"},
		{ID: uuid.New(), Action: audit.ActionRejectStaff, Table: audit.TableMedicalStaff, RecordID: "s-1", Reason: "second"},
	}

	var buf bytes.Buffer
	n, err := writeArchive(&buf, func(fn func(exportRow) error) error {
		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()

	var reasons []string
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var row exportRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		reasons = append(reasons, row.Reason)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"first", "second"}, reasons)
}

func TestWriteArchiveStopsOnSourceError(t *testing.T) {
	boom := errors.New("connection lost")
	var buf bytes.Buffer
	_, err := writeArchive(&buf, func(func(exportRow) error) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	actor := uuid.MustParse("6f1c2f0e-8f55-4a53-9d36-0b1a4c3e2d10")

	tests := []struct {
		name string
		evt  audit.Event
		want string
	}{
		{
			name: "with changes",
			evt: audit.Event{ActorID: &actor, Action: "edit_patient", Table: "patients", RecordID: "p-1",
				Reason: "Corrected typo", Changed: []string{"phone", "version"}, CreatedAt: at},
			want: "2026-04-01T09:30:00Z edit_patient patients/p-1 by 6f1c2f0e-8f55-4a53-9d36-0b1a4c3e2d10: Corrected typo [phone, version]",
		},
		{
			name: "system actor",
			evt:  audit.Event{Action: "reject_staff", Table: "medical_staff", RecordID: "s-1", Reason: "Duplicate", CreatedAt: at},
			want: "2026-04-01T09:30:00Z reject_staff medical_staff/s-1 by System: Duplicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.evt))
		})
	}
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("SILENT"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}
