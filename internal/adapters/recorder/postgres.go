package recorder

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// PostgresRecorder persists signal snapshots and dispatched output events
// for diagnostics and historical analysis. Snapshot rows are idempotent on
// (signal_idx, ts).
type PostgresRecorder struct {
	db            *sql.DB
	snapshotTable string
	eventTable    string
}

func NewPostgresRecorder(db *sql.DB, snapshotTable, eventTable string) *PostgresRecorder {
	return &PostgresRecorder{
		db:            db,
		snapshotTable: snapshotTable,
		eventTable:    eventTable,
	}
}

func (r *PostgresRecorder) Name() string { return "postgres" }

func (r *PostgresRecorder) RecordSnapshots(snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(r.snapshotTable)
	b.WriteString(" (signal_idx, value, status, ts) VALUES ")

	args := make([]any, 0, len(snaps)*4)
	for i, s := range snaps {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))
		args = append(args,
			s.Index,
			s.Value,
			s.Status.String(),
			s.Timestamp,
		)
	}

	b.WriteString(" ON CONFLICT (signal_idx, ts) DO NOTHING")

	_, err := r.db.Exec(b.String(), args...)
	return err
}

// RecordEvents stores dispatched output events.
func (r *PostgresRecorder) RecordEvents(events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(r.eventTable)
	b.WriteString(" (type, target_id, device_index, value, flags, ts) VALUES ")

	args := make([]any, 0, len(events)*6)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))
		args = append(args,
			e.Type.String(),
			e.TargetID,
			e.DeviceIndex,
			e.Value,
			e.Flags,
			e.Timestamp,
		)
	}

	_, err := r.db.Exec(b.String(), args...)
	return err
}

var _ ports.SnapshotRecorder = (*PostgresRecorder)(nil)
