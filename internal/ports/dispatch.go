package ports

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// Dispatcher transmits output events drained from the engine after a tick.
// Which wire protocol (if any) each event ends up on is the dispatcher's
// business; the engine only decides what to emit.
type Dispatcher interface {
	Dispatch(events []domain.OutputEvent) error
	Name() string
}

// SnapshotRecorder persists signal snapshots for downstream consumers
// (diagnostics, dashboards, historical analysis).
type SnapshotRecorder interface {
	RecordSnapshots(snaps []domain.Snapshot) error
}

// DigitalOut drives a physical digital output line. The patterned output
// stage writes through this; the engine never touches pins directly.
type DigitalOut interface {
	Set(pin uint8, high bool)
}
