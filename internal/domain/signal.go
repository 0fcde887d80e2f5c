package domain

// Status is the health classification attached to every signal. It is the
// sole error-propagation channel inside the engine: stages never return
// errors, they degrade the status of the signals they touch.
type Status uint8

const (
	StatusOk           Status = iota // value within normal operating range
	StatusDegraded                   // usable but degraded
	StatusOutOfRange                 // outside acceptable range
	StatusError                      // hardware or processing error
	StatusTimeout                    // data is stale
	StatusInconsistent               // redundant sources disagree
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	case StatusInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Signal is one entry in the engine's canonical signal table. Signals are
// addressed only by their table index; nothing holds pointers to them.
type Signal struct {
	Value     int32
	Status    Status
	Timestamp uint64 // monotonic microseconds
	StaleUS   uint64 // staleness timeout, 0 disables the check
	Updated   bool   // set when the value changed this tick
}

// RawEvent is a validated hardware sample on its way into the signal table.
type RawEvent struct {
	Source    uint8
	Value     int32
	Status    Status
	Timestamp uint64
}

// Snapshot is the read-only view of a signal handed to external consumers.
type Snapshot struct {
	Index     uint8  `json:"index"`
	Value     int32  `json:"value"`
	Status    Status `json:"status"`
	Timestamp uint64 `json:"ts"`
}
