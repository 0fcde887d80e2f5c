package domain

// OutputType tags which transport class an output event is destined for.
// The engine never interprets it; the dispatch layer routes on it.
type OutputType uint8

const (
	OutputCAN OutputType = iota
	OutputJ1939
	OutputCANopen
	OutputInternal
)

func (t OutputType) String() string {
	switch t {
	case OutputCAN:
		return "can"
	case OutputJ1939:
		return "j1939"
	case OutputCANopen:
		return "canopen"
	case OutputInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// OutputEvent is an ephemeral emission produced by the on-change and cyclic
// output phases. Events live in a bounded per-tick buffer; the dispatch
// layer drains and transmits them after every tick.
type OutputEvent struct {
	Type        OutputType `json:"type"`
	TargetID    uint32     `json:"target_id"` // PGN, COB-ID, or other protocol id
	DeviceIndex uint8      `json:"device"`
	Value       int32      `json:"value"`
	Flags       uint32     `json:"flags"`
	Timestamp   uint64     `json:"ts"`
}

// FaultLevel is the severity a fault monitor reports when its condition
// trips. Zero means no fault.
type FaultLevel uint8

const (
	FaultNone FaultLevel = iota
	FaultLevel1
	FaultLevel2
	FaultLevel3
)
