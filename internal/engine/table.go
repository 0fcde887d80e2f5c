package engine

import (
	"fmt"
	"math"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// Capacity limits for the statically sized context arrays. Everything the
// engine owns is allocated up front; nothing grows at runtime.
const (
	MaxSignals         = 64
	MaxMerges          = 16
	MaxRemaps          = 16
	MaxScales          = 16
	MaxFaultMonitors   = 16
	MaxPIDs            = 8
	MaxVerifiedOutputs = 16
	MaxPatterns        = 8
	MaxOnChangeOutputs = 16
	MaxCyclicOutputs   = 16
	MaxOutputEvents    = 64
)

// NoOverride marks a limp-home parameter that leaves the scale's current
// value untouched.
const NoOverride = math.MinInt32

// NoControlSignal disables the gating signal on a pattern context.
const NoControlSignal = 0xFF

// VoteMethod selects how a merge context combines its valid inputs.
type VoteMethod uint8

const (
	VoteMedian VoteMethod = iota
	VoteAverage
	VoteMin
	VoteMax
)

func (m VoteMethod) String() string {
	switch m {
	case VoteMedian:
		return "median"
	case VoteAverage:
		return "average"
	case VoteMin:
		return "min"
	case VoteMax:
		return "max"
	default:
		return "unknown"
	}
}

// MergeContext combines up to 8 redundant input signals into one output
// using a voting method with a tolerance-based consistency check.
type MergeContext struct {
	Inputs    [8]uint8
	NumInputs uint8
	Output    uint8
	Method    VoteMethod
	Tolerance uint32
	Enabled   bool
}

// RemapContext applies deadzone filtering and optional inversion from one
// signal to another.
type RemapContext struct {
	Input    uint8
	Output   uint8
	Invert   bool
	Deadzone int32
	Enabled  bool
}

// ScaleContext applies output = input*Factor/1000 + Offset with saturation
// and optional clamping. Its parameters are the target of limp-home
// overrides and calibration writes.
type ScaleContext struct {
	Input       uint8
	Output      uint8
	Factor      int32 // 1000 = 1.0x
	Offset      int32
	ClampMin    int32
	ClampMax    int32
	HasClampMin bool
	HasClampMax bool
	Enabled     bool
}

// FaultMonitorContext watches one signal for staleness, range, or status
// faults, drives a severity output signal, and optionally degrades a scale
// context while the fault is active (limp-home).
type FaultMonitorContext struct {
	Input       uint8
	FaultOutput uint8

	CheckStaleness bool
	StaleTimeoutUS uint64

	CheckRange bool
	MinValue   int32
	MaxValue   int32

	CheckStatus bool

	Level domain.FaultLevel

	// WakeEnabled routes threshold crossings to the engine's wake callback.
	WakeEnabled bool

	// Limp-home action. Override fields set to NoOverride leave the scale
	// parameter unchanged.
	HasLimpAction   bool
	LimpTargetScale uint8
	LimpFactor      int32
	LimpClampMax    int32
	LimpClampMin    int32
	RestoreDelayUS  uint64

	// Runtime state. The saved fields are valid only while LimpActive.
	active           bool
	LimpActive       bool
	faultClearAtUS   uint64
	savedFactor      int32
	savedClampMax    int32
	savedClampMin    int32
	savedHasClampMin bool
	savedHasClampMax bool

	Enabled bool
}

// PIDContext is a discrete-time controller over a (setpoint, measurement,
// output) signal triple. Gains are fixed-point, scaled by 1000.
type PIDContext struct {
	Setpoint    uint8
	Measurement uint8
	Output      uint8

	Kp int32
	Ki int32
	Kd int32

	OutputMin int32
	OutputMax int32

	IntegralMin int64
	IntegralMax int64

	Deadband              int32
	SampleTimeUS          uint64 // 0 = use measured delta
	ResetOnSetpointChange bool

	// Runtime state. primed is false until the first invocation has
	// established a valid time base.
	integral     int64
	lastError    int32
	lastSetpoint int32
	lastTimeUS   uint64
	primed       bool

	Enabled bool
}

// VerifiedOutputContext compares a commanded signal against a feedback
// signal after a settling timeout.
type VerifiedOutputContext struct {
	Command  uint8
	Feedback uint8
	Output   uint8

	Tolerance        int32
	VerifyTimeoutUS  uint64
	ContinuousVerify bool

	lastCommand int32
	commandTS   uint64
	waiting     bool

	Enabled bool
}

// PatternType selects the waveform a pattern context generates.
type PatternType uint8

const (
	PatternStatic PatternType = iota
	PatternBlink
	PatternPWM
	PatternCustom
)

// PatternContext generates periodic digital output patterns, optionally
// gated by a control signal (zero value = output held off).
type PatternContext struct {
	Pin           uint8
	ControlSignal uint8 // NoControlSignal disables gating
	Type          PatternType

	PeriodUS uint32
	OnTimeUS uint32

	PatternBits   uint32
	PatternLength uint8 // 1..32

	started      bool
	lastUpdateUS uint64
	phaseUS      uint32
	patternIndex uint8
	currentState bool

	Enabled  bool
	Inverted bool
}

// OnChangeContext emits an output event whenever its source signal's value
// changed this tick, rate-limited by MinIntervalUS.
type OnChangeContext struct {
	Source      uint8
	Type        domain.OutputType
	TargetID    uint32
	DeviceIndex uint8
	Flags       uint32

	MinIntervalUS uint64
	lastEmitUS    uint64
	emitted       bool

	Enabled bool
}

// CyclicContext schedules drift-free periodic emission of a signal's value
// to a protocol target.
type CyclicContext struct {
	Type        domain.OutputType
	TargetID    uint32
	DeviceIndex uint8

	Source uint8

	PeriodUS     uint64
	NextDeadline uint64

	Flags   uint32
	Enabled bool
}

// SignalConfig is the per-signal static configuration.
type SignalConfig struct {
	StaleUS uint64
}

// Config is the start-of-day configuration the engine is built from. Slice
// lengths must fit the corresponding capacity limits.
type Config struct {
	Signals  []SignalConfig
	Merges   []MergeContext
	Remaps   []RemapContext
	Scales   []ScaleContext
	Monitors []FaultMonitorContext
	PIDs     []PIDContext
	Verified []VerifiedOutputContext
	Patterns []PatternContext
	OnChange []OnChangeContext
	Cyclic   []CyclicContext
}

// Engine owns the signal table, every stage-context array, and the
// per-tick output event buffer. It is not safe for concurrent use: the
// caller guarantees one tick at a time.
type Engine struct {
	signals    [MaxSignals]domain.Signal
	numSignals uint8

	merges    [MaxMerges]MergeContext
	numMerges uint8

	remaps    [MaxRemaps]RemapContext
	numRemaps uint8

	scales    [MaxScales]ScaleContext
	numScales uint8

	monitors    [MaxFaultMonitors]FaultMonitorContext
	numMonitors uint8

	pids    [MaxPIDs]PIDContext
	numPIDs uint8

	verified    [MaxVerifiedOutputs]VerifiedOutputContext
	numVerified uint8

	patterns    [MaxPatterns]PatternContext
	numPatterns uint8

	onChange    [MaxOnChangeOutputs]OnChangeContext
	numOnChange uint8

	cyclic    [MaxCyclicOutputs]CyclicContext
	numCyclic uint8

	outEvents [MaxOutputEvents]domain.OutputEvent
	outCount  uint8

	// droppedEvents counts emissions lost to a full buffer since Init.
	droppedEvents uint64

	wake    ports.WakeFunc
	digital ports.DigitalOut
}

// New builds an engine from static configuration. Contexts are copied into
// the fixed arrays; the config is not retained.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Signals) == 0 || len(cfg.Signals) > MaxSignals {
		return nil, fmt.Errorf("engine: signal count %d out of range [1,%d]", len(cfg.Signals), MaxSignals)
	}
	if err := checkLen("merges", len(cfg.Merges), MaxMerges); err != nil {
		return nil, err
	}
	if err := checkLen("remaps", len(cfg.Remaps), MaxRemaps); err != nil {
		return nil, err
	}
	if err := checkLen("scales", len(cfg.Scales), MaxScales); err != nil {
		return nil, err
	}
	if err := checkLen("monitors", len(cfg.Monitors), MaxFaultMonitors); err != nil {
		return nil, err
	}
	if err := checkLen("pids", len(cfg.PIDs), MaxPIDs); err != nil {
		return nil, err
	}
	if err := checkLen("verified outputs", len(cfg.Verified), MaxVerifiedOutputs); err != nil {
		return nil, err
	}
	if err := checkLen("patterns", len(cfg.Patterns), MaxPatterns); err != nil {
		return nil, err
	}
	if err := checkLen("on-change outputs", len(cfg.OnChange), MaxOnChangeOutputs); err != nil {
		return nil, err
	}
	if err := checkLen("cyclic outputs", len(cfg.Cyclic), MaxCyclicOutputs); err != nil {
		return nil, err
	}

	e := &Engine{}
	e.numSignals = uint8(len(cfg.Signals))
	for i, sc := range cfg.Signals {
		e.signals[i].StaleUS = sc.StaleUS
	}
	e.numMerges = uint8(copy(e.merges[:], cfg.Merges))
	e.numRemaps = uint8(copy(e.remaps[:], cfg.Remaps))
	e.numScales = uint8(copy(e.scales[:], cfg.Scales))
	e.numMonitors = uint8(copy(e.monitors[:], cfg.Monitors))
	e.numPIDs = uint8(copy(e.pids[:], cfg.PIDs))
	e.numVerified = uint8(copy(e.verified[:], cfg.Verified))
	e.numPatterns = uint8(copy(e.patterns[:], cfg.Patterns))
	e.numOnChange = uint8(copy(e.onChange[:], cfg.OnChange))
	e.numCyclic = uint8(copy(e.cyclic[:], cfg.Cyclic))

	e.Init()
	return e, nil
}

func checkLen(what string, n, max int) error {
	if n > max {
		return fmt.Errorf("engine: %d %s configured, capacity is %d", n, what, max)
	}
	return nil
}

// Init resets signal and stage runtime state, preserving the static
// configuration. Safe to call between measurement campaigns.
func (e *Engine) Init() {
	e.outCount = 0
	e.droppedEvents = 0
	for i := range e.signals {
		e.signals[i].Value = 0
		e.signals[i].Status = domain.StatusOk
		e.signals[i].Timestamp = 0
		e.signals[i].Updated = false
	}
	for i := range e.monitors {
		e.monitors[i].active = false
		e.monitors[i].LimpActive = false
		e.monitors[i].faultClearAtUS = 0
	}
	for i := range e.pids {
		e.pids[i].primed = false
		e.pids[i].integral = 0
		e.pids[i].lastError = 0
	}
	for i := range e.verified {
		e.verified[i].lastCommand = 0
		e.verified[i].commandTS = 0
		e.verified[i].waiting = false
	}
	for i := range e.patterns {
		e.patterns[i].started = false
		e.patterns[i].phaseUS = 0
		e.patterns[i].patternIndex = 0
		e.patterns[i].currentState = false
	}
	for i := range e.onChange {
		e.onChange[i].lastEmitUS = 0
		e.onChange[i].emitted = false
	}
	for i := range e.cyclic {
		e.cyclic[i].NextDeadline = 0
	}
}

// SetWakeFunc installs the wake notification callback. See ports.WakeFunc
// for the non-reentrancy contract.
func (e *Engine) SetWakeFunc(fn ports.WakeFunc) { e.wake = fn }

// SetDigitalOut installs the digital output driver used by the patterned
// output stage.
func (e *Engine) SetDigitalOut(out ports.DigitalOut) { e.digital = out }

// NumSignals reports the configured signal count.
func (e *Engine) NumSignals() uint8 { return e.numSignals }

// Signal returns a copy of the signal at idx, or false for an invalid
// index.
func (e *Engine) Signal(idx uint8) (domain.Signal, bool) {
	if idx >= e.numSignals {
		return domain.Signal{}, false
	}
	return e.signals[idx], true
}

// SetSignal force-writes a signal value with Ok status. Intended for hosts
// that drive the table directly instead of through ingestion events.
func (e *Engine) SetSignal(idx uint8, value int32, now uint64) {
	if idx >= e.numSignals {
		return
	}
	sig := &e.signals[idx]
	sig.Value = value
	sig.Status = domain.StatusOk
	sig.Timestamp = now
	sig.Updated = true
}

// NumScales reports the configured scale context count.
func (e *Engine) NumScales() uint8 { return e.numScales }

// NumRemaps reports the configured remap context count.
func (e *Engine) NumRemaps() uint8 { return e.numRemaps }

// Scale returns a copy of the scale context at idx.
func (e *Engine) Scale(idx uint8) (ScaleContext, bool) {
	if idx >= e.numScales {
		return ScaleContext{}, false
	}
	return e.scales[idx], true
}

// SetScale replaces the scale context at idx. Callers must not invoke this
// while a tick is in flight.
func (e *Engine) SetScale(idx uint8, ctx ScaleContext) bool {
	if idx >= e.numScales {
		return false
	}
	e.scales[idx] = ctx
	return true
}

// Remap returns a copy of the remap context at idx.
func (e *Engine) Remap(idx uint8) (RemapContext, bool) {
	if idx >= e.numRemaps {
		return RemapContext{}, false
	}
	return e.remaps[idx], true
}

// SetRemap replaces the remap context at idx. Same tick-boundary contract
// as SetScale.
func (e *Engine) SetRemap(idx uint8, ctx RemapContext) bool {
	if idx >= e.numRemaps {
		return false
	}
	e.remaps[idx] = ctx
	return true
}

// Snapshot returns the externally visible view of the signal at idx.
func (e *Engine) Snapshot(idx uint8) (domain.Snapshot, bool) {
	if idx >= e.numSignals {
		return domain.Snapshot{}, false
	}
	sig := &e.signals[idx]
	return domain.Snapshot{
		Index:     idx,
		Value:     sig.Value,
		Status:    sig.Status,
		Timestamp: sig.Timestamp,
	}, true
}

// Snapshots appends the current view of every signal to dst and returns it.
func (e *Engine) Snapshots(dst []domain.Snapshot) []domain.Snapshot {
	for i := uint8(0); i < e.numSignals; i++ {
		snap, _ := e.Snapshot(i)
		dst = append(dst, snap)
	}
	return dst
}

// OutputEvents returns the events emitted during the current tick. The
// slice aliases the internal buffer and is valid until the next Step.
func (e *Engine) OutputEvents() []domain.OutputEvent {
	return e.outEvents[:e.outCount]
}

// DroppedEvents reports emissions lost to buffer exhaustion since Init.
func (e *Engine) DroppedEvents() uint64 { return e.droppedEvents }

// emit appends an output event, silently dropping it when the buffer for
// this tick is exhausted.
func (e *Engine) emit(evt domain.OutputEvent) bool {
	if e.outCount >= MaxOutputEvents {
		e.droppedEvents++
		return false
	}
	e.outEvents[e.outCount] = evt
	e.outCount++
	return true
}
