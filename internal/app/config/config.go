package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/opcuasrc"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/serialsrc"
	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/engine"
)

type Config struct {
	Engine    EngineConfig      `yaml:"engine"`
	Runtime   RuntimeConfig     `yaml:"runtime"`
	Serial    *serialsrc.Config `yaml:"serial"`
	OPCUA     *opcuasrc.Config  `yaml:"opcua"`
	Recorder  RecorderConfig    `yaml:"recorder"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	WebSocket WebSocketConfig   `yaml:"websocket"`
	Journal   JournalConfig     `yaml:"journal"`
}

type RuntimeConfig struct {
	TickPeriod     time.Duration `yaml:"tick_period"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	SnapshotPeriod time.Duration `yaml:"snapshot_period"`
}

type RecorderConfig struct {
	ConnString    string `yaml:"conn_string"`
	SnapshotTable string `yaml:"snapshot_table"`
	EventTable    string `yaml:"event_table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WebSocketConfig struct {
	Enabled bool `yaml:"enabled"`
}

// JournalConfig enables the on-disk output event journal. An empty Dir
// disables journaling.
type JournalConfig struct {
	Dir string `yaml:"dir"`
}

// EngineConfig is the YAML shape of the signal table and stage contexts.
// Build converts it into the engine's fixed-capacity configuration.
type EngineConfig struct {
	Signals         []SignalEntry   `yaml:"signals"`
	Remaps          []RemapEntry    `yaml:"remaps"`
	Merges          []MergeEntry    `yaml:"merges"`
	Scales          []ScaleEntry    `yaml:"scales"`
	Monitors        []MonitorEntry  `yaml:"monitors"`
	PIDs            []PIDEntry      `yaml:"pids"`
	VerifiedOutputs []VerifiedEntry `yaml:"verified_outputs"`
	Patterns        []PatternEntry  `yaml:"patterns"`
	OnChangeOutputs []OnChangeEntry `yaml:"on_change_outputs"`
	CyclicOutputs   []CyclicEntry   `yaml:"cyclic_outputs"`
}

type SignalEntry struct {
	Name    string `yaml:"name"`
	StaleUS uint64 `yaml:"stale_us"`
}

type RemapEntry struct {
	Input    uint8 `yaml:"input"`
	Output   uint8 `yaml:"output"`
	Deadzone int32 `yaml:"deadzone"`
	Invert   bool  `yaml:"invert"`
	Enabled  *bool `yaml:"enabled"`
}

type MergeEntry struct {
	Inputs    []uint8 `yaml:"inputs"`
	Output    uint8   `yaml:"output"`
	Method    string  `yaml:"method"`
	Tolerance uint32  `yaml:"tolerance"`
	Enabled   *bool   `yaml:"enabled"`
}

type ScaleEntry struct {
	Input    uint8  `yaml:"input"`
	Output   uint8  `yaml:"output"`
	Factor   int32  `yaml:"factor"`
	Offset   int32  `yaml:"offset"`
	ClampMin *int32 `yaml:"clamp_min"`
	ClampMax *int32 `yaml:"clamp_max"`
	Enabled  *bool  `yaml:"enabled"`
}

type RangeEntry struct {
	Min int32 `yaml:"min"`
	Max int32 `yaml:"max"`
}

type LimpEntry struct {
	TargetScale    uint8  `yaml:"target_scale"`
	Factor         *int32 `yaml:"factor"`
	ClampMax       *int32 `yaml:"clamp_max"`
	ClampMin       *int32 `yaml:"clamp_min"`
	RestoreDelayUS uint64 `yaml:"restore_delay_us"`
}

type MonitorEntry struct {
	Input          uint8       `yaml:"input"`
	FaultOutput    uint8       `yaml:"fault_output"`
	StaleTimeoutUS *uint64     `yaml:"stale_timeout_us"`
	Range          *RangeEntry `yaml:"range"`
	CheckStatus    bool        `yaml:"check_status"`
	Level          uint8       `yaml:"level"`
	Wake           bool        `yaml:"wake"`
	Limp           *LimpEntry  `yaml:"limp"`
	Enabled        *bool       `yaml:"enabled"`
}

type PIDEntry struct {
	Setpoint              uint8  `yaml:"setpoint"`
	Measurement           uint8  `yaml:"measurement"`
	Output                uint8  `yaml:"output"`
	Kp                    int32  `yaml:"kp"`
	Ki                    int32  `yaml:"ki"`
	Kd                    int32  `yaml:"kd"`
	OutputMin             int32  `yaml:"output_min"`
	OutputMax             int32  `yaml:"output_max"`
	IntegralMin           int64  `yaml:"integral_min"`
	IntegralMax           int64  `yaml:"integral_max"`
	Deadband              int32  `yaml:"deadband"`
	SampleTimeUS          uint64 `yaml:"sample_time_us"`
	ResetOnSetpointChange bool   `yaml:"reset_on_setpoint_change"`
	Enabled               *bool  `yaml:"enabled"`
}

type VerifiedEntry struct {
	Command         uint8  `yaml:"command"`
	Feedback        uint8  `yaml:"feedback"`
	Output          uint8  `yaml:"output"`
	Tolerance       int32  `yaml:"tolerance"`
	VerifyTimeoutUS uint64 `yaml:"verify_timeout_us"`
	Continuous      bool   `yaml:"continuous"`
	Enabled         *bool  `yaml:"enabled"`
}

type PatternEntry struct {
	Pin           uint8  `yaml:"pin"`
	ControlSignal *uint8 `yaml:"control_signal"`
	Type          string `yaml:"type"`
	PeriodUS      uint32 `yaml:"period_us"`
	OnTimeUS      uint32 `yaml:"on_time_us"`
	PatternBits   uint32 `yaml:"pattern_bits"`
	PatternLength uint8  `yaml:"pattern_length"`
	Inverted      bool   `yaml:"inverted"`
	Enabled       *bool  `yaml:"enabled"`
}

type OnChangeEntry struct {
	Source        uint8  `yaml:"source"`
	Type          string `yaml:"type"`
	TargetID      uint32 `yaml:"target_id"`
	DeviceIndex   uint8  `yaml:"device_index"`
	Flags         uint32 `yaml:"flags"`
	MinIntervalUS uint64 `yaml:"min_interval_us"`
	Enabled       *bool  `yaml:"enabled"`
}

type CyclicEntry struct {
	Source      uint8  `yaml:"source"`
	Type        string `yaml:"type"`
	TargetID    uint32 `yaml:"target_id"`
	DeviceIndex uint8  `yaml:"device_index"`
	PeriodUS    uint64 `yaml:"period_us"`
	Flags       uint32 `yaml:"flags"`
	Enabled     *bool  `yaml:"enabled"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Runtime.TickPeriod == 0 {
		c.Runtime.TickPeriod = 10 * time.Millisecond
	}
	if c.Runtime.QueueCapacity == 0 {
		c.Runtime.QueueCapacity = 1024
	}
	if c.Runtime.SnapshotPeriod == 0 {
		c.Runtime.SnapshotPeriod = time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Recorder.SnapshotTable == "" {
		c.Recorder.SnapshotTable = "lq_snapshots"
	}
	if c.Recorder.EventTable == "" {
		c.Recorder.EventTable = "lq_events"
	}
	if c.Serial != nil {
		c.Serial.ApplyDefaults()
	}
	if c.OPCUA != nil {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if len(c.Engine.Signals) == 0 {
		return fmt.Errorf("engine.signals must not be empty")
	}
	if c.Serial != nil {
		if err := c.Serial.Validate(); err != nil {
			return fmt.Errorf("serial config: %w", err)
		}
	}
	if c.OPCUA != nil {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	return nil
}

// SignalName returns the configured name for a signal index, falling back
// to the numeric index.
func (c *Config) SignalName(idx uint8) string {
	if int(idx) < len(c.Engine.Signals) && c.Engine.Signals[idx].Name != "" {
		return c.Engine.Signals[idx].Name
	}
	return fmt.Sprintf("signal_%d", idx)
}

// Build converts the YAML shape into the engine configuration, resolving
// enum strings and presence-based options.
func (ec *EngineConfig) Build() (engine.Config, error) {
	cfg := engine.Config{}

	cfg.Signals = make([]engine.SignalConfig, len(ec.Signals))
	for i, s := range ec.Signals {
		cfg.Signals[i] = engine.SignalConfig{StaleUS: s.StaleUS}
	}

	for _, r := range ec.Remaps {
		cfg.Remaps = append(cfg.Remaps, engine.RemapContext{
			Input:    r.Input,
			Output:   r.Output,
			Deadzone: r.Deadzone,
			Invert:   r.Invert,
			Enabled:  enabled(r.Enabled),
		})
	}

	for i, m := range ec.Merges {
		method, err := parseVoteMethod(m.Method)
		if err != nil {
			return cfg, fmt.Errorf("merges[%d]: %w", i, err)
		}
		if len(m.Inputs) == 0 || len(m.Inputs) > 8 {
			return cfg, fmt.Errorf("merges[%d]: input count %d out of range [1,8]", i, len(m.Inputs))
		}
		ctx := engine.MergeContext{
			NumInputs: uint8(len(m.Inputs)),
			Output:    m.Output,
			Method:    method,
			Tolerance: m.Tolerance,
			Enabled:   enabled(m.Enabled),
		}
		copy(ctx.Inputs[:], m.Inputs)
		cfg.Merges = append(cfg.Merges, ctx)
	}

	for _, s := range ec.Scales {
		ctx := engine.ScaleContext{
			Input:   s.Input,
			Output:  s.Output,
			Factor:  s.Factor,
			Offset:  s.Offset,
			Enabled: enabled(s.Enabled),
		}
		if ctx.Factor == 0 {
			ctx.Factor = 1000
		}
		if s.ClampMin != nil {
			ctx.ClampMin = *s.ClampMin
			ctx.HasClampMin = true
		}
		if s.ClampMax != nil {
			ctx.ClampMax = *s.ClampMax
			ctx.HasClampMax = true
		}
		cfg.Scales = append(cfg.Scales, ctx)
	}

	for i, m := range ec.Monitors {
		if m.Level > uint8(domain.FaultLevel3) {
			return cfg, fmt.Errorf("monitors[%d]: level %d out of range [0,3]", i, m.Level)
		}
		ctx := engine.FaultMonitorContext{
			Input:       m.Input,
			FaultOutput: m.FaultOutput,
			CheckStatus: m.CheckStatus,
			Level:       domain.FaultLevel(m.Level),
			WakeEnabled: m.Wake,
			Enabled:     enabled(m.Enabled),
		}
		if m.StaleTimeoutUS != nil {
			ctx.CheckStaleness = true
			ctx.StaleTimeoutUS = *m.StaleTimeoutUS
		}
		if m.Range != nil {
			ctx.CheckRange = true
			ctx.MinValue = m.Range.Min
			ctx.MaxValue = m.Range.Max
		}
		if !ctx.CheckStaleness && !ctx.CheckRange && !ctx.CheckStatus {
			return cfg, fmt.Errorf("monitors[%d]: no check configured", i)
		}
		ctx.LimpFactor = engine.NoOverride
		ctx.LimpClampMax = engine.NoOverride
		ctx.LimpClampMin = engine.NoOverride
		if m.Limp != nil {
			ctx.HasLimpAction = true
			ctx.LimpTargetScale = m.Limp.TargetScale
			ctx.RestoreDelayUS = m.Limp.RestoreDelayUS
			if m.Limp.Factor != nil {
				ctx.LimpFactor = *m.Limp.Factor
			}
			if m.Limp.ClampMax != nil {
				ctx.LimpClampMax = *m.Limp.ClampMax
			}
			if m.Limp.ClampMin != nil {
				ctx.LimpClampMin = *m.Limp.ClampMin
			}
		}
		cfg.Monitors = append(cfg.Monitors, ctx)
	}

	for i, p := range ec.PIDs {
		if p.OutputMin >= p.OutputMax {
			return cfg, fmt.Errorf("pids[%d]: output_min must be below output_max", i)
		}
		ctx := engine.PIDContext{
			Setpoint:              p.Setpoint,
			Measurement:           p.Measurement,
			Output:                p.Output,
			Kp:                    p.Kp,
			Ki:                    p.Ki,
			Kd:                    p.Kd,
			OutputMin:             p.OutputMin,
			OutputMax:             p.OutputMax,
			IntegralMin:           p.IntegralMin,
			IntegralMax:           p.IntegralMax,
			Deadband:              p.Deadband,
			SampleTimeUS:          p.SampleTimeUS,
			ResetOnSetpointChange: p.ResetOnSetpointChange,
			Enabled:               enabled(p.Enabled),
		}
		if ctx.IntegralMin == 0 && ctx.IntegralMax == 0 {
			ctx.IntegralMin = -1_000_000
			ctx.IntegralMax = 1_000_000
		}
		cfg.PIDs = append(cfg.PIDs, ctx)
	}

	for _, v := range ec.VerifiedOutputs {
		cfg.Verified = append(cfg.Verified, engine.VerifiedOutputContext{
			Command:          v.Command,
			Feedback:         v.Feedback,
			Output:           v.Output,
			Tolerance:        v.Tolerance,
			VerifyTimeoutUS:  v.VerifyTimeoutUS,
			ContinuousVerify: v.Continuous,
			Enabled:          enabled(v.Enabled),
		})
	}

	for i, p := range ec.Patterns {
		ptype, err := parsePatternType(p.Type)
		if err != nil {
			return cfg, fmt.Errorf("patterns[%d]: %w", i, err)
		}
		if ptype == engine.PatternCustom && (p.PatternLength == 0 || p.PatternLength > 32) {
			return cfg, fmt.Errorf("patterns[%d]: pattern_length %d out of range [1,32]", i, p.PatternLength)
		}
		ctx := engine.PatternContext{
			Pin:           p.Pin,
			ControlSignal: engine.NoControlSignal,
			Type:          ptype,
			PeriodUS:      p.PeriodUS,
			OnTimeUS:      p.OnTimeUS,
			PatternBits:   p.PatternBits,
			PatternLength: p.PatternLength,
			Inverted:      p.Inverted,
			Enabled:       enabled(p.Enabled),
		}
		if p.ControlSignal != nil {
			ctx.ControlSignal = *p.ControlSignal
		}
		if ctx.OnTimeUS == 0 && ptype != engine.PatternStatic {
			ctx.OnTimeUS = ctx.PeriodUS / 2
		}
		cfg.Patterns = append(cfg.Patterns, ctx)
	}

	for i, oc := range ec.OnChangeOutputs {
		otype, err := parseOutputType(oc.Type)
		if err != nil {
			return cfg, fmt.Errorf("on_change_outputs[%d]: %w", i, err)
		}
		cfg.OnChange = append(cfg.OnChange, engine.OnChangeContext{
			Source:        oc.Source,
			Type:          otype,
			TargetID:      oc.TargetID,
			DeviceIndex:   oc.DeviceIndex,
			Flags:         oc.Flags,
			MinIntervalUS: oc.MinIntervalUS,
			Enabled:       enabled(oc.Enabled),
		})
	}

	for i, cy := range ec.CyclicOutputs {
		otype, err := parseOutputType(cy.Type)
		if err != nil {
			return cfg, fmt.Errorf("cyclic_outputs[%d]: %w", i, err)
		}
		if cy.PeriodUS == 0 {
			return cfg, fmt.Errorf("cyclic_outputs[%d]: period_us is required", i)
		}
		cfg.Cyclic = append(cfg.Cyclic, engine.CyclicContext{
			Source:      cy.Source,
			Type:        otype,
			TargetID:    cy.TargetID,
			DeviceIndex: cy.DeviceIndex,
			PeriodUS:    cy.PeriodUS,
			Flags:       cy.Flags,
			Enabled:     enabled(cy.Enabled),
		})
	}

	return cfg, nil
}

func enabled(v *bool) bool {
	return v == nil || *v
}

func parseVoteMethod(s string) (engine.VoteMethod, error) {
	switch s {
	case "", "median":
		return engine.VoteMedian, nil
	case "average":
		return engine.VoteAverage, nil
	case "min":
		return engine.VoteMin, nil
	case "max":
		return engine.VoteMax, nil
	default:
		return 0, fmt.Errorf("unknown vote method %q", s)
	}
}

func parsePatternType(s string) (engine.PatternType, error) {
	switch s {
	case "", "static":
		return engine.PatternStatic, nil
	case "blink":
		return engine.PatternBlink, nil
	case "pwm":
		return engine.PatternPWM, nil
	case "custom":
		return engine.PatternCustom, nil
	default:
		return 0, fmt.Errorf("unknown pattern type %q", s)
	}
}

func parseOutputType(s string) (domain.OutputType, error) {
	switch s {
	case "can":
		return domain.OutputCAN, nil
	case "j1939":
		return domain.OutputJ1939, nil
	case "canopen":
		return domain.OutputCANopen, nil
	case "", "internal":
		return domain.OutputInternal, nil
	default:
		return 0, fmt.Errorf("unknown output type %q", s)
	}
}
