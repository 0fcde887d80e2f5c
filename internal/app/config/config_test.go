package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/and-elf/layered-queue-driver-sub000/internal/engine"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  signals:
    - name: pressure_a
      stale_us: 100000
    - name: pressure_out
serial:
  port: /dev/ttyACM0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Runtime.TickPeriod != 10*time.Millisecond {
		t.Fatalf("expected TickPeriod default 10ms, got %s", cfg.Runtime.TickPeriod)
	}
	if cfg.Runtime.QueueCapacity != 1024 {
		t.Fatalf("expected QueueCapacity default 1024, got %d", cfg.Runtime.QueueCapacity)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Recorder.SnapshotTable != "lq_snapshots" {
		t.Fatalf("expected default snapshot table, got %s", cfg.Recorder.SnapshotTable)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("expected serial baud default 115200, got %d", cfg.Serial.Baud)
	}
	if cfg.SignalName(0) != "pressure_a" || cfg.SignalName(5) != "signal_5" {
		t.Fatalf("unexpected signal names: %s %s", cfg.SignalName(0), cfg.SignalName(5))
	}
}

func TestLoadRejectsEmptySignals(t *testing.T) {
	path := writeConfig(t, `
runtime:
  tick_period: 5ms
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing signals")
	}
}

func TestBuildEngineConfig(t *testing.T) {
	path := writeConfig(t, `
engine:
  signals:
    - {name: a, stale_us: 50000}
    - {name: b}
    - {name: merged}
    - {name: scaled}
    - {name: fault}
  merges:
    - inputs: [0, 1]
      output: 2
      method: average
      tolerance: 50
  scales:
    - input: 2
      output: 3
      factor: 2000
      offset: 10
      clamp_max: 5000
  monitors:
    - input: 0
      fault_output: 4
      range: {min: 0, max: 4095}
      level: 2
      wake: true
      limp:
        target_scale: 0
        factor: 500
        restore_delay_us: 1000000
  cyclic_outputs:
    - source: 3
      type: j1939
      target_id: 65265
      period_us: 100000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ecfg, err := cfg.Engine.Build()
	if err != nil {
		t.Fatalf("build engine config: %v", err)
	}

	if len(ecfg.Signals) != 5 || ecfg.Signals[0].StaleUS != 50000 {
		t.Fatalf("unexpected signals: %+v", ecfg.Signals)
	}

	m := ecfg.Merges[0]
	if m.Method != engine.VoteAverage || m.NumInputs != 2 || m.Output != 2 || !m.Enabled {
		t.Fatalf("unexpected merge: %+v", m)
	}

	s := ecfg.Scales[0]
	if s.Factor != 2000 || !s.HasClampMax || s.ClampMax != 5000 || s.HasClampMin {
		t.Fatalf("unexpected scale: %+v", s)
	}

	mon := ecfg.Monitors[0]
	if !mon.CheckRange || mon.MaxValue != 4095 || !mon.WakeEnabled || !mon.HasLimpAction {
		t.Fatalf("unexpected monitor: %+v", mon)
	}
	if mon.LimpFactor != 500 || mon.LimpClampMax != engine.NoOverride || mon.LimpClampMin != engine.NoOverride {
		t.Fatalf("limp overrides not resolved: %+v", mon)
	}

	cy := ecfg.Cyclic[0]
	if cy.TargetID != 65265 || cy.PeriodUS != 100000 {
		t.Fatalf("unexpected cyclic: %+v", cy)
	}

	// The built config must construct a real engine.
	if _, err := engine.New(ecfg); err != nil {
		t.Fatalf("engine new: %v", err)
	}
}

func TestBuildRejectsBadEnums(t *testing.T) {
	ec := EngineConfig{
		Signals: []SignalEntry{{}},
		Merges:  []MergeEntry{{Inputs: []uint8{0}, Method: "plurality"}},
	}
	if _, err := ec.Build(); err == nil {
		t.Fatalf("expected error for unknown vote method")
	}

	ec = EngineConfig{
		Signals:       []SignalEntry{{}},
		CyclicOutputs: []CyclicEntry{{Type: "modbus", PeriodUS: 1000}},
	}
	if _, err := ec.Build(); err == nil {
		t.Fatalf("expected error for unknown output type")
	}

	ec = EngineConfig{
		Signals:  []SignalEntry{{}},
		Monitors: []MonitorEntry{{Input: 0, FaultOutput: 0}},
	}
	if _, err := ec.Build(); err == nil {
		t.Fatalf("expected error for monitor without checks")
	}
}

func TestBuildDisabledEntry(t *testing.T) {
	off := false
	ec := EngineConfig{
		Signals: []SignalEntry{{}, {}},
		Remaps:  []RemapEntry{{Input: 0, Output: 1, Enabled: &off}},
	}
	cfg, err := ec.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Remaps[0].Enabled {
		t.Fatalf("explicitly disabled entry should stay disabled")
	}
}
