package engine

import (
	"testing"
)

func pidEngine(t *testing.T, ctx PIDContext) *Engine {
	t.Helper()
	return newTestEngine(t, Config{Signals: signals(3), PIDs: []PIDContext{ctx}})
}

func basePID() PIDContext {
	return PIDContext{
		Setpoint:    0,
		Measurement: 1,
		Output:      2,
		OutputMin:   -10000,
		OutputMax:   10000,
		IntegralMin: -1000000,
		IntegralMax: 1000000,
		Enabled:     true,
	}
}

func TestPIDFirstRunPrimesOnly(t *testing.T) {
	ctx := basePID()
	ctx.Kp = 1000
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)

	e.StepPIDs(0)
	sig, _ := e.Signal(2)
	if sig.Value != 0 || sig.Updated {
		t.Fatalf("first run must not produce output, got %+v", sig)
	}

	e.StepPIDs(10000)
	sig, _ = e.Signal(2)
	if sig.Value != 100 {
		t.Fatalf("Kp=1.0 error=100: expected 100, got %d", sig.Value)
	}
}

func TestPIDProportionalOnly(t *testing.T) {
	ctx := basePID()
	ctx.Kp = 2500
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 60, 0)
	e.StepPIDs(0)
	e.StepPIDs(10000)

	sig, _ := e.Signal(2)
	if sig.Value != 100 {
		t.Fatalf("Kp=2.5 error=40: expected 100, got %d", sig.Value)
	}
}

func TestPIDIntegralAccumulation(t *testing.T) {
	ctx := basePID()
	ctx.Ki = 1000
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)

	e.StepPIDs(0)
	// One second per step, error 100: integral grows by 100 each step.
	e.StepPIDs(1_000_000)
	sig, _ := e.Signal(2)
	if sig.Value != 100 {
		t.Fatalf("after 1s: expected 100, got %d", sig.Value)
	}

	e.StepPIDs(2_000_000)
	sig, _ = e.Signal(2)
	if sig.Value != 200 {
		t.Fatalf("after 2s: expected 200, got %d", sig.Value)
	}
}

func TestPIDIntegralAntiWindup(t *testing.T) {
	ctx := basePID()
	ctx.Ki = 1000
	ctx.IntegralMax = 150
	ctx.IntegralMin = -150
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)

	e.StepPIDs(0)
	for i := uint64(1); i <= 5; i++ {
		e.StepPIDs(i * 1_000_000)
	}

	sig, _ := e.Signal(2)
	if sig.Value != 150 {
		t.Fatalf("integral clamp 150: expected 150, got %d", sig.Value)
	}
}

func TestPIDDeadbandGatesIntegral(t *testing.T) {
	ctx := basePID()
	ctx.Kp = 1000
	ctx.Ki = 1000
	ctx.Deadband = 10
	e := pidEngine(t, ctx)

	e.SetSignal(0, 10, 0)
	e.SetSignal(1, 0, 0)

	e.StepPIDs(0)
	e.StepPIDs(1_000_000)
	e.StepPIDs(2_000_000)

	// Error 10 is within the deadband: no integral term, only P.
	sig, _ := e.Signal(2)
	if sig.Value != 10 {
		t.Fatalf("deadband should suppress integral, expected 10, got %d", sig.Value)
	}
}

func TestPIDDerivative(t *testing.T) {
	ctx := basePID()
	ctx.Kd = 1000
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 100, 0)
	e.StepPIDs(0)

	// Error jumps from 0 to 50 over 100ms: derivative 500/s.
	e.SetSignal(1, 50, 100_000)
	e.StepPIDs(100_000)

	sig, _ := e.Signal(2)
	if sig.Value != 500 {
		t.Fatalf("Kd=1.0 d(err)/dt=500/s: expected 500, got %d", sig.Value)
	}
}

func TestPIDResetOnSetpointChange(t *testing.T) {
	ctx := basePID()
	ctx.Ki = 1000
	ctx.ResetOnSetpointChange = true
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)
	e.StepPIDs(0)
	e.StepPIDs(1_000_000)
	e.StepPIDs(2_000_000)

	// New setpoint discards the accumulated integral; the next step
	// integrates from zero.
	e.SetSignal(0, 50, 2_000_000)
	e.StepPIDs(3_000_000)

	sig, _ := e.Signal(2)
	if sig.Value != 50 {
		t.Fatalf("integral should restart after setpoint change, expected 50, got %d", sig.Value)
	}
}

func TestPIDZeroDeltaIsNoOp(t *testing.T) {
	ctx := basePID()
	ctx.Kp = 1000
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)
	e.StepPIDs(0)
	e.StepPIDs(10000)

	sig, _ := e.Signal(2)
	before := sig.Value

	// Same timestamp again: no division by zero, no state change.
	e.StepPIDs(10000)
	sig, _ = e.Signal(2)
	if sig.Value != before {
		t.Fatalf("zero dt must not change output, got %d", sig.Value)
	}
}

func TestPIDOutputClamped(t *testing.T) {
	ctx := basePID()
	ctx.Kp = 100000
	ctx.OutputMax = 255
	ctx.OutputMin = 0
	e := pidEngine(t, ctx)

	e.SetSignal(0, 1000, 0)
	e.SetSignal(1, 0, 0)
	e.StepPIDs(0)
	e.StepPIDs(10000)

	sig, _ := e.Signal(2)
	if sig.Value != 255 {
		t.Fatalf("output clamp: expected 255, got %d", sig.Value)
	}

	e.SetSignal(1, 5000, 10000)
	e.StepPIDs(20000)
	sig, _ = e.Signal(2)
	if sig.Value != 0 {
		t.Fatalf("output clamp: expected 0, got %d", sig.Value)
	}
}

func TestPIDFixedSampleTime(t *testing.T) {
	ctx := basePID()
	ctx.Ki = 1000
	ctx.SampleTimeUS = 1_000_000
	e := pidEngine(t, ctx)

	e.SetSignal(0, 100, 0)
	e.SetSignal(1, 0, 0)
	e.StepPIDs(0)

	// Wall-clock delta is irrelevant with a fixed sample time.
	e.StepPIDs(1)
	sig, _ := e.Signal(2)
	if sig.Value != 100 {
		t.Fatalf("fixed 1s sample: expected 100, got %d", sig.Value)
	}
}
