package engine

import "testing"

// fakeDigitalOut records pin writes for assertions.
type fakeDigitalOut struct {
	states map[uint8]bool
	writes int
}

func newFakeDigitalOut() *fakeDigitalOut {
	return &fakeDigitalOut{states: make(map[uint8]bool)}
}

func (f *fakeDigitalOut) Set(pin uint8, high bool) {
	f.states[pin] = high
	f.writes++
}

func patternEngine(t *testing.T, ctx PatternContext) (*Engine, *fakeDigitalOut) {
	t.Helper()
	e := newTestEngine(t, Config{Signals: signals(2), Patterns: []PatternContext{ctx}})
	out := newFakeDigitalOut()
	e.SetDigitalOut(out)
	return e, out
}

func TestPatternStaticHigh(t *testing.T) {
	e, out := patternEngine(t, PatternContext{
		Pin:           3,
		ControlSignal: NoControlSignal,
		Type:          PatternStatic,
		Enabled:       true,
	})

	e.StepPatterns(0)
	if !out.states[3] {
		t.Fatalf("static pattern should drive the pin high")
	}
}

func TestPatternBlinkToggles(t *testing.T) {
	e, out := patternEngine(t, PatternContext{
		Pin:           1,
		ControlSignal: NoControlSignal,
		Type:          PatternBlink,
		PeriodUS:      1000,
		OnTimeUS:      500,
		Enabled:       true,
	})

	e.StepPatterns(0)
	if !out.states[1] {
		t.Fatalf("phase 0 should be high")
	}

	e.StepPatterns(600)
	if out.states[1] {
		t.Fatalf("phase 600 of 1000 should be low")
	}

	e.StepPatterns(1100)
	if !out.states[1] {
		t.Fatalf("phase wraps to 100, should be high again")
	}
}

func TestPatternWritesOnlyOnChange(t *testing.T) {
	e, out := patternEngine(t, PatternContext{
		Pin:           1,
		ControlSignal: NoControlSignal,
		Type:          PatternBlink,
		PeriodUS:      1000,
		OnTimeUS:      500,
		Enabled:       true,
	})

	e.StepPatterns(0)
	e.StepPatterns(100)
	e.StepPatterns(200)
	if out.writes != 1 {
		t.Fatalf("unchanged state must not rewrite the pin, got %d writes", out.writes)
	}
}

func TestPatternInverted(t *testing.T) {
	e, out := patternEngine(t, PatternContext{
		Pin:           1,
		ControlSignal: NoControlSignal,
		Type:          PatternStatic,
		Inverted:      true,
		Enabled:       true,
	})

	e.StepPatterns(0)
	if out.states[1] {
		t.Fatalf("inverted static pattern should drive the pin low")
	}
}

func TestPatternControlSignalGates(t *testing.T) {
	e, out := patternEngine(t, PatternContext{
		Pin:           1,
		ControlSignal: 0,
		Type:          PatternStatic,
		Enabled:       true,
	})

	// Control signal at zero: pattern held off.
	e.StepPatterns(0)
	if out.writes != 0 {
		t.Fatalf("gated pattern should not write, got %d writes", out.writes)
	}

	e.SetSignal(0, 1, 100)
	e.StepPatterns(100)
	if !out.states[1] {
		t.Fatalf("enabled control signal should start the pattern")
	}

	// Back to zero drives the pin to its off level once.
	e.SetSignal(0, 0, 200)
	e.StepPatterns(200)
	if out.states[1] {
		t.Fatalf("cleared control signal should turn the pin off")
	}
}

func TestPatternCustomSequence(t *testing.T) {
	// Bits 0b101: on, off, on, repeating once per period.
	e, out := patternEngine(t, PatternContext{
		Pin:           1,
		ControlSignal: NoControlSignal,
		Type:          PatternCustom,
		PeriodUS:      1000,
		PatternBits:   0b101,
		PatternLength: 3,
		Enabled:       true,
	})

	e.StepPatterns(0)
	if !out.states[1] {
		t.Fatalf("bit 0 should be high")
	}

	e.StepPatterns(1000)
	if out.states[1] {
		t.Fatalf("bit 1 should be low")
	}

	e.StepPatterns(2000)
	if !out.states[1] {
		t.Fatalf("bit 2 should be high")
	}

	e.StepPatterns(3000)
	if !out.states[1] {
		t.Fatalf("sequence should wrap to bit 0")
	}
}
