package engine

import (
	"testing"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

func remapEngine(t *testing.T, ctx RemapContext) *Engine {
	t.Helper()
	return newTestEngine(t, Config{Signals: signals(2), Remaps: []RemapContext{ctx}})
}

func TestRemapDeadzoneInclusive(t *testing.T) {
	e := remapEngine(t, RemapContext{Input: 0, Output: 1, Deadzone: 10, Enabled: true})

	cases := []struct {
		in, want int32
	}{
		{0, 0},
		{10, 0},
		{-10, 0},
		{11, 11},
		{-11, -11},
		{500, 500},
	}
	for _, tc := range cases {
		e.Step(100, []domain.RawEvent{{Source: 0, Value: tc.in, Status: domain.StatusOk, Timestamp: 100}})
		sig, _ := e.Signal(1)
		if sig.Value != tc.want {
			t.Fatalf("deadzone(%d): expected %d, got %d", tc.in, tc.want, sig.Value)
		}
	}
}

func TestRemapInvertAfterDeadzone(t *testing.T) {
	e := remapEngine(t, RemapContext{Input: 0, Output: 1, Deadzone: 10, Invert: true, Enabled: true})

	// Inside the deadzone the inverted value is still zero.
	e.Step(100, []domain.RawEvent{{Source: 0, Value: 10, Status: domain.StatusOk, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Value != 0 {
		t.Fatalf("deadzone should apply before inversion, got %d", sig.Value)
	}

	e.Step(200, []domain.RawEvent{{Source: 0, Value: 50, Status: domain.StatusOk, Timestamp: 200}})
	sig, _ = e.Signal(1)
	if sig.Value != -50 {
		t.Fatalf("expected inverted -50, got %d", sig.Value)
	}
}

func TestRemapForwardsNonOkStatus(t *testing.T) {
	e := remapEngine(t, RemapContext{Input: 0, Output: 1, Deadzone: 10, Invert: true, Enabled: true})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: 7, Status: domain.StatusError, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Status != domain.StatusError {
		t.Fatalf("non-Ok status must propagate, got %s", sig.Status)
	}
	if sig.Value != 7 {
		t.Fatalf("non-Ok value must pass through untransformed, got %d", sig.Value)
	}
}
