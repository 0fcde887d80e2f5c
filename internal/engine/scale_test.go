package engine

import (
	"math"
	"testing"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

func scaleEngine(t *testing.T, ctx ScaleContext) *Engine {
	t.Helper()
	return newTestEngine(t, Config{Signals: signals(2), Scales: []ScaleContext{ctx}})
}

func TestScaleFactorAndOffset(t *testing.T) {
	e := scaleEngine(t, ScaleContext{Input: 0, Output: 1, Factor: 2500, Offset: -10, Enabled: true})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: 100, Status: domain.StatusOk, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Value != 240 {
		t.Fatalf("100*2.5-10: expected 240, got %d", sig.Value)
	}
}

func TestScaleNegativeFactorTruncation(t *testing.T) {
	e := scaleEngine(t, ScaleContext{Input: 0, Output: 1, Factor: -1500, Enabled: true})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: 3, Status: domain.StatusOk, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Value != -4 {
		t.Fatalf("3*-1.5 truncates toward zero: expected -4, got %d", sig.Value)
	}
}

func TestScaleClamping(t *testing.T) {
	e := scaleEngine(t, ScaleContext{
		Input: 0, Output: 1, Factor: 1000,
		ClampMin: -100, ClampMax: 100,
		HasClampMin: true, HasClampMax: true,
		Enabled: true,
	})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: 5000, Status: domain.StatusOk, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Value != 100 {
		t.Fatalf("expected clamp to 100, got %d", sig.Value)
	}

	e.Step(200, []domain.RawEvent{{Source: 0, Value: -5000, Status: domain.StatusOk, Timestamp: 200}})
	sig, _ = e.Signal(1)
	if sig.Value != -100 {
		t.Fatalf("expected clamp to -100, got %d", sig.Value)
	}
}

func TestScaleSaturatesBeforeClamp(t *testing.T) {
	// The 64-bit intermediate overflows int32; without clamps the result
	// lands on the saturation bound instead of wrapping.
	e := scaleEngine(t, ScaleContext{Input: 0, Output: 1, Factor: 2000000, Enabled: true})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: math.MaxInt32, Status: domain.StatusOk, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Value != math.MaxInt32 {
		t.Fatalf("expected saturation to MaxInt32, got %d", sig.Value)
	}

	e.Step(200, []domain.RawEvent{{Source: 0, Value: math.MinInt32, Status: domain.StatusOk, Timestamp: 200}})
	sig, _ = e.Signal(1)
	if sig.Value != math.MinInt32 {
		t.Fatalf("expected saturation to MinInt32, got %d", sig.Value)
	}
}

func TestScaleForwardsNonOkStatus(t *testing.T) {
	e := scaleEngine(t, ScaleContext{Input: 0, Output: 1, Factor: 2000, Enabled: true})

	e.Step(100, []domain.RawEvent{{Source: 0, Value: 33, Status: domain.StatusTimeout, Timestamp: 100}})
	sig, _ := e.Signal(1)
	if sig.Status != domain.StatusTimeout || sig.Value != 33 {
		t.Fatalf("non-Ok input must forward value and status, got %+v", sig)
	}
}
