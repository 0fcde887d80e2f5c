package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and-elf/layered-queue-driver-sub000/internal/app/config"
	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)         {}
func (nopObs) LogError(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)             {}
func (nopObs) SetGauge(string, float64)               {}
func (nopObs) ObserveLatency(string, float64)         {}

type captureDispatcher struct {
	mu     sync.Mutex
	events []domain.OutputEvent
}

func (c *captureDispatcher) Name() string { return "capture" }

func (c *captureDispatcher) Dispatch(events []domain.OutputEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			Signals: []config.SignalEntry{{Name: "in"}, {Name: "out"}},
			Scales: []config.ScaleEntry{
				{Input: 0, Output: 1, Factor: 2000},
			},
			CyclicOutputs: []config.CyclicEntry{
				{Source: 1, Type: "can", TargetID: 0x100, PeriodUS: 1000},
			},
		},
		Runtime: config.RuntimeConfig{
			TickPeriod:     time.Millisecond,
			QueueCapacity:  64,
			SnapshotPeriod: time.Hour,
		},
		Metrics: config.MetricsConfig{Addr: "127.0.0.1:0"},
	}
}

func TestRuntimeTicksAndDispatches(t *testing.T) {
	disp := &captureDispatcher{}
	rt, err := New(testConfig(),
		WithObservability(nopObs{}),
		WithCollectors(),
		WithDispatcher(disp),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	if err := rt.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := rt.Shutdown(ctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	rt.ring.Push(domain.RawEvent{Source: 0, Value: 21, Status: domain.StatusOk, Timestamp: rt.clock()})

	deadline := time.Now().Add(2 * time.Second)
	for rt.Snapshots()[1].Value != 42 {
		if time.Now().After(deadline) {
			t.Fatalf("scaled output never reached 42, got %d", rt.Snapshots()[1].Value)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if disp.count() == 0 {
		t.Fatalf("expected cyclic events dispatched")
	}
}

func TestRuntimeRegistryUpdatesApplyBetweenTicks(t *testing.T) {
	rt, err := New(testConfig(), WithObservability(nopObs{}), WithCollectors())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	reg := rt.Registry()
	reg.EnterCalibration()
	ctx, err := reg.Scale(0)
	if err != nil {
		t.Fatalf("scale read: %v", err)
	}
	ctx.Factor = 3000
	if err := reg.UpdateScale(0, ctx); err != nil {
		t.Fatalf("scale update: %v", err)
	}
	reg.ExitCalibration()

	got, _ := reg.Scale(0)
	if got.Factor != 3000 {
		t.Fatalf("expected updated factor, got %d", got.Factor)
	}
}
