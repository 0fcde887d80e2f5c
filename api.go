package lqd

import (
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/config"
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/registry"
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/runtime"
	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/engine"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// Re-exported errors for convenience.
var (
	ErrNotCalibrating = registry.ErrNotCalibrating
	ErrBadIndex       = registry.ErrBadIndex
)

// Type aliases so consumers can import the module root directly.
type (
	Config       = config.Config
	EngineConfig = config.EngineConfig
	Runtime      = runtime.Runtime
	Option       = runtime.Option
	Registry     = registry.Registry

	Engine        = engine.Engine
	ScaleContext  = engine.ScaleContext
	RemapContext  = engine.RemapContext
	VoteMethod    = engine.VoteMethod
	PatternType   = engine.PatternType
	RawEvent      = domain.RawEvent
	OutputEvent   = domain.OutputEvent
	Signal        = domain.Signal
	Snapshot      = domain.Snapshot
	Status        = domain.Status
	FaultLevel    = domain.FaultLevel
	Collector     = ports.Collector
	Dispatcher    = ports.Dispatcher
	DigitalOut    = ports.DigitalOut
	Observability = ports.Observability
	WakeFunc      = ports.WakeFunc
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Runtime constructor and options.
func New(cfg *Config, opts ...Option) (*Runtime, error) {
	return runtime.New(cfg, opts...)
}

func WithCollectors(cols ...Collector) Option {
	return runtime.WithCollectors(cols...)
}

func WithDispatcher(d Dispatcher) Option {
	return runtime.WithDispatcher(d)
}

func WithObservability(obs Observability) Option {
	return runtime.WithObservability(obs)
}

func WithDigitalOut(d DigitalOut) Option {
	return runtime.WithDigitalOut(d)
}

func WithWakeFunc(fn WakeFunc) Option {
	return runtime.WithWakeFunc(fn)
}

func WithClock(fn func() uint64) Option {
	return runtime.WithClock(fn)
}
