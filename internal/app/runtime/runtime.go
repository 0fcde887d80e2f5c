// Package runtime wires the engine, sample sources, and output adapters
// into a running host process: a deadline-driven tick loop, a metrics and
// diagnostics HTTP server, and graceful lifecycle management.
package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/journal"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/observability"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/opcuasrc"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/recorder"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/ring"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/serialsrc"
	"github.com/and-elf/layered-queue-driver-sub000/internal/adapters/wsdispatch"
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/config"
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/registry"
	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/engine"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// Option customizes the dependencies used by the Runtime.
type Option func(*overrides)

type overrides struct {
	collectors []ports.Collector
	dispatcher ports.Dispatcher
	recorder   ports.SnapshotRecorder
	obs        ports.Observability
	digital    ports.DigitalOut
	wake       ports.WakeFunc
	clock      func() uint64
}

// WithCollectors replaces the config-driven sample collectors (simulators,
// CAN bridges, test feeders).
func WithCollectors(cols ...ports.Collector) Option {
	return func(o *overrides) { o.collectors = cols }
}

// WithDispatcher injects a custom output event dispatcher.
func WithDispatcher(d ports.Dispatcher) Option {
	return func(o *overrides) { o.dispatcher = d }
}

// WithRecorder injects a custom snapshot recorder.
func WithRecorder(r ports.SnapshotRecorder) Option {
	return func(o *overrides) { o.recorder = r }
}

// WithObservability plugs in a custom logging/metrics backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

// WithDigitalOut installs the driver behind the patterned output stage.
func WithDigitalOut(d ports.DigitalOut) Option {
	return func(o *overrides) { o.digital = d }
}

// WithWakeFunc installs an additional wake handler invoked after the
// built-in accounting.
func WithWakeFunc(fn ports.WakeFunc) Option {
	return func(o *overrides) { o.wake = fn }
}

// WithClock overrides the microsecond timestamp source. Tests use this to
// drive deterministic ticks.
func WithClock(fn func() uint64) Option {
	return func(o *overrides) { o.clock = fn }
}

// Runtime owns one engine instance and everything around it.
type Runtime struct {
	cfg *config.Config
	obs ports.Observability

	engMu sync.Mutex
	eng   *engine.Engine
	reg   *registry.Registry

	ring       *ring.Ring
	collectors []ports.Collector
	dispatcher ports.Dispatcher
	recorder   ports.SnapshotRecorder
	journal    ports.Journal
	hub        *wsdispatch.Hub
	db         *sql.DB
	clock      func() uint64

	metricsSrv *http.Server
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New builds a runtime from configuration, using the default adapter set:
// serial and OPC UA collectors as configured, a postgres recorder when a
// connection string is present, and a websocket hub when enabled.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.obs
	if obs == nil {
		obs = observability.NewPromObs(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ecfg, err := cfg.Engine.Build()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	eng, err := engine.New(ecfg)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:   cfg,
		obs:   obs,
		eng:   eng,
		ring:  ring.New(cfg.Runtime.QueueCapacity),
		clock: o.clock,
	}
	if r.clock == nil {
		r.clock = func() uint64 { return uint64(time.Now().UnixMicro()) }
	}
	r.reg = registry.New(eng, &r.engMu)

	userWake := o.wake
	eng.SetWakeFunc(func(monitorID uint8, value int32, level domain.FaultLevel) {
		obs.IncCounter("lq_wake_total", 1)
		if userWake != nil {
			userWake(monitorID, value, level)
		}
	})
	if o.digital != nil {
		eng.SetDigitalOut(o.digital)
	}

	if o.collectors != nil {
		r.collectors = o.collectors
	} else {
		if cfg.Serial != nil {
			col, err := serialsrc.NewCollector(*cfg.Serial, r.ring, obs)
			if err != nil {
				return nil, err
			}
			r.collectors = append(r.collectors, col)
		}
		if cfg.OPCUA != nil {
			col, err := opcuasrc.NewCollector(*cfg.OPCUA, r.ring, obs)
			if err != nil {
				return nil, err
			}
			r.collectors = append(r.collectors, col)
		}
	}

	if o.recorder != nil {
		r.recorder = o.recorder
	} else if cfg.Recorder.ConnString != "" {
		db, err := sql.Open("postgres", cfg.Recorder.ConnString)
		if err != nil {
			return nil, err
		}
		r.db = db
		r.recorder = recorder.NewPostgresRecorder(db, cfg.Recorder.SnapshotTable, cfg.Recorder.EventTable)
	}

	if o.dispatcher != nil {
		r.dispatcher = o.dispatcher
	} else if cfg.WebSocket.Enabled {
		r.hub = wsdispatch.NewHub(obs)
		r.dispatcher = r.hub
	}

	if cfg.Journal.Dir != "" {
		j, err := journal.NewFileJournal(cfg.Journal.Dir)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		r.journal = j
	}

	return r, nil
}

// Registry exposes calibration access to the engine parameters.
func (r *Runtime) Registry() *registry.Registry { return r.reg }

// Snapshots returns the current signal table view.
func (r *Runtime) Snapshots() []domain.Snapshot {
	r.engMu.Lock()
	defer r.engMu.Unlock()
	return r.eng.Snapshots(nil)
}

// Start launches the collectors, the tick loop, and the HTTP server. It
// returns immediately; use Run to block on a context.
func (r *Runtime) Start() error {
	if err := r.replayJournal(); err != nil {
		return err
	}

	for _, col := range r.collectors {
		if err := col.Start(); err != nil {
			return err
		}
	}

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.tickLoop()

	r.startHTTP()
	r.obs.LogInfo("runtime started",
		ports.Field{Key: "tick_period", Value: r.cfg.Runtime.TickPeriod.String()},
		ports.Field{Key: "signals", Value: int(r.eng.NumSignals())})
	return nil
}

// Run starts the runtime and blocks until the context is cancelled, then
// shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops collectors, the tick loop, the HTTP server, and the
// recorder connection.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	for _, col := range r.collectors {
		if err := col.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.stopCh != nil {
		close(r.stopCh)
		<-r.doneCh
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.hub != nil {
		r.hub.Close()
	}

	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) tickLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Runtime.TickPeriod)
	defer ticker.Stop()

	batch := make([]domain.RawEvent, 0, 256)
	events := make([]domain.OutputEvent, 0, engine.MaxOutputEvents)
	var lastSnapshot time.Time
	var lastDropped uint64

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
		}

		start := time.Now()
		batch = batch[:0]
		batch = r.ring.Drain(batch, 0)
		now := r.clock()

		r.engMu.Lock()
		r.eng.Step(now, batch)
		r.eng.StepPIDs(now)
		r.eng.StepVerifiedOutputs(now)
		r.eng.StepPatterns(now)
		events = append(events[:0], r.eng.OutputEvents()...)
		dropped := r.eng.DroppedEvents()
		limp := r.eng.LimpActiveCount()
		r.engMu.Unlock()

		r.obs.IncCounter("lq_ticks_total", 1)
		r.obs.SetGauge("lq_source_queue_length", float64(r.ring.Len()))
		r.obs.SetGauge("lq_limp_active", float64(limp))
		if dropped > lastDropped {
			r.obs.IncCounter("lq_output_dropped_total", float64(dropped-lastDropped))
			lastDropped = dropped
		}

		if len(events) > 0 {
			r.obs.IncCounter("lq_output_events_total", float64(len(events)))

			var entryID ports.JournalEntryID
			if r.journal != nil {
				id, err := r.journal.Append(events)
				if err != nil {
					r.obs.LogError("journal append", err)
				} else {
					entryID = id
				}
			}

			delivered := true
			if r.dispatcher != nil {
				if err := r.dispatcher.Dispatch(events); err != nil {
					delivered = false
					r.obs.LogError("dispatch", err,
						ports.Field{Key: "dispatcher", Value: r.dispatcher.Name()})
				}
			}
			if delivered && r.journal != nil && entryID != 0 {
				if err := r.journal.Commit(entryID); err != nil {
					r.obs.LogError("journal commit", err)
				}
			}
			if er, ok := r.recorder.(interface {
				RecordEvents([]domain.OutputEvent) error
			}); ok {
				if err := er.RecordEvents(events); err != nil {
					r.obs.LogError("record events", err)
				}
			}
		}

		if start.Sub(lastSnapshot) >= r.cfg.Runtime.SnapshotPeriod {
			lastSnapshot = start
			r.publishSnapshots()
		}

		r.obs.ObserveLatency("lq_tick_duration_seconds", time.Since(start).Seconds())
	}
}

// replayJournal re-dispatches event batches that were journaled but never
// acknowledged before the last shutdown.
func (r *Runtime) replayJournal() error {
	if r.journal == nil || r.dispatcher == nil {
		return nil
	}

	stats := r.journal.Stats()
	if stats.OldestUncommitted > stats.LatestAppended {
		return nil
	}

	var replayed int
	err := r.journal.Iterate(stats.OldestUncommitted, func(id ports.JournalEntryID, events []domain.OutputEvent) error {
		if err := r.dispatcher.Dispatch(events); err != nil {
			return err
		}
		replayed += len(events)
		return r.journal.Commit(id)
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	if replayed > 0 {
		r.obs.LogInfo("replayed journaled events", ports.Field{Key: "count", Value: replayed})
	}
	return nil
}

func (r *Runtime) publishSnapshots() {
	snaps := r.Snapshots()
	if r.recorder != nil {
		if err := r.recorder.RecordSnapshots(snaps); err != nil {
			r.obs.LogError("record snapshots", err)
		}
	}
	if r.hub != nil {
		if err := r.hub.PublishSnapshots(snaps); err != nil {
			r.obs.LogError("publish snapshots", err)
		}
	}
}

func (r *Runtime) startHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/snapshots", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Snapshots())
	})
	if r.hub != nil {
		mux.Handle("/ws", r.hub)
	}

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("http server exited", err)
		}
	}()
}
