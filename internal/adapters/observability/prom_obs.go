package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// PromObs implements ports.Observability with structured logging via slog
// and Prometheus metrics for the tick loop and adapters.
type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs(log *slog.Logger) *PromObs {
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_ticks_total",
		Help: "Engine ticks executed.",
	})
	outputs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_output_events_total",
		Help: "Output events dispatched to protocol targets.",
	})
	outputDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_output_dropped_total",
		Help: "Output events lost to per-tick buffer exhaustion.",
	})
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_source_evictions_total",
		Help: "Raw sample events evicted from the source ring.",
	})
	decodeErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_serial_decode_errors_total",
		Help: "Malformed frames on the serial sample link.",
	})
	wakes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lq_wake_total",
		Help: "Wake callbacks fired by fault monitors.",
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lq_source_queue_length",
		Help: "Raw sample events buffered ahead of the tick loop.",
	})
	limpActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lq_limp_active",
		Help: "Fault monitors currently holding degraded scale parameters.",
	})
	tickDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lq_tick_duration_seconds",
		Help:    "Wall time of one engine tick including dispatch.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
	})

	prometheus.MustRegister(ticks, outputs, outputDrops, evictions, decodeErrs, wakes, queueLen, limpActive, tickDur)

	if log == nil {
		log = slog.Default()
	}

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			"lq_ticks_total":                ticks,
			"lq_output_events_total":        outputs,
			"lq_output_dropped_total":       outputDrops,
			"lq_source_evictions_total":     evictions,
			"lq_serial_decode_errors_total": decodeErrs,
			"lq_wake_total":                 wakes,
		},
		gauges: map[string]prometheus.Gauge{
			"lq_source_queue_length": queueLen,
			"lq_limp_active":         limpActive,
		},
		histos: map[string]prometheus.Observer{
			"lq_tick_duration_seconds": tickDur,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.Any("err", err))
	}
	p.log.Error(msg, args...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
