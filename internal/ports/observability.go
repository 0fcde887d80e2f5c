package ports

// Observability is the runtime's logging and metrics boundary. The engine
// core does not log; the host loop and adapters report through this.
type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
	ObserveLatency(name string, seconds float64)
}

type Field struct {
	Key   string
	Value any
}
