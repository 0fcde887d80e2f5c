package ports

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// SampleSource is the consumer side of the hardware-sample transport. The
// engine drains it with non-blocking pops at the start of every tick; it
// must never block.
type SampleSource interface {
	// TryPop returns the oldest pending sample, or false when empty.
	TryPop() (domain.RawEvent, bool)
	// Len reports the number of samples currently buffered.
	Len() int
}

// EventSink is the producer side of the transport. Push reports false when
// the sink had to evict or reject an event.
type EventSink interface {
	Push(evt domain.RawEvent) bool
}

// Collector feeds raw samples into an EventSink from some piece of
// hardware or field bus. Start returns once the collector is producing.
type Collector interface {
	Start() error
	Stop() error
}
