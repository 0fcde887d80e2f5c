package ring

import (
	"sync"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// Ring is a bounded FIFO of raw sample events shared between collector
// goroutines and the tick loop. When full, the oldest event is discarded
// so the buffer always holds the freshest window of samples.
type Ring struct {
	mu      sync.Mutex
	data    []domain.RawEvent
	head    int
	count   int
	dropped uint64
}

func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{data: make([]domain.RawEvent, capacity)}
}

// Push appends an event, evicting the oldest entry when the buffer is
// full. Returns false when an eviction happened.
func (r *Ring) Push(evt domain.RawEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.data) {
		r.data[r.head] = evt
		r.head = (r.head + 1) % len(r.data)
		r.dropped++
		return false
	}
	r.data[(r.head+r.count)%len(r.data)] = evt
	r.count++
	return true
}

// TryPop removes and returns the oldest event.
func (r *Ring) TryPop() (domain.RawEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return domain.RawEvent{}, false
	}
	evt := r.data[r.head]
	r.head = (r.head + 1) % len(r.data)
	r.count--
	return evt, true
}

// Drain appends up to max pending events to dst and returns it. A max of
// zero or less drains everything.
func (r *Ring) Drain(dst []domain.RawEvent, max int) []domain.RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if max > 0 && max < n {
		n = max
	}
	for i := 0; i < n; i++ {
		dst = append(dst, r.data[r.head])
		r.head = (r.head + 1) % len(r.data)
		r.count--
	}
	return dst
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped reports how many events were evicted since creation.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

var _ ports.SampleSource = (*Ring)(nil)
