package ring

import (
	"testing"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

func TestRingPushPopOrder(t *testing.T) {
	r := New(4)

	if !r.Push(domain.RawEvent{Source: 0, Value: 1}) || !r.Push(domain.RawEvent{Source: 1, Value: 2}) {
		t.Fatalf("expected push within capacity to succeed")
	}

	evt, ok := r.TryPop()
	if !ok || evt.Value != 1 {
		t.Fatalf("unexpected first event: %+v", evt)
	}
	evt, ok = r.TryPop()
	if !ok || evt.Value != 2 {
		t.Fatalf("unexpected second event: %+v", evt)
	}
	if _, ok := r.TryPop(); ok {
		t.Fatalf("pop from empty ring should fail")
	}
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := New(2)

	r.Push(domain.RawEvent{Value: 1})
	r.Push(domain.RawEvent{Value: 2})
	if r.Push(domain.RawEvent{Value: 3}) {
		t.Fatalf("push into full ring should report eviction")
	}

	evt, _ := r.TryPop()
	if evt.Value != 2 {
		t.Fatalf("oldest event should have been evicted, got %d", evt.Value)
	}
	if r.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", r.Dropped())
	}
}

func TestRingDrain(t *testing.T) {
	r := New(8)
	for i := int32(0); i < 5; i++ {
		r.Push(domain.RawEvent{Value: i})
	}

	batch := r.Drain(nil, 3)
	if len(batch) != 3 || batch[0].Value != 0 || batch[2].Value != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	rest := r.Drain(nil, 0)
	if len(rest) != 2 || rest[0].Value != 3 {
		t.Fatalf("unexpected remainder: %+v", rest)
	}
	if r.Len() != 0 {
		t.Fatalf("ring should be empty, got %d", r.Len())
	}
}
