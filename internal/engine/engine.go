// Package engine implements the signal-conditioning core: a fixed-capacity
// signal table and the ordered per-tick pipeline that turns raw hardware
// samples into validated, degradation-aware signals.
//
// The engine performs no I/O, no allocation after construction, and no
// locking. One Step call runs the fixed phase sequence to completion;
// callers guarantee Step and the independently invoked stage methods
// (StepPIDs, StepVerifiedOutputs, StepPatterns) are never called
// concurrently against the same instance.
package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// Step executes one engine tick: ingest raw events, apply staleness
// detection, run remaps, merges, fault monitors with limp-home, scales,
// then the on-change and cyclic output phases. Each phase observes signal
// state exactly as left by the phases before it.
//
// The output event buffer and per-signal change flags are reset at the
// start of every tick; callers drain OutputEvents after Step returns.
func (e *Engine) Step(now uint64, events []domain.RawEvent) {
	e.outCount = 0
	for i := uint8(0); i < e.numSignals; i++ {
		e.signals[i].Updated = false
	}

	e.ingestEvents(events)
	e.applyStaleness(now)
	e.processRemaps(now)
	e.processMerges(now)
	e.processMonitors(now)
	e.processScales(now)
	e.processOnChange(now)
	e.processCyclic(now)
}

// ingestEvents copies incoming raw events into the signal table and runs
// the raw-value fast path: monitors with range checking enabled are
// evaluated against the unprocessed value so the wake callback fires with
// the lowest possible latency, before staleness, merging, or scaling.
func (e *Engine) ingestEvents(events []domain.RawEvent) {
	for i := range events {
		evt := &events[i]
		if evt.Source >= e.numSignals {
			continue
		}

		sig := &e.signals[evt.Source]
		sig.Updated = sig.Value != evt.Value
		sig.Value = evt.Value
		sig.Status = evt.Status
		sig.Timestamp = evt.Timestamp

		e.rawWakeCheck(evt)
	}
}

// rawWakeCheck fires the wake callback for every enabled range-checking
// monitor watching the event's source signal, using the raw value.
func (e *Engine) rawWakeCheck(evt *domain.RawEvent) {
	if e.wake == nil {
		return
	}
	for i := uint8(0); i < e.numMonitors; i++ {
		mon := &e.monitors[i]
		if !mon.Enabled || !mon.WakeEnabled || !mon.CheckRange {
			continue
		}
		if mon.Input != evt.Source {
			continue
		}
		if evt.Value < mon.MinValue || evt.Value > mon.MaxValue {
			e.wake(i, evt.Value, mon.Level)
		}
	}
}

// applyStaleness forces Timeout status onto any signal whose age exceeds
// its configured staleness timeout.
func (e *Engine) applyStaleness(now uint64) {
	for i := uint8(0); i < e.numSignals; i++ {
		sig := &e.signals[i]
		if sig.StaleUS == 0 {
			continue
		}
		if now > sig.Timestamp && now-sig.Timestamp > sig.StaleUS {
			sig.Status = domain.StatusTimeout
			sig.Updated = true
		}
	}
}
