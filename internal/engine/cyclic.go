package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// processOnChange emits an output event for every source signal whose value
// changed during this tick, subject to the per-entry rate limit.
func (e *Engine) processOnChange(now uint64) {
	for i := uint8(0); i < e.numOnChange; i++ {
		oc := &e.onChange[i]
		if !oc.Enabled || oc.Source >= e.numSignals {
			continue
		}
		sig := &e.signals[oc.Source]
		if !sig.Updated {
			continue
		}
		if oc.MinIntervalUS > 0 && oc.emitted && now-oc.lastEmitUS < oc.MinIntervalUS {
			continue
		}
		ok := e.emit(domain.OutputEvent{
			Type:        oc.Type,
			TargetID:    oc.TargetID,
			DeviceIndex: oc.DeviceIndex,
			Value:       sig.Value,
			Flags:       oc.Flags,
			Timestamp:   now,
		})
		if !ok {
			continue
		}
		oc.lastEmitUS = now
		oc.emitted = true
	}
}

// processCyclic emits output events for every cyclic entry whose deadline
// has passed. Deadlines advance by the fixed period rather than from now,
// so the schedule does not drift with tick jitter. At most one event per
// entry is produced per tick; a late entry catches up one period at a time
// instead of bursting.
func (e *Engine) processCyclic(now uint64) {
	for i := uint8(0); i < e.numCyclic; i++ {
		c := &e.cyclic[i]
		if !c.Enabled || c.Source >= e.numSignals || now < c.NextDeadline {
			continue
		}
		sig := &e.signals[c.Source]
		ok := e.emit(domain.OutputEvent{
			Type:        c.Type,
			TargetID:    c.TargetID,
			DeviceIndex: c.DeviceIndex,
			Value:       sig.Value,
			Flags:       c.Flags,
			Timestamp:   now,
		})
		if !ok {
			// Buffer full; keep the deadline so the emission retries
			// next tick.
			continue
		}
		c.NextDeadline += c.PeriodUS
	}
}
