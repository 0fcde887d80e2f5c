package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// faultStatus reports whether a signal status counts as a fault condition
// for status-checking monitors.
func faultStatus(s domain.Status) bool {
	return s == domain.StatusError || s == domain.StatusInconsistent || s == domain.StatusOutOfRange
}

// processMonitors evaluates every fault monitor against the processed
// signal table: staleness, range, and status conditions escalate the
// monitor to its Active state, drive the severity output signal, and apply
// the optional limp-home scale degradation.
//
// Leaving the Active state requires the fault condition to stay absent for
// a continuous RestoreDelayUS; the clear timestamp is refreshed on every
// tick the condition still holds.
func (e *Engine) processMonitors(now uint64) {
	for i := uint8(0); i < e.numMonitors; i++ {
		mon := &e.monitors[i]
		if !mon.Enabled || mon.Input >= e.numSignals {
			continue
		}
		sig := &e.signals[mon.Input]

		fault := false
		rangeTrip := false
		if mon.CheckStaleness && now > sig.Timestamp && now-sig.Timestamp > mon.StaleTimeoutUS {
			fault = true
		}
		if mon.CheckRange && (sig.Value < mon.MinValue || sig.Value > mon.MaxValue) {
			fault = true
			rangeTrip = true
		}
		if mon.CheckStatus && faultStatus(sig.Status) {
			fault = true
		}

		switch {
		case fault:
			if !mon.active {
				mon.active = true
				if mon.HasLimpAction {
					e.enterLimp(mon)
				}
				// Range faults on raw inputs already woke the callback
				// during ingestion; only ingestion-invisible faults
				// (staleness, status from merge/voting) wake here.
				if e.wake != nil && mon.WakeEnabled && !rangeTrip {
					e.wake(i, sig.Value, mon.Level)
				}
			}
			mon.faultClearAtUS = now

		case mon.active:
			if now-mon.faultClearAtUS >= mon.RestoreDelayUS {
				if mon.LimpActive {
					e.exitLimp(mon)
				}
				mon.active = false
			}

		default:
			mon.faultClearAtUS = now
		}

		if mon.FaultOutput >= e.numSignals {
			continue
		}
		out := &e.signals[mon.FaultOutput]
		level := int32(0)
		if mon.active {
			level = int32(mon.Level)
		}
		// The severity level is data; the monitor's own output is healthy.
		out.Updated = out.Value != level
		out.Value = level
		out.Status = domain.StatusOk
		out.Timestamp = now
	}
}

// enterLimp captures the target scale's current parameters and applies the
// monitor's overrides. Called exactly once per Normal->Active transition;
// the saved baseline is never overwritten while limp mode is active.
func (e *Engine) enterLimp(mon *FaultMonitorContext) {
	if mon.LimpTargetScale >= e.numScales {
		return
	}
	sc := &e.scales[mon.LimpTargetScale]

	mon.savedFactor = sc.Factor
	mon.savedClampMax = sc.ClampMax
	mon.savedClampMin = sc.ClampMin
	mon.savedHasClampMin = sc.HasClampMin
	mon.savedHasClampMax = sc.HasClampMax

	if mon.LimpFactor != NoOverride {
		sc.Factor = mon.LimpFactor
	}
	if mon.LimpClampMax != NoOverride {
		sc.ClampMax = mon.LimpClampMax
		sc.HasClampMax = true
	}
	if mon.LimpClampMin != NoOverride {
		sc.ClampMin = mon.LimpClampMin
		sc.HasClampMin = true
	}

	mon.LimpActive = true
}

// exitLimp writes the saved baseline back to the target scale.
func (e *Engine) exitLimp(mon *FaultMonitorContext) {
	if mon.LimpTargetScale < e.numScales {
		sc := &e.scales[mon.LimpTargetScale]
		sc.Factor = mon.savedFactor
		sc.ClampMax = mon.savedClampMax
		sc.ClampMin = mon.savedClampMin
		sc.HasClampMin = mon.savedHasClampMin
		sc.HasClampMax = mon.savedHasClampMax
	}
	mon.LimpActive = false
}

// MonitorActive reports whether the monitor at idx is currently in its
// Active (fault present) state.
func (e *Engine) MonitorActive(idx uint8) bool {
	if idx >= e.numMonitors {
		return false
	}
	return e.monitors[idx].active
}

// LimpActiveCount reports how many monitors currently hold degraded scale
// parameters. Exposed for the observability layer.
func (e *Engine) LimpActiveCount() int {
	n := 0
	for i := uint8(0); i < e.numMonitors; i++ {
		if e.monitors[i].LimpActive {
			n++
		}
	}
	return n
}
