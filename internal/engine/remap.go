package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// processRemaps applies deadzone filtering and optional inversion. A non-Ok
// input short-circuits: its status and raw value are forwarded untouched.
func (e *Engine) processRemaps(now uint64) {
	for i := uint8(0); i < e.numRemaps; i++ {
		remap := &e.remaps[i]
		if !remap.Enabled {
			continue
		}
		if remap.Input >= e.numSignals || remap.Output >= e.numSignals {
			continue
		}

		in := &e.signals[remap.Input]
		out := &e.signals[remap.Output]

		if in.Status != domain.StatusOk {
			out.Value = in.Value
			out.Status = in.Status
			out.Timestamp = now
			out.Updated = true
			continue
		}

		value := in.Value
		if remap.Deadzone > 0 && value >= -remap.Deadzone && value <= remap.Deadzone {
			value = 0
		}
		if remap.Invert {
			value = -value
		}

		out.Value = value
		out.Status = domain.StatusOk
		out.Timestamp = now
		out.Updated = true
	}
}
