package engine

import (
	"math"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

// processScales applies the linear transform with 64-bit headroom. The
// intermediate is saturated to the int32 range before clamping, so extreme
// inputs land on the saturation bound rather than wrapping. A non-Ok input
// is forwarded unscaled.
func (e *Engine) processScales(now uint64) {
	for i := uint8(0); i < e.numScales; i++ {
		scale := &e.scales[i]
		if !scale.Enabled {
			continue
		}
		if scale.Input >= e.numSignals || scale.Output >= e.numSignals {
			continue
		}

		in := &e.signals[scale.Input]
		out := &e.signals[scale.Output]

		if in.Status != domain.StatusOk {
			out.Value = in.Value
			out.Status = in.Status
			out.Timestamp = now
			out.Updated = true
			continue
		}

		tmp := int64(in.Value) * int64(scale.Factor)
		tmp /= 1000
		tmp += int64(scale.Offset)

		value := saturate32(tmp)
		if scale.HasClampMin && value < scale.ClampMin {
			value = scale.ClampMin
		}
		if scale.HasClampMax && value > scale.ClampMax {
			value = scale.ClampMax
		}

		out.Value = value
		out.Status = domain.StatusOk
		out.Timestamp = now
		out.Updated = true
	}
}

func saturate32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
