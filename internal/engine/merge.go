package engine

import (
	"sort"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

// processMerges runs the voting stage. For every enabled merge the subset
// of inputs currently in Ok status is combined with the configured method;
// the numeric result is always written, the output status communicates
// confidence.
func (e *Engine) processMerges(now uint64) {
	for i := uint8(0); i < e.numMerges; i++ {
		merge := &e.merges[i]
		if !merge.Enabled || merge.Output >= e.numSignals {
			continue
		}

		var values [8]int32
		valid := 0
		considered := 0
		for j := uint8(0); j < merge.NumInputs && j < 8; j++ {
			idx := merge.Inputs[j]
			if idx >= e.numSignals {
				continue
			}
			considered++
			sig := &e.signals[idx]
			if sig.Status == domain.StatusOk {
				values[valid] = sig.Value
				valid++
			}
		}

		out := &e.signals[merge.Output]
		if valid == 0 {
			out.Status = domain.StatusError
			out.Timestamp = now
			out.Updated = true
			continue
		}

		result := vote(values[:valid], merge.Method)

		status := domain.StatusOk
		if valid < considered {
			// Some redundant inputs were dropped for non-Ok status.
			status = domain.StatusTimeout
		}
		if valid > 1 && merge.Tolerance > 0 {
			minV, maxV := values[0], values[0]
			for _, v := range values[1:valid] {
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
			if uint32(maxV-minV) > merge.Tolerance {
				status = domain.StatusInconsistent
			}
		}

		out.Updated = out.Value != result
		out.Value = result
		out.Status = status
		out.Timestamp = now
	}
}

// vote combines the valid values with the selected method. Median takes
// the upper-middle element for even counts; average is the integer mean.
func vote(values []int32, method VoteMethod) int32 {
	switch method {
	case VoteMedian:
		var sorted [8]int32
		n := copy(sorted[:], values)
		sort.Slice(sorted[:n], func(a, b int) bool { return sorted[a] < sorted[b] })
		return sorted[n/2]

	case VoteAverage:
		var sum int64
		for _, v := range values {
			sum += int64(v)
		}
		return int32(sum / int64(len(values)))

	case VoteMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min

	case VoteMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max

	default:
		return values[0]
	}
}
