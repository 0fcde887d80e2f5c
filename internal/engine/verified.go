package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// StepVerifiedOutputs checks every enabled verified-output context at time
// now. A command change arms a settling window of VerifyTimeoutUS; once the
// window expires the feedback signal is compared against the command and
// the result written to the output signal. One-shot contexts verify once
// per command, continuous ones keep verifying every call after the window.
func (e *Engine) StepVerifiedOutputs(now uint64) {
	for i := uint8(0); i < e.numVerified; i++ {
		e.stepVerified(&e.verified[i], now)
	}
}

func (e *Engine) stepVerified(vo *VerifiedOutputContext, now uint64) {
	if !vo.Enabled {
		return
	}
	if vo.Command >= e.numSignals || vo.Feedback >= e.numSignals || vo.Output >= e.numSignals {
		return
	}

	cmd := &e.signals[vo.Command]
	fb := &e.signals[vo.Feedback]
	out := &e.signals[vo.Output]

	if cmd.Value != vo.lastCommand {
		vo.lastCommand = cmd.Value
		vo.commandTS = now
		vo.waiting = vo.VerifyTimeoutUS > 0
	}

	verify := false
	if vo.waiting {
		if now-vo.commandTS >= vo.VerifyTimeoutUS {
			verify = true
			vo.waiting = false
		}
	} else if vo.ContinuousVerify {
		verify = true
	}

	if !verify {
		// Settling. Output mirrors the command and stays healthy until the
		// window expires.
		out.Value = cmd.Value
		out.Status = domain.StatusOk
		out.Timestamp = now
		out.Updated = false
		return
	}

	diff := cmd.Value - fb.Value
	if diff < 0 {
		diff = -diff
	}
	out.Value = fb.Value
	if diff <= vo.Tolerance {
		out.Status = domain.StatusOk
	} else {
		out.Status = domain.StatusError
	}
	out.Timestamp = now
	out.Updated = true
}
