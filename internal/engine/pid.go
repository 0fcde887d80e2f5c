package engine

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// StepPIDs advances every enabled PID controller to time now. Invoked
// independently of Step so control loops can run at their own cadence.
func (e *Engine) StepPIDs(now uint64) {
	for i := uint8(0); i < e.numPIDs; i++ {
		e.stepPID(&e.pids[i], now)
	}
}

func (e *Engine) stepPID(pid *PIDContext, now uint64) {
	if !pid.Enabled {
		return
	}
	if pid.Setpoint >= e.numSignals || pid.Measurement >= e.numSignals || pid.Output >= e.numSignals {
		return
	}

	sp := &e.signals[pid.Setpoint]
	meas := &e.signals[pid.Measurement]
	out := &e.signals[pid.Output]

	// First invocation only establishes the time base; a delta is needed
	// before any term can be computed.
	if !pid.primed {
		pid.integral = 0
		pid.lastError = 0
		pid.lastSetpoint = sp.Value
		pid.lastTimeUS = now
		pid.primed = true
		return
	}

	if pid.ResetOnSetpointChange && sp.Value != pid.lastSetpoint {
		pid.integral = 0
		pid.lastSetpoint = sp.Value
	}

	err := sp.Value - meas.Value

	var dtUS uint64
	if pid.SampleTimeUS > 0 {
		dtUS = pid.SampleTimeUS
	} else {
		dtUS = now - pid.lastTimeUS
		if dtUS == 0 {
			return
		}
	}

	pTerm := int64(pid.Kp) * int64(err) / 1000

	var iTerm int64
	if pid.Ki != 0 {
		absErr := err
		if absErr < 0 {
			absErr = -absErr
		}
		// Integral accumulates in unit-seconds; anti-windup clamps the
		// accumulator before the gain is applied.
		if absErr > pid.Deadband {
			pid.integral += int64(err) * int64(dtUS) / 1000000
			if pid.integral > pid.IntegralMax {
				pid.integral = pid.IntegralMax
			} else if pid.integral < pid.IntegralMin {
				pid.integral = pid.IntegralMin
			}
		}
		iTerm = int64(pid.Ki) * pid.integral / 1000
	}

	var dTerm int64
	if pid.Kd != 0 {
		errDelta := err - pid.lastError
		dTerm = int64(pid.Kd) * int64(errDelta) * 1000000 / (int64(dtUS) * 1000)
	}

	sum := pTerm + iTerm + dTerm
	v := saturate32(sum)
	if v < pid.OutputMin {
		v = pid.OutputMin
	} else if v > pid.OutputMax {
		v = pid.OutputMax
	}

	out.Value = v
	out.Status = domain.StatusOk
	out.Timestamp = now
	out.Updated = true

	pid.lastError = err
	pid.lastTimeUS = now
}
