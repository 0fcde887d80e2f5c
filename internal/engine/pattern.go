package engine

// patternState computes the waveform level for the given phase offset into
// the current period.
func patternState(p *PatternContext, phaseUS uint32) bool {
	switch p.Type {
	case PatternStatic:
		return true
	case PatternBlink, PatternPWM:
		return phaseUS < p.OnTimeUS
	case PatternCustom:
		if p.PatternLength > 0 {
			bit := p.patternIndex % p.PatternLength
			return p.PatternBits&(1<<bit) != 0
		}
	}
	return false
}

// StepPatterns advances every enabled pattern generator to time now and
// drives the installed digital output on state changes. A configured
// control signal gates the pattern: value zero forces the pin to its off
// level.
func (e *Engine) StepPatterns(now uint64) {
	if e.digital == nil {
		return
	}
	for i := uint8(0); i < e.numPatterns; i++ {
		e.stepPattern(&e.patterns[i], now)
	}
}

func (e *Engine) stepPattern(p *PatternContext, now uint64) {
	if !p.Enabled {
		return
	}

	if p.ControlSignal != NoControlSignal {
		if p.ControlSignal >= e.numSignals {
			return
		}
		if e.signals[p.ControlSignal].Value == 0 {
			if p.currentState {
				e.digital.Set(p.Pin, p.Inverted)
				p.currentState = false
			}
			return
		}
	}

	if !p.started {
		p.started = true
		p.lastUpdateUS = now
		p.phaseUS = 0
		state := patternState(p, 0)
		if p.Inverted {
			state = !state
		}
		e.digital.Set(p.Pin, state)
		p.currentState = state
		return
	}

	elapsed := now - p.lastUpdateUS
	p.lastUpdateUS = now
	p.phaseUS += uint32(elapsed)

	if p.PeriodUS > 0 {
		for p.phaseUS >= p.PeriodUS {
			p.phaseUS -= p.PeriodUS
			if p.Type == PatternCustom && p.PatternLength > 0 {
				p.patternIndex++
				if p.patternIndex >= p.PatternLength {
					p.patternIndex = 0
				}
			}
		}
	}

	state := patternState(p, p.phaseUS)
	if p.Inverted {
		state = !state
	}
	if state != p.currentState {
		e.digital.Set(p.Pin, state)
		p.currentState = state
	}
}
