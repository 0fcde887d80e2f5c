// Package registry exposes calibration access to the engine's remap and
// scale parameters. Writes are gated behind an explicit calibration mode
// and serialized against the tick loop through a shared lock.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/and-elf/layered-queue-driver-sub000/internal/engine"
)

var (
	ErrNotCalibrating = errors.New("registry: not in calibration mode")
	ErrBadIndex       = errors.New("registry: context index out of range")
)

// Registry mediates calibration reads and writes. The lock passed in must
// be the same one the tick loop holds while stepping the engine, so a
// parameter swap never lands mid-tick.
type Registry struct {
	mu  sync.Mutex
	eng *engine.Engine
	// engLock serializes engine access with the tick loop.
	engLock sync.Locker

	calibrating bool
	version     uint64
}

func New(eng *engine.Engine, engLock sync.Locker) *Registry {
	return &Registry{eng: eng, engLock: engLock}
}

// EnterCalibration opens the write window.
func (r *Registry) EnterCalibration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrating = true
}

// ExitCalibration closes the write window.
func (r *Registry) ExitCalibration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrating = false
}

func (r *Registry) Calibrating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calibrating
}

// Version increments on every accepted write. Diagnostics use it to detect
// parameter changes between reads.
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Scale reads the scale context at idx. Reads are allowed outside
// calibration mode.
func (r *Registry) Scale(idx uint8) (engine.ScaleContext, error) {
	r.engLock.Lock()
	defer r.engLock.Unlock()
	ctx, ok := r.eng.Scale(idx)
	if !ok {
		return engine.ScaleContext{}, ErrBadIndex
	}
	return ctx, nil
}

// Remap reads the remap context at idx.
func (r *Registry) Remap(idx uint8) (engine.RemapContext, error) {
	r.engLock.Lock()
	defer r.engLock.Unlock()
	ctx, ok := r.eng.Remap(idx)
	if !ok {
		return engine.RemapContext{}, ErrBadIndex
	}
	return ctx, nil
}

// UpdateScale replaces the scale context at idx after sanity checks.
func (r *Registry) UpdateScale(idx uint8, ctx engine.ScaleContext) error {
	r.mu.Lock()
	calibrating := r.calibrating
	r.mu.Unlock()
	if !calibrating {
		return ErrNotCalibrating
	}

	if ctx.Factor == 0 {
		return fmt.Errorf("registry: scale factor must not be zero")
	}
	if ctx.HasClampMin && ctx.HasClampMax && ctx.ClampMin > ctx.ClampMax {
		return fmt.Errorf("registry: clamp_min %d above clamp_max %d", ctx.ClampMin, ctx.ClampMax)
	}
	if n := r.eng.NumSignals(); ctx.Input >= n || ctx.Output >= n {
		return fmt.Errorf("registry: scale signals %d/%d out of range (table has %d)", ctx.Input, ctx.Output, n)
	}

	r.engLock.Lock()
	ok := r.eng.SetScale(idx, ctx)
	r.engLock.Unlock()
	if !ok {
		return ErrBadIndex
	}

	r.mu.Lock()
	r.version++
	r.mu.Unlock()
	return nil
}

// UpdateRemap replaces the remap context at idx after sanity checks.
func (r *Registry) UpdateRemap(idx uint8, ctx engine.RemapContext) error {
	r.mu.Lock()
	calibrating := r.calibrating
	r.mu.Unlock()
	if !calibrating {
		return ErrNotCalibrating
	}

	if ctx.Deadzone < 0 {
		return fmt.Errorf("registry: deadzone must not be negative")
	}
	if n := r.eng.NumSignals(); ctx.Input >= n || ctx.Output >= n {
		return fmt.Errorf("registry: remap signals %d/%d out of range (table has %d)", ctx.Input, ctx.Output, n)
	}

	r.engLock.Lock()
	ok := r.eng.SetRemap(idx, ctx)
	r.engLock.Unlock()
	if !ok {
		return ErrBadIndex
	}

	r.mu.Lock()
	r.version++
	r.mu.Unlock()
	return nil
}
