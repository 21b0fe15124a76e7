// engine/powerups.go
package engine

import (
	"time"

	"github.com/wfunc/tetrisbattle/powerup"
)

// ActivatePowerup applies kind if the engine is running and the power-up
// system accepts it.
func (e *Engine) ActivatePowerup(kind powerup.Kind) bool {
	return e.do(func() bool { return e.activate(kind) })
}

func (e *Engine) activate(kind powerup.Kind) bool {
	if !e.running() {
		return false
	}
	if kind == powerup.BombPiece && e.bombArmed {
		return false
	}
	if !e.powerups.Activate(kind, e.now()) {
		return false
	}
	switch kind {
	case powerup.SlowTime:
		e.updateDropInterval()
	case powerup.FreezeLine:
		e.board.FreezeTopRow()
	case powerup.BombPiece:
		if e.opts.BombOnLock {
			e.bombArmed = true
		} else {
			e.detonate()
		}
	}
	return true
}

// detonate destroys the active piece's neighborhood and spawns a new piece.
// No line clear runs on the damaged rows.
func (e *Engine) detonate() {
	destroyed := e.board.DestroyAround(e.current.Cells())
	e.score += destroyed * BombCellScore
	e.spawn()
}

// QueuePowerup stores kind for later; it fails when the queue is full.
func (e *Engine) QueuePowerup(kind powerup.Kind) bool {
	return e.do(func() bool { return e.powerups.Enqueue(kind) })
}

// GrantRandomPowerup queues a random kind and returns it.
func (e *Engine) GrantRandomPowerup() (powerup.Kind, bool) {
	var kind powerup.Kind
	ok := e.do(func() bool {
		kind = powerup.Random(e.opts.Rand)
		return e.powerups.Enqueue(kind)
	})
	return kind, ok
}

// UseQueuedPowerup activates the queued kind at index. On failure the
// kind stays in the queue.
func (e *Engine) UseQueuedPowerup(index int) bool {
	return e.do(func() bool {
		kind, ok := e.powerups.Take(index)
		if !ok {
			return false
		}
		if !e.activate(kind) {
			e.powerups.Requeue(index, kind)
			return false
		}
		return true
	})
}

func (e *Engine) PowerupStatus(kind powerup.Kind) powerup.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerups.Status(kind, e.now())
}

// BombArmed reports whether a bomb will detonate at the next lock.
func (e *Engine) BombArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bombArmed
}

// ActiveEffects lists running duration effects with their time left.
func (e *Engine) ActiveEffects() map[string]time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	out := make(map[string]time.Duration)
	for _, eff := range e.powerups.Active() {
		left := eff.Until.Sub(now)
		if left < 0 {
			left = 0
		}
		out[eff.Kind.String()] = left
	}
	return out
}
