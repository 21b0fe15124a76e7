// engine/moves.go
package engine

import "github.com/wfunc/tetrisbattle/tetromino"

// wallKicks are tried in order when a rotation collides.
var wallKicks = [...]tetromino.Point{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: -1, Y: -1},
	{X: 1, Y: -1},
}

func (e *Engine) MoveLeft() bool {
	return e.do(func() bool { return e.shift(-1) })
}

func (e *Engine) MoveRight() bool {
	return e.do(func() bool { return e.shift(1) })
}

func (e *Engine) shift(dx int) bool {
	if !e.running() {
		return false
	}
	p := e.current
	p.Move(dx, 0)
	if !e.board.IsValidMove(p) {
		return false
	}
	e.current = p
	e.lastMove = tetromino.MoveShift
	return true
}

// MoveDown soft-drops one row. When the piece cannot fall it locks and
// MoveDown reports false.
func (e *Engine) MoveDown() bool {
	return e.do(func() bool {
		if !e.running() {
			return false
		}
		p := e.current
		p.Move(0, 1)
		if !e.board.IsValidMove(p) {
			e.lock()
			return false
		}
		e.current = p
		e.score += SoftDropScore
		e.lastMove = tetromino.MoveDrop
		return true
	})
}

// HardDrop drops to the landing row and locks.
func (e *Engine) HardDrop() bool {
	return e.do(func() bool {
		if !e.running() {
			return false
		}
		p := e.current
		distance := 0
		for {
			p.Move(0, 1)
			if !e.board.IsValidMove(p) {
				p.Move(0, -1)
				break
			}
			distance++
		}
		e.current = p
		e.score += distance * HardDropScore
		// The lock sees the move that preceded the drop, so rotate-then-drop
		// still qualifies for the T-spin check.
		e.lock()
		e.lastMove = tetromino.MoveHardDrop
		return true
	})
}

func (e *Engine) Rotate() bool {
	return e.do(func() bool { return e.rotate(true) })
}

func (e *Engine) RotateCounter() bool {
	return e.do(func() bool { return e.rotate(false) })
}

func (e *Engine) rotate(clockwise bool) bool {
	if !e.running() {
		return false
	}
	p := e.current
	if clockwise {
		p.Rotate()
	} else {
		p.RotateCounter()
	}
	if !e.board.IsValidMove(p) {
		kicked := false
		for _, k := range wallKicks {
			candidate := p
			candidate.Move(k.X, k.Y)
			if e.board.IsValidMove(candidate) {
				p = candidate
				kicked = true
				break
			}
		}
		if !kicked {
			return false
		}
	}
	e.current = p
	e.lastMove = tetromino.MoveRotate
	return true
}

// Hold stashes the active piece. The first hold spawns the next piece;
// later holds swap with the stashed type at the spawn position.
func (e *Engine) Hold() bool {
	return e.do(func() bool {
		if !e.running() || !e.canHold {
			return false
		}
		if !e.hasHeld {
			e.held, e.hasHeld = e.current.Type, true
			e.spawn()
		} else {
			swapped := tetromino.Spawn(e.held, e.board.Width())
			if !e.board.IsValidMove(swapped) {
				return false
			}
			e.held = e.current.Type
			e.current = swapped
		}
		e.canHold = false
		return true
	})
}

// gravity is the timed one-row fall. It scores nothing and leaves the
// last-move tag alone.
func (e *Engine) gravity() {
	p := e.current
	p.Move(0, 1)
	if !e.board.IsValidMove(p) {
		e.lock()
		return
	}
	e.current = p
}
