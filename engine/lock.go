// engine/lock.go
package engine

import (
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/tetromino"
)

const (
	SoftDropScore = 1
	HardDropScore = 2
	TSpinBonus    = 400
	BombCellScore = 10
)

// lineClearScores is indexed by rows cleared in one pass and multiplied by level.
var lineClearScores = [...]int{0, 100, 300, 500, 800}

// LineClearScore returns the base score for clearing n rows at once.
func LineClearScore(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(lineClearScores) {
		n = len(lineClearScores) - 1
	}
	return lineClearScores[n]
}

// lock resolves the active piece: place, pending bomb, T-spin, line clear,
// scoring, then spawn.
func (e *Engine) lock() {
	piece := e.current
	e.board.Place(piece)

	res := LockResult{Piece: piece.Type}

	if e.bombArmed {
		e.bombArmed = false
		res.BombCells = e.board.DestroyAround(piece.Cells())
		res.ScoreDelta += res.BombCells * BombCellScore
	}

	if e.board.IsTSpin(piece, e.lastMove) {
		res.TSpin = true
		res.ScoreDelta += TSpinBonus
		res.Events = append(res.Events, Event{Kind: EventTSpin, Level: e.level})
	}

	res.Clear = e.board.ClearLines()
	if res.Clear.Count > 0 {
		e.applyLineClear(&res)
	}

	e.score += res.ScoreDelta
	res.Score, res.Lines, res.Level = e.score, e.lines, e.level
	res.Consecutive = e.consecutiveTetris

	for _, ev := range res.Events {
		e.notify(ev)
	}

	ok := e.spawnPiece()
	res.GameOver = !ok
	e.emitLock(res)
	if !ok {
		e.gameOver()
	}
}

func (e *Engine) applyLineClear(res *LockResult) {
	n := res.Clear.Count
	e.lines += n
	if lvl := e.lines/e.opts.LinesPerLevel + 1; lvl > e.level {
		e.level = lvl
		res.LeveledUp = true
		e.updateDropInterval()
		res.Events = append(res.Events, Event{Kind: EventLevelUp, Level: lvl})
	}

	res.ScoreDelta += LineClearScore(n) * e.level

	if res.Clear.WasTetris {
		e.consecutiveTetris++
		res.Events = append(res.Events, Event{Kind: EventTetris, Level: e.level, Consecutive: e.consecutiveTetris})
		if e.consecutiveTetris >= 2 {
			res.Events = append(res.Events, Event{Kind: EventBackToBack, Level: e.level, Consecutive: e.consecutiveTetris})
		}
	} else {
		e.consecutiveTetris = 0
	}
}

// spawn promotes the next piece. It returns false and ends the game when
// the spawn position is already blocked.
func (e *Engine) spawn() bool {
	if e.spawnPiece() {
		return true
	}
	e.gameOver()
	return false
}

func (e *Engine) spawnPiece() bool {
	e.current = tetromino.Spawn(e.next, e.board.Width())
	e.next = e.source.Next()
	e.canHold = true
	return e.board.IsValidMove(e.current)
}

func (e *Engine) gameOver() {
	if err := e.machine.ChangeState(e.phases.over); err != nil {
		logger.Log.Warnf("engine: entering game over from %s: %v", e.phase(), err)
		e.machine.Reset(e.phases.over)
	}
	sum := Summary{Score: e.score, Lines: e.lines, Level: e.level, PlayTime: e.elapsed}
	e.notify(Event{Kind: EventSurvival, Level: e.level, Survived: sum.PlayTime})

	observers := append([]Observer(nil), e.observers...)
	e.pending = append(e.pending, func() {
		for _, o := range observers {
			o.OnGameOver(sum)
		}
	})
}

func (e *Engine) notify(ev Event) {
	if e.opts.Notifier == nil {
		return
	}
	n := e.opts.Notifier
	e.pending = append(e.pending, func() { n.Notify(ev) })
}

func (e *Engine) emitLock(res LockResult) {
	observers := append([]Observer(nil), e.observers...)
	e.pending = append(e.pending, func() {
		for _, o := range observers {
			o.OnLock(res)
		}
	})
}
