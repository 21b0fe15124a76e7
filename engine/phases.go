// engine/phases.go
package engine

import (
	"time"

	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/state"
)

// Phase names of the engine state machine.
const (
	PhaseIdle     = "idle"
	PhaseRunning  = "running"
	PhasePaused   = "paused"
	PhaseGameOver = "gameOver"
)

type idlePhase struct {
	state.Base
}

type runningPhase struct {
	state.Base
	e *Engine
}

func (p *runningPhase) OnEnter() {
	p.e.runningSince = p.e.now()
}

func (p *runningPhase) OnExit() {
	p.e.elapsed += p.e.now().Sub(p.e.runningSince)
}

func (p *runningPhase) OnUpdate(now time.Time) {
	p.e.update(now)
}

// pausedPhase shifts the drop reference on exit so paused time never
// counts toward the next gravity step.
type pausedPhase struct {
	state.Base
	e        *Engine
	pausedAt time.Time
}

func (p *pausedPhase) OnEnter() {
	p.pausedAt = p.e.now()
}

func (p *pausedPhase) OnExit() {
	p.e.lastDrop = p.e.lastDrop.Add(p.e.now().Sub(p.pausedAt))
}

type gameOverPhase struct {
	state.Base
	e *Engine
}

func (p *gameOverPhase) OnEnter() {
	logger.Log.Debugf("engine: game over, score=%d lines=%d level=%d", p.e.score, p.e.lines, p.e.level)
}

type phases struct {
	idle    *idlePhase
	running *runningPhase
	paused  *pausedPhase
	over    *gameOverPhase
}

func newPhases(e *Engine) phases {
	return phases{
		idle:    &idlePhase{Base: state.Base{ID: PhaseIdle}},
		running: &runningPhase{Base: state.Base{ID: PhaseRunning}, e: e},
		paused:  &pausedPhase{Base: state.Base{ID: PhasePaused}, e: e},
		over:    &gameOverPhase{Base: state.Base{ID: PhaseGameOver}, e: e},
	}
}

func (p phases) byID(id string) state.State {
	switch id {
	case PhaseRunning:
		return p.running
	case PhasePaused:
		return p.paused
	case PhaseGameOver:
		return p.over
	}
	return p.idle
}

// newMachine wires Idle -> Running <-> Paused, Running -> GameOver.
// GameOver only leaves through Reset.
func newMachine(p phases, initial state.State) *state.BaseStateMachine {
	m := state.NewBaseStateMachine(initial)
	m.AddTransition(p.idle, p.running, nil)
	m.AddTransition(p.running, p.paused, nil)
	m.AddTransition(p.running, p.over, nil)
	m.AddTransition(p.paused, p.running, nil)
	m.AddTransition(p.over, p.idle, func() bool { return false })
	return m
}
