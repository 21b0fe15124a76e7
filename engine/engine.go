// engine/engine.go
package engine

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wfunc/tetrisbattle/board"
	"github.com/wfunc/tetrisbattle/config"
	"github.com/wfunc/tetrisbattle/powerup"
	"github.com/wfunc/tetrisbattle/state"
	"github.com/wfunc/tetrisbattle/tetromino"
)

// Options configure an Engine. Zero-valued numeric fields take the defaults.
type Options struct {
	Width           int
	Height          int
	InitialInterval time.Duration
	MinInterval     time.Duration
	DecayFactor     float64
	LinesPerLevel   int
	PowerupsEnabled bool
	// BombOnLock arms Bomb-Piece to detonate at the next lock instead of
	// detonating the active piece immediately.
	BombOnLock bool
	Powerups   powerup.Settings

	// Rand drives the piece bag and garbage holes.
	Rand *rand.Rand
	// Clock defaults to time.Now.
	Clock    func() time.Time
	Notifier Notifier
}

func DefaultOptions() Options {
	return Options{
		Width:           board.DefaultWidth,
		Height:          board.DefaultHeight,
		InitialInterval: time.Second,
		MinInterval:     50 * time.Millisecond,
		DecayFactor:     0.9,
		LinesPerLevel:   10,
		PowerupsEnabled: true,
		Powerups:        powerup.DefaultSettings(),
	}
}

// OptionsFromConfig maps the game section of the config file.
func OptionsFromConfig(cfg config.GameConfig) Options {
	return Options{
		Width:           cfg.BoardWidth,
		Height:          cfg.BoardHeight,
		InitialInterval: cfg.InitialDropInterval,
		MinInterval:     cfg.MinDropInterval,
		DecayFactor:     cfg.SpeedIncreaseFactor,
		LinesPerLevel:   cfg.LinesPerLevel,
		PowerupsEnabled: cfg.PowerupsEnabled,
		BombOnLock:      cfg.BombOnLock,
		Powerups: powerup.Settings{
			SlowTimeDuration:   cfg.SlowTimeDuration,
			SlowTimeCooldown:   cfg.SlowTimeCooldown,
			BombCooldown:       cfg.BombCooldown,
			FreezeLineDuration: cfg.FreezeLineDuration,
			FreezeLineCooldown: cfg.FreezeLineCooldown,
			QueueSize:          cfg.PowerupQueueSize,
		},
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = def.InitialInterval
	}
	if o.MinInterval <= 0 {
		o.MinInterval = def.MinInterval
	}
	if o.DecayFactor <= 0 || o.DecayFactor > 1 {
		o.DecayFactor = def.DecayFactor
	}
	if o.LinesPerLevel <= 0 {
		o.LinesPerLevel = def.LinesPerLevel
	}
	if o.Powerups == (powerup.Settings{}) {
		o.Powerups = def.Powerups
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Engine is one player's game. All exported methods are safe to call from
// the tick goroutine and from multiplayer callbacks concurrently.
type Engine struct {
	mu sync.Mutex

	opts     Options
	board    *board.Board
	source   *tetromino.Source
	powerups *powerup.System
	phases   phases
	machine  *state.BaseStateMachine

	current tetromino.Piece
	next    tetromino.Type
	held    tetromino.Type
	hasHeld bool
	canHold bool

	score             int
	lines             int
	level             int
	consecutiveTetris int
	lastMove          tetromino.Move
	bombArmed         bool

	dropInterval time.Duration
	lastDrop     time.Time
	runningSince time.Time
	elapsed      time.Duration

	observers []Observer
	pending   []func()
}

func New(opts Options) *Engine {
	opts.applyDefaults()
	e := &Engine{
		opts:     opts,
		board:    board.New(opts.Width, opts.Height, opts.Rand),
		source:   tetromino.NewSource(opts.Rand),
		powerups: powerup.New(opts.Powerups, opts.PowerupsEnabled),
	}
	e.phases = newPhases(e)
	e.machine = newMachine(e.phases, e.phases.idle)
	e.resetLocked()
	return e
}

// Subscribe registers an observer for lock and game-over results.
func (e *Engine) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) now() time.Time {
	return e.opts.Clock()
}

// do runs fn under the engine lock and delivers queued notifications after unlocking.
func (e *Engine) do(fn func() bool) bool {
	e.mu.Lock()
	ok := fn()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, f := range pending {
		f()
	}
	return ok
}

func (e *Engine) phase() string {
	return e.machine.CurrentID()
}

func (e *Engine) running() bool {
	return e.phase() == PhaseRunning
}

// Reset returns to a fresh idle game with a fresh piece bag.
func (e *Engine) Reset() {
	e.do(func() bool {
		e.resetLocked()
		return true
	})
}

func (e *Engine) resetLocked() {
	e.machine.Reset(e.phases.idle)
	e.board.Clear()
	e.source.Reset()
	e.powerups.Reset()

	e.score, e.lines, e.level = 0, 0, 1
	e.consecutiveTetris = 0
	e.lastMove = tetromino.MoveNone
	e.bombArmed = false
	e.hasHeld = false
	e.canHold = true
	e.elapsed = 0

	e.current = tetromino.Spawn(e.source.Next(), e.board.Width())
	e.next = e.source.Next()
	e.updateDropInterval()
}

// Start moves an idle engine into Running.
func (e *Engine) Start() bool {
	return e.do(func() bool {
		if e.phase() != PhaseIdle || e.machine.ChangeState(e.phases.running) != nil {
			return false
		}
		e.lastDrop = e.now()
		return true
	})
}

func (e *Engine) Pause() bool {
	return e.do(func() bool {
		return e.machine.ChangeState(e.phases.paused) == nil
	})
}

func (e *Engine) Resume() bool {
	return e.do(func() bool {
		if e.phase() != PhasePaused {
			return false
		}
		return e.machine.ChangeState(e.phases.running) == nil
	})
}

func (e *Engine) TogglePause() bool {
	return e.do(func() bool {
		switch e.phase() {
		case PhaseRunning:
			return e.machine.ChangeState(e.phases.paused) == nil
		case PhasePaused:
			return e.machine.ChangeState(e.phases.running) == nil
		}
		return false
	})
}

// Tick advances the engine to now: power-up expiry and at most one gravity step.
func (e *Engine) Tick(now time.Time) {
	e.do(func() bool {
		e.machine.GetCurrentState().OnUpdate(now)
		return true
	})
}

func (e *Engine) update(now time.Time) {
	for _, k := range e.powerups.Expire(now) {
		switch k {
		case powerup.SlowTime:
			e.updateDropInterval()
		case powerup.FreezeLine:
			e.board.UnfreezeTopRow()
		}
	}
	if now.Sub(e.lastDrop) > e.dropInterval {
		e.gravity()
		e.lastDrop = now
	}
}

func (e *Engine) baseInterval() time.Duration {
	d := float64(e.opts.InitialInterval) * math.Pow(e.opts.DecayFactor, float64(e.level-1))
	interval := time.Duration(math.Round(d))
	if interval < e.opts.MinInterval {
		interval = e.opts.MinInterval
	}
	return interval
}

func (e *Engine) updateDropInterval() {
	e.dropInterval = e.baseInterval()
	if e.powerups.IsActive(powerup.SlowTime) {
		e.dropInterval *= 2
	}
}

// playTime excludes paused time.
func (e *Engine) playTime() time.Duration {
	if e.running() {
		return e.elapsed + e.now().Sub(e.runningSince)
	}
	return e.elapsed
}

// ReceiveGarbage injects n garbage rows. It applies in any phase except game over.
func (e *Engine) ReceiveGarbage(n int) {
	if n <= 0 {
		return
	}
	e.do(func() bool {
		if e.phase() == PhaseGameOver {
			return false
		}
		e.board.AddGarbageLines(n)
		return true
	})
}

func (e *Engine) Phase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase()
}

func (e *Engine) IsRunning() bool  { return e.Phase() == PhaseRunning }
func (e *Engine) IsPaused() bool   { return e.Phase() == PhasePaused }
func (e *Engine) IsGameOver() bool { return e.Phase() == PhaseGameOver }

func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

func (e *Engine) Lines() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines
}

func (e *Engine) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// DropInterval is the effective interval, including Slow-Time.
func (e *Engine) DropInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropInterval
}

// BaseInterval is the interval the current level dictates.
func (e *Engine) BaseInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseInterval()
}

func (e *Engine) CanHold() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canHold
}

func (e *Engine) ConsecutiveTetris() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consecutiveTetris
}

// Current returns a copy of the active piece.
func (e *Engine) Current() tetromino.Piece {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Held returns the held type, if any.
func (e *Engine) Held() (tetromino.Type, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held, e.hasHeld
}

func (e *Engine) Next() tetromino.Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next
}

func (e *Engine) PlayTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playTime()
}
