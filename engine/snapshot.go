// engine/snapshot.go
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/tetrisbattle/board"
	"github.com/wfunc/tetrisbattle/powerup"
	"github.com/wfunc/tetrisbattle/tetromino"
)

// PieceState is the serialized pose of a piece. Next and held pieces only
// carry Type.
type PieceState struct {
	Type     string `json:"type"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Rotation int    `json:"rotation"`
}

// Snapshot is the save/resume form of an engine.
type Snapshot struct {
	Board             board.State `json:"board"`
	CurrentPiece      *PieceState `json:"currentPiece,omitempty"`
	NextPiece         *PieceState `json:"nextPiece,omitempty"`
	HoldPiece         *PieceState `json:"holdPiece,omitempty"`
	Score             int         `json:"score"`
	Lines             int         `json:"lines"`
	Level             int         `json:"level"`
	GameTime          int         `json:"gameTime"`
	IsRunning         bool        `json:"isRunning"`
	IsPaused          bool        `json:"isPaused"`
	IsGameOver        bool        `json:"isGameOver"`
	CanHold           *bool       `json:"canHold,omitempty"`
	ConsecutiveTetris int         `json:"consecutiveTetris,omitempty"`
}

// DecodeSnapshot parses JSON. Missing fields are filled in by SetState,
// so only syntactically broken input is an error.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// State captures the engine for persistence or broadcast.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	canHold := e.canHold
	phase := e.phase()
	s := Snapshot{
		Board: e.board.State(),
		CurrentPiece: &PieceState{
			Type:     e.current.Type.String(),
			X:        e.current.X,
			Y:        e.current.Y,
			Rotation: e.current.Rotation,
		},
		NextPiece:         &PieceState{Type: e.next.String()},
		Score:             e.score,
		Lines:             e.lines,
		Level:             e.level,
		GameTime:          int(e.playTime() / time.Second),
		IsRunning:         phase == PhaseRunning || phase == PhasePaused,
		IsPaused:          phase == PhasePaused,
		IsGameOver:        phase == PhaseGameOver,
		CanHold:           &canHold,
		ConsecutiveTetris: e.consecutiveTetris,
	}
	if e.hasHeld {
		s.HoldPiece = &PieceState{Type: e.held.String()}
	}
	return s
}

// SetState restores a snapshot. Absent or invalid fields fall back to
// defaults: level 1, counters 0, flags false, pieces drawn from the source.
func (e *Engine) SetState(s Snapshot) {
	e.do(func() bool {
		e.restore(s)
		return true
	})
}

func (e *Engine) restore(s Snapshot) {
	var target string
	switch {
	case s.IsGameOver:
		target = PhaseGameOver
	case s.IsRunning && s.IsPaused:
		target = PhasePaused
	case s.IsRunning:
		target = PhaseRunning
	default:
		target = PhaseIdle
	}
	e.machine.Reset(e.phases.byID(target))

	e.board.SetState(s.Board)
	// 效果不随存档恢复，冻结行没有到期回调，一并解冻
	e.powerups.Reset()
	e.board.UnfreezeAll()
	e.bombArmed = false
	e.lastMove = tetromino.MoveNone

	e.score = nonNegative(s.Score)
	e.lines = nonNegative(s.Lines)
	e.level = s.Level
	if e.level < 1 {
		e.level = 1
	}
	e.consecutiveTetris = nonNegative(s.ConsecutiveTetris)
	e.canHold = true
	if s.CanHold != nil {
		e.canHold = *s.CanHold
	}

	if p, ok := parsePiece(s.CurrentPiece); ok {
		e.current = p
	} else {
		e.current = tetromino.Spawn(e.source.Next(), e.board.Width())
	}
	if t, ok := parseType(s.NextPiece); ok {
		e.next = t
	} else {
		e.next = e.source.Next()
	}
	e.held, e.hasHeld = parseType(s.HoldPiece)

	now := e.now()
	e.elapsed = time.Duration(nonNegative(s.GameTime)) * time.Second
	e.runningSince = now
	e.lastDrop = now
	e.updateDropInterval()
}

func parseType(p *PieceState) (tetromino.Type, bool) {
	if p == nil {
		return 0, false
	}
	t, err := tetromino.ParseType(p.Type)
	if err != nil {
		return 0, false
	}
	return t, true
}

func parsePiece(p *PieceState) (tetromino.Piece, bool) {
	t, ok := parseType(p)
	if !ok {
		return tetromino.Piece{}, false
	}
	piece := tetromino.Piece{Type: t, X: p.X, Y: p.Y}
	for i := 0; i < ((p.Rotation%4)+4)%4; i++ {
		piece.Rotate()
	}
	return piece, true
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// PieceView is a piece resolved to absolute cells.
type PieceView struct {
	Type  string            `json:"type"`
	Color string            `json:"color"`
	Cells []tetromino.Point `json:"cells"`
}

// View is the read-only render snapshot.
type View struct {
	Width        int                       `json:"width"`
	Height       int                       `json:"height"`
	Grid         [][]string                `json:"grid"`
	Active       *PieceView                `json:"active,omitempty"`
	Ghost        *PieceView                `json:"ghost,omitempty"`
	Next         string                    `json:"next"`
	Upcoming     []string                  `json:"upcoming"`
	Held         string                    `json:"held,omitempty"`
	CanHold      bool                      `json:"canHold"`
	Score        int                       `json:"score"`
	Lines        int                       `json:"lines"`
	Level        int                       `json:"level"`
	Phase        string                    `json:"phase"`
	DropInterval time.Duration             `json:"dropInterval"`
	FrozenRows   []int                     `json:"frozenRows,omitempty"`
	Powerups     map[string]powerup.Status `json:"powerups"`
	Queue        []string                  `json:"queue,omitempty"`
	BombArmed    bool                      `json:"bombArmed,omitempty"`
	Stats        board.Stats               `json:"stats"`
}

// View builds the render snapshot; upcoming lists the next few types
// after Next without consuming them.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		Width:        e.board.Width(),
		Height:       e.board.Height(),
		Grid:         e.board.Colors(),
		Next:         e.next.String(),
		CanHold:      e.canHold,
		Score:        e.score,
		Lines:        e.lines,
		Level:        e.level,
		Phase:        e.phase(),
		DropInterval: e.dropInterval,
		FrozenRows:   e.board.FrozenRows(),
		Powerups:     e.powerups.Statuses(e.now()),
		BombArmed:    e.bombArmed,
		Stats:        e.board.Stats(),
	}
	for _, t := range e.source.Peek(3) {
		v.Upcoming = append(v.Upcoming, t.String())
	}
	for _, k := range e.powerups.Queue() {
		v.Queue = append(v.Queue, k.String())
	}
	if e.hasHeld {
		v.Held = e.held.String()
	}
	if v.Phase != PhaseGameOver {
		v.Active = pieceView(e.current)
		v.Ghost = pieceView(e.current.Ghost(e.board))
	}
	return v
}

func pieceView(p tetromino.Piece) *PieceView {
	return &PieceView{Type: p.Type.String(), Color: p.Color(), Cells: p.Cells()}
}
