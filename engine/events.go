// engine/events.go
package engine

import (
	"time"

	"github.com/wfunc/tetrisbattle/board"
	"github.com/wfunc/tetrisbattle/tetromino"
)

// EventKind enumerates notifications sent to the achievement collaborator.
type EventKind int

const (
	EventTetris EventKind = iota
	EventBackToBack
	EventTSpin
	EventLevelUp
	EventSurvival
)

func (k EventKind) String() string {
	switch k {
	case EventTetris:
		return "tetris"
	case EventBackToBack:
		return "back_to_back"
	case EventTSpin:
		return "t_spin"
	case EventLevelUp:
		return "level_up"
	case EventSurvival:
		return "survival"
	}
	return "unknown"
}

// Event is a fire-and-forget notification.
type Event struct {
	Kind        EventKind
	Level       int
	Consecutive int
	Survived    time.Duration
}

// Notifier receives discrete gameplay events. Return values are never consumed.
type Notifier interface {
	Notify(ev Event)
}

// LockResult describes everything one lock resolution changed.
type LockResult struct {
	Piece      tetromino.Type
	Clear      board.ClearResult
	TSpin      bool
	BombCells  int
	ScoreDelta int
	Score      int
	Lines      int
	Level      int
	LeveledUp  bool
	// Consecutive is the running Tetris streak after this lock.
	Consecutive int
	Events      []Event
	GameOver    bool
}

// Summary is reported once when the engine reaches game over.
type Summary struct {
	Score    int
	Lines    int
	Level    int
	PlayTime time.Duration
}

// Observer is told about lock resolutions and game over. Callbacks run
// after the engine has released its lock, so they may call back into it.
type Observer interface {
	OnLock(res LockResult)
	OnGameOver(sum Summary)
}
