// versus/channel.go
package versus

import (
	"context"
	"errors"

	"github.com/wfunc/tetrisbattle/engine"
)

// ErrNoChannel is returned by Start when no broadcast channel is configured.
var ErrNoChannel = errors.New("versus: no broadcast channel")

// RoomStatus mirrors the relay room phase.
type RoomStatus string

const (
	RoomUnknown  RoomStatus = ""
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// PieceSummary is the minimal piece description carried in a PlayerState.
type PieceSummary struct {
	Type     string `json:"type"`
	X        int    `json:"x,omitempty"`
	Y        int    `json:"y,omitempty"`
	Rotation int    `json:"rotation,omitempty"`
}

// PlayerState is the periodic snapshot one player publishes for the other.
type PlayerState struct {
	PlayerID     string        `json:"player_id"`
	Score        int           `json:"score"`
	Level        int           `json:"level"`
	Lines        int           `json:"lines"`
	Board        [][]int       `json:"board"`
	CurrentPiece *PieceSummary `json:"currentPiece,omitempty"`
	NextPiece    *PieceSummary `json:"nextPiece,omitempty"`
	HoldPiece    *PieceSummary `json:"holdPiece,omitempty"`
	GameOver     bool          `json:"gameOver"`
	FinalScore   int           `json:"finalScore,omitempty"`
	Timestamp    int64         `json:"timestamp"`
}

// GarbageEntry is one garbage attack appended to the room's stream.
type GarbageEntry struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Lines     int    `json:"lines"`
	Timestamp int64  `json:"timestamp"`
}

// Channel is the keyed pub/sub primitive the sync runs on. Publish calls
// must not block on the remote side.
type Channel interface {
	PublishState(ctx context.Context, room, player string, st PlayerState) error
	SubscribeStates(room string, fn func(PlayerState)) (cancel func(), err error)
	AppendGarbage(ctx context.Context, room, player string, g GarbageEntry) error
	SubscribeGarbage(room string, fn func(GarbageEntry)) (cancel func(), err error)
	RoomStatus(ctx context.Context, room string) (RoomStatus, error)
}

// Game is the engine surface the sync drives.
type Game interface {
	State() engine.Snapshot
	ReceiveGarbage(lines int)
	Pause() bool
	IsGameOver() bool
	Subscribe(o engine.Observer)
}

// garbageTable maps rows cleared in one lock to rows sent.
var garbageTable = map[int]int{1: 0, 2: 1, 3: 2, 4: 4}

// GarbageFor returns the garbage rows a clear of n rows sends.
func GarbageFor(n int) int {
	return garbageTable[n]
}
