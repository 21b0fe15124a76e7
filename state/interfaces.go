// state/interfaces.go
package state

import "time"

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
	GetPlayerID() string
}

// MatchResult is produced when a versus room finishes.
type MatchResult struct {
	RoomID   string         `json:"room_id"`
	Winner   string         `json:"winner"`
	Loser    string         `json:"loser"`
	Scores   map[string]int `json:"scores"`
	Duration time.Duration  `json:"duration"`
}

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	GetPlayers() map[string]Player
	GetMaxPlayers() int
	ChangeState(newState State) error
	// Eliminated lists players that topped out or left mid-match.
	Eliminated() []string
	Scores() map[string]int
	OnMatchStart(players []string)
	OnMatchEnd(result MatchResult)
}
