package room

import (
	"github.com/wfunc/tetrisbattle/state"
	"github.com/wfunc/tetrisbattle/versus"
)

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// Hooks 房间生命周期回调，均在房间状态机内部调用，不能再回调 ChangeState
type Hooks struct {
	OnMatchStart func(r *Room, players []string)
	OnMatchEnd   func(r *Room, result state.MatchResult)
	OnStatus     func(r *Room, status versus.RoomStatus)
}
