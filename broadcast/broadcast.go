// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/room"
	"github.com/wfunc/tetrisbattle/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToPlayers(playerIDs []string, msgID uint16, data []byte) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败由读循环负责清理会话
			logger.Log.Debugf("broadcast %d to session %s: %v", msgID, s.ID, err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, r := range b.roomManager.Rooms() {
		if err := b.BroadcastToRoom(r.ID, msgID, data); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToPlayers(playerIDs []string, msgID uint16, data []byte) error {
	for _, playerID := range playerIDs {
		for _, s := range b.sessionManager.GetByPlayerID(playerID) {
			if err := s.Send(msgID, data); err != nil {
				logger.Log.Debugf("broadcast %d to player %s: %v", msgID, playerID, err)
			}
		}
	}
	return nil
}
