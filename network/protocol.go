package network

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/tetrisbattle/versus"
)

const (
	MsgTypeHeartbeat  = 1
	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeRoomStatus = 103
	MsgTypeGameState  = 301
	MsgTypeGarbage    = 302
	MsgTypeGameStart  = 303
	MsgTypeGameEnd    = 305
	MsgTypeError      = 500
)

// 错误码
const (
	ErrCodeBadRequest   = 400
	ErrCodeRoomNotFound = 404
	ErrCodeRoomFull     = 409
	ErrCodeNotInRoom    = 412
)

type JoinRoomRequest struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

type JoinRoomResponse struct {
	RoomID    string            `json:"room_id"`
	PlayerID  string            `json:"player_id"`
	SessionID string            `json:"session_id"`
	Status    versus.RoomStatus `json:"status"`
	Players   []string          `json:"players"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id"`
}

type RoomStatusRequest struct {
	RoomID string `json:"room_id"`
}

type RoomStatusResponse struct {
	RoomID  string            `json:"room_id"`
	Status  versus.RoomStatus `json:"status"`
	Players []string          `json:"players"`
	Scores  map[string]int    `json:"scores,omitempty"`
}

type GameStart struct {
	RoomID    string   `json:"room_id"`
	Players   []string `json:"players"`
	StartedAt int64    `json:"started_at"`
}

type GameEnd struct {
	RoomID     string         `json:"room_id"`
	Winner     string         `json:"winner"`
	Loser      string         `json:"loser"`
	Scores     map[string]int `json:"scores"`
	DurationMs int64          `json:"duration_ms"`
}

type ErrorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorMessage) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Marshal 编码消息体，超出长度前缀范围时报错
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

func Unmarshal(p *Packet, v any) error {
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode message %d: %w", p.MsgID, err)
	}
	return nil
}

// SendJSON 编码后发送
func SendJSON(c interface{ Send(uint16, []byte) error }, msgID uint16, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(msgID, data)
}
