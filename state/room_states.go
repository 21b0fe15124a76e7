// state/room_states.go
package state

import (
	"sort"
	"time"

	"github.com/wfunc/tetrisbattle/logger"
)

const (
	RoomWaiting  = "waiting"
	RoomPlaying  = "playing"
	RoomFinished = "finished"
)

// RoomStateBase 房间状态基础结构
type RoomStateBase struct {
	Base
	Room RoomContext
}

// NewWaitingState creates a new waiting state.
func NewWaitingState(room RoomContext) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{Base: Base{ID: RoomWaiting}, Room: room},
	}
}

// 等待状态，房间满员后开始对战
type WaitingState struct {
	RoomStateBase
}

func (s *WaitingState) OnUpdate(now time.Time) {
	if len(s.Room.GetPlayers()) >= s.Room.GetMaxPlayers() {
		if err := s.Room.ChangeState(NewPlayingState(s.Room)); err != nil {
			logger.Log.Warnf("房间 %s 无法开始对战: %v", s.Room.GetID(), err)
		}
	}
}

// PlayingState 对战进行中，第一个出局的玩家判负
type PlayingState struct {
	RoomStateBase
	StartedAt time.Time
	players   []string
}

func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{Base: Base{ID: RoomPlaying}, Room: room},
	}
}

func (s *PlayingState) OnEnter() {
	s.StartedAt = time.Now()
	s.players = playerIDs(s.Room.GetPlayers())
	logger.Log.Infof("房间 %s 开始对战: %v", s.Room.GetID(), s.players)
	s.Room.OnMatchStart(s.players)
}

func (s *PlayingState) OnUpdate(now time.Time) {
	out := s.Room.Eliminated()
	if len(out) == 0 {
		return
	}
	result := MatchResult{
		RoomID:   s.Room.GetID(),
		Loser:    out[0],
		Scores:   s.Room.Scores(),
		Duration: now.Sub(s.StartedAt),
	}
	for _, id := range s.players {
		if !contains(out, id) {
			result.Winner = id
			break
		}
	}
	if err := s.Room.ChangeState(NewFinishedState(s.Room, result)); err != nil {
		logger.Log.Warnf("房间 %s 无法结算: %v", s.Room.GetID(), err)
	}
}

// FinishedState 结算状态
type FinishedState struct {
	RoomStateBase
	Result MatchResult
}

func NewFinishedState(room RoomContext, result MatchResult) *FinishedState {
	return &FinishedState{
		RoomStateBase: RoomStateBase{Base: Base{ID: RoomFinished}, Room: room},
		Result:        result,
	}
}

func (s *FinishedState) OnEnter() {
	logger.Log.Infof("房间 %s 对战结束, winner=%q loser=%q", s.Room.GetID(), s.Result.Winner, s.Result.Loser)
	s.Room.OnMatchEnd(s.Result)
}

func playerIDs(players map[string]Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.GetPlayerID())
	}
	sort.Strings(ids)
	return ids
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
