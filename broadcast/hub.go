// broadcast/hub.go
package broadcast

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/tetrisbattle/versus"
)

// maxGarbageLog 每个房间保留的垃圾行记录条数
const maxGarbageLog = 256

type hubRoom struct {
	status      versus.RoomStatus
	states      map[string]versus.PlayerState
	garbage     []versus.GarbageEntry
	stateSubs   map[int]func(versus.PlayerState)
	garbageSubs map[int]func(versus.GarbageEntry)
}

// Hub is an in-process versus.Channel. It keeps the latest state per
// player and a bounded garbage log for every room. Subscribers run on the
// publisher's goroutine, after the hub lock is released.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*hubRoom
	nextSub int
}

var _ versus.Channel = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*hubRoom)}
}

func (h *Hub) room(id string) *hubRoom {
	r, ok := h.rooms[id]
	if !ok {
		r = &hubRoom{
			status:      versus.RoomWaiting,
			states:      make(map[string]versus.PlayerState),
			stateSubs:   make(map[int]func(versus.PlayerState)),
			garbageSubs: make(map[int]func(versus.GarbageEntry)),
		}
		h.rooms[id] = r
	}
	return r
}

func (h *Hub) PublishState(_ context.Context, roomID, player string, st versus.PlayerState) error {
	if st.PlayerID == "" {
		st.PlayerID = player
	}
	h.mu.Lock()
	r := h.room(roomID)
	r.states[st.PlayerID] = st
	subs := make([]func(versus.PlayerState), 0, len(r.stateSubs))
	for _, fn := range r.stateSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return nil
}

func (h *Hub) AppendGarbage(_ context.Context, roomID, player string, g versus.GarbageEntry) error {
	if g.From == "" {
		g.From = player
	}
	h.mu.Lock()
	r := h.room(roomID)
	r.garbage = append(r.garbage, g)
	if len(r.garbage) > maxGarbageLog {
		r.garbage = r.garbage[len(r.garbage)-maxGarbageLog:]
	}
	subs := make([]func(versus.GarbageEntry), 0, len(r.garbageSubs))
	for _, fn := range r.garbageSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(g)
	}
	return nil
}

func (h *Hub) SubscribeStates(roomID string, fn func(versus.PlayerState)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.room(roomID).stateSubs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if r, ok := h.rooms[roomID]; ok {
			delete(r.stateSubs, id)
		}
	}, nil
}

func (h *Hub) SubscribeGarbage(roomID string, fn func(versus.GarbageEntry)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.room(roomID).garbageSubs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if r, ok := h.rooms[roomID]; ok {
			delete(r.garbageSubs, id)
		}
	}, nil
}

func (h *Hub) RoomStatus(_ context.Context, roomID string) (versus.RoomStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r.status, nil
	}
	return versus.RoomUnknown, nil
}

func (h *Hub) SetRoomStatus(roomID string, status versus.RoomStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.room(roomID).status = status
}

// States 返回房间内每个玩家最近一次上报的状态，按玩家ID排序
func (h *Hub) States(roomID string) []versus.PlayerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]versus.PlayerState, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Garbage 返回房间的垃圾行记录
func (h *Hub) Garbage(roomID string) []versus.GarbageEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]versus.GarbageEntry(nil), r.garbage...)
}

// ResetRoom 新一局开始前清空记录，保留订阅
func (h *Hub) ResetRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		r.states = make(map[string]versus.PlayerState)
		r.garbage = nil
	}
}

func (h *Hub) DeleteRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}
