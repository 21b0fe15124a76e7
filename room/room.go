// room/room.go
package room

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/network"
	"github.com/wfunc/tetrisbattle/session"
	"github.com/wfunc/tetrisbattle/state"
	"github.com/wfunc/tetrisbattle/versus"
)

const (
	// MaxPlayers 对战房间固定两人
	MaxPlayers   = 2
	TickInterval = 100 * time.Millisecond
)

var (
	ErrRoomFull        = errors.New("room is full")
	ErrMatchInProgress = errors.New("match already in progress")
	ErrDuplicatePlayer = errors.New("player already in room")
)

// Room 是对战房间的核心结构
type Room struct {
	ID           string
	Name         string
	MaxPlayers   int
	Status       versus.RoomStatus
	Players      map[string]*session.Session // sessionID -> session
	StateMachine *state.BaseStateMachine
	CreatedAt    time.Time
	broadcaster  Broadcaster
	hooks        Hooks
	statusMutex  sync.RWMutex
	playerMutex  sync.RWMutex
	matchMutex   sync.Mutex
	scores       map[string]int
	eliminated   []string
	ticker       *time.Ticker
	closeChan    chan bool
	closeOnce    sync.Once
}

// NewRoom 创建一个新房间并启动心跳
func NewRoom(id, name string, maxPlayers int, broadcaster Broadcaster, hooks Hooks) *Room {
	if maxPlayers <= 0 {
		maxPlayers = MaxPlayers
	}
	room := &Room{
		ID:          id,
		Name:        name,
		MaxPlayers:  maxPlayers,
		Status:      versus.RoomWaiting,
		Players:     make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		closeChan:   make(chan bool),
		broadcaster: broadcaster,
		hooks:       hooks,
		scores:      make(map[string]int),
	}

	// 初始化状态机，将房间自身(room)作为上下文传入
	waiting := state.NewWaitingState(room)
	room.StateMachine = state.NewBaseStateMachine(waiting)
	room.StateMachine.AddTransition(waiting, state.NewPlayingState(room), nil)
	room.StateMachine.AddTransition(state.NewPlayingState(room), state.NewFinishedState(room, state.MatchResult{}), nil)

	room.ticker = time.NewTicker(TickInterval)
	go room.loop()

	return room
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) GetMaxPlayers() int {
	return r.MaxPlayers
}

// GetPlayers 获取房间中的所有玩家，返回的map值为 state.Player 接口
func (r *Room) GetPlayers() map[string]state.Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	players := make(map[string]state.Player, len(r.Players))
	for k, v := range r.Players {
		players[k] = v
	}
	return players
}

// ChangeState 改变状态机状态，成功后同步业务状态
func (r *Room) ChangeState(newState state.State) error {
	if err := r.StateMachine.ChangeState(newState); err != nil {
		return err
	}
	r.SetStatus(versus.RoomStatus(newState.GetID()))
	return nil
}

func (r *Room) Eliminated() []string {
	r.matchMutex.Lock()
	defer r.matchMutex.Unlock()
	return append([]string(nil), r.eliminated...)
}

func (r *Room) Scores() map[string]int {
	r.matchMutex.Lock()
	defer r.matchMutex.Unlock()
	out := make(map[string]int, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

// OnMatchStart 清空上一局数据并通知客户端
func (r *Room) OnMatchStart(players []string) {
	r.matchMutex.Lock()
	r.scores = make(map[string]int, len(players))
	for _, id := range players {
		r.scores[id] = 0
	}
	r.eliminated = nil
	r.matchMutex.Unlock()

	r.broadcastJSON(network.MsgTypeGameStart, network.GameStart{
		RoomID:    r.ID,
		Players:   players,
		StartedAt: time.Now().UnixMilli(),
	})
	if r.hooks.OnMatchStart != nil {
		r.hooks.OnMatchStart(r, players)
	}
}

func (r *Room) OnMatchEnd(result state.MatchResult) {
	r.broadcastJSON(network.MsgTypeGameEnd, network.GameEnd{
		RoomID:     result.RoomID,
		Winner:     result.Winner,
		Loser:      result.Loser,
		Scores:     result.Scores,
		DurationMs: result.Duration.Milliseconds(),
	})
	if r.hooks.OnMatchEnd != nil {
		r.hooks.OnMatchEnd(r, result)
	}
}

// Broadcast sends a message to all players in the room.
func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

func (r *Room) broadcastJSON(msgID uint16, v any) {
	data, err := network.Marshal(v)
	if err == nil {
		err = r.Broadcast(msgID, data)
	}
	if err != nil {
		logger.Log.Warnf("房间 %s 广播 %d 失败: %v", r.ID, msgID, err)
	}
}

// --- 房间核心逻辑 ---

// AddPlayer 添加一个玩家到房间，只能在等待阶段加入
func (r *Room) AddPlayer(s *session.Session) error {
	if r.GetStatus() != versus.RoomWaiting {
		return ErrMatchInProgress
	}

	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if len(r.Players) >= r.MaxPlayers {
		return ErrRoomFull
	}
	for _, p := range r.Players {
		if p.GetPlayerID() == s.GetPlayerID() {
			return ErrDuplicatePlayer
		}
	}

	r.Players[s.ID] = s
	s.SetRoomID(r.ID)
	return nil
}

// RemovePlayer 从房间移除一个玩家，对战中离开视为出局
func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	player, exists := r.Players[sessionID]
	if exists {
		player.SetRoomID("")
		delete(r.Players, sessionID)
	}
	r.playerMutex.Unlock()

	if exists && r.GetStatus() == versus.RoomPlaying {
		r.eliminate(player.GetPlayerID())
	}
}

// RecordState 记录玩家上报的分数和结束标记
func (r *Room) RecordState(playerID string, score int, gameOver bool) {
	if r.GetStatus() != versus.RoomPlaying {
		return
	}
	r.matchMutex.Lock()
	r.scores[playerID] = score
	r.matchMutex.Unlock()
	if gameOver {
		r.eliminate(playerID)
	}
}

func (r *Room) eliminate(playerID string) {
	r.matchMutex.Lock()
	defer r.matchMutex.Unlock()
	for _, id := range r.eliminated {
		if id == playerID {
			return
		}
	}
	r.eliminated = append(r.eliminated, playerID)
}

// Rematch 结算后重新回到等待阶段
func (r *Room) Rematch() error {
	if r.GetStatus() != versus.RoomFinished {
		return state.ErrTransitionNotAllowed
	}
	return r.ChangeState(state.NewWaitingState(r))
}

// GetPlayer 获取单个玩家
func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// PlayerIDs 返回排序后的玩家ID
func (r *Room) PlayerIDs() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	ids := make([]string, 0, len(r.Players))
	for _, s := range r.Players {
		ids = append(ids, s.GetPlayerID())
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// SetStatus 设置房间的业务状态
func (r *Room) SetStatus(status versus.RoomStatus) {
	r.statusMutex.Lock()
	changed := r.Status != status
	r.Status = status
	r.statusMutex.Unlock()

	if changed && r.hooks.OnStatus != nil {
		r.hooks.OnStatus(r, status)
	}
}

// GetStatus 获取房间的业务状态
func (r *Room) GetStatus() versus.RoomStatus {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.Status
}

// loop 是房间的主循环，定时驱动状态更新
func (r *Room) loop() {
	for {
		select {
		case now := <-r.ticker.C:
			r.Update(now)
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Update 由主循环调用，驱动状态机更新
func (r *Room) Update(now time.Time) {
	if r.StateMachine != nil {
		currentState := r.StateMachine.GetCurrentState()
		if currentState != nil {
			currentState.OnUpdate(now)
		}
	}
}

// Close 关闭房间，停止主循环
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closeChan) })
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	hooks Hooks
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(hooks Hooks) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		hooks: hooks,
	}
}

// CreateRoom 创建一个新房间并添加到管理器
func (m *Manager) CreateRoom(id, name string, maxPlayers int, broadcaster Broadcaster) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room := NewRoom(id, name, maxPlayers, broadcaster, m.hooks)
	m.rooms[id] = room
	return room
}

// GetOrCreate 按ID加入房间，不存在时创建
func (m *Manager) GetOrCreate(id string, broadcaster Broadcaster) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room
	}
	room := NewRoom(id, id, MaxPlayers, broadcaster, m.hooks)
	m.rooms[id] = room
	return room
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		room.Close()
		delete(m.rooms, id)
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Rooms 返回所有房间
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// FindAvailableRoom 查找一个可用的房间
func (m *Manager) FindAvailableRoom() *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, room := range m.rooms {
		if room.PlayerCount() < room.MaxPlayers && room.GetStatus() == versus.RoomWaiting {
			return room
		}
	}
	return nil
}

func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, room := range m.rooms {
		room.Close()
		delete(m.rooms, id)
	}
}
