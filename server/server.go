package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/tetrisbattle/broadcast"
	"github.com/wfunc/tetrisbattle/config"
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/monitor"
	"github.com/wfunc/tetrisbattle/network"
	"github.com/wfunc/tetrisbattle/persistence"
	"github.com/wfunc/tetrisbattle/room"
	"github.com/wfunc/tetrisbattle/rpc"
	"github.com/wfunc/tetrisbattle/services"
	"github.com/wfunc/tetrisbattle/session"
	"github.com/wfunc/tetrisbattle/state"
	"github.com/wfunc/tetrisbattle/versus"
)

const DefaultHeartbeat = 15 * time.Second

type GameServer struct {
	addr           string
	rpcAddr        string
	heartbeat      time.Duration
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	hub            *broadcast.Hub
	broadcaster    *broadcast.RoomBroadcaster
	scores         *services.ScoreService
	monitor        *monitor.Monitor
	rpcServer      *rpc.Server
	router         *gin.Engine
	httpServer     *http.Server
	relays         map[string][]func() // roomID -> hub 订阅的取消函数
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(cfg config.ServerConfig, db persistence.Database) *GameServer {
	s := &GameServer{
		addr:           cfg.HTTPAddress,
		rpcAddr:        cfg.RPCAddress,
		heartbeat:      DefaultHeartbeat,
		sessionManager: session.NewManager(),
		hub:            broadcast.NewHub(),
		scores:         services.NewScoreService(db),
		monitor:        monitor.NewMonitor(cfg.MetricsNamespace),
		relays:         make(map[string][]func()),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.roomManager = room.NewRoomManager(room.Hooks{
		OnMatchStart: s.onMatchStart,
		OnMatchEnd:   s.onMatchEnd,
		OnStatus:     s.onRoomStatus,
	})

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.router = s.newRouter()

	return s
}

// Router 返回 HTTP 入口，测试中直接挂到 httptest
func (s *GameServer) Router() http.Handler {
	return s.router
}

func (s *GameServer) Start() error {
	if s.rpcAddr != "" {
		rpcServer, err := rpc.NewServer(s.rpcAddr, rpc.NewLeaderboardService(s.scores))
		if err != nil {
			return err
		}
		s.rpcServer = rpcServer
		go s.rpcServer.Start()
	}

	go s.reapIdleSessions()

	s.httpServer = &http.Server{Addr: s.addr, Handler: s.router}
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
		for _, r := range s.roomManager.Rooms() {
			s.removeRoom(r.ID)
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.leaveRoom(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	s.monitor.IncMessagesReceived(strconv.Itoa(int(packet.MsgID)))
	sess.Touch()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.leaveRoom(sess)
	case network.MsgTypeRoomStatus:
		s.handleRoomStatus(sess, packet)
	case network.MsgTypeGameState:
		s.handleGameState(sess, packet)
	case network.MsgTypeGarbage:
		s.handleGarbage(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func sendError(sess *session.Session, code int, msg string) {
	sess.SendJSON(network.MsgTypeError, network.ErrorMessage{Code: code, Message: msg})
}

// handleJoinRoom 加入房间，房间不存在时创建；room_id 为空时快速匹配
func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRoomRequest
	if err := network.Unmarshal(packet, &req); err != nil || req.PlayerID == "" {
		sendError(sess, network.ErrCodeBadRequest, "player_id required")
		return
	}
	if sess.GetRoomID() != "" {
		sendError(sess, network.ErrCodeBadRequest, "already in a room")
		return
	}

	var r *room.Room
	if req.RoomID == "" {
		r = s.roomManager.FindAvailableRoom()
		if r == nil {
			r = s.ensureRoom(uuid.New().String())
		}
	} else {
		r = s.ensureRoom(req.RoomID)
	}

	sess.SetPlayerID(req.PlayerID)
	if err := r.AddPlayer(sess); err != nil {
		code := network.ErrCodeRoomFull
		if errors.Is(err, room.ErrDuplicatePlayer) {
			code = network.ErrCodeBadRequest
		}
		sendError(sess, code, err.Error())
		return
	}

	logger.Log.Infof("Session %s (%s) joined room %s", sess.GetID(), req.PlayerID, r.ID)
	sess.SendJSON(network.MsgTypeJoinRoom, network.JoinRoomResponse{
		RoomID:    r.ID,
		PlayerID:  req.PlayerID,
		SessionID: sess.GetID(),
		Status:    r.GetStatus(),
		Players:   r.PlayerIDs(),
	})
}

func (s *GameServer) handleRoomStatus(sess *session.Session, packet *network.Packet) {
	var req network.RoomStatusRequest
	network.Unmarshal(packet, &req)
	if req.RoomID == "" {
		req.RoomID = sess.GetRoomID()
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		sendError(sess, network.ErrCodeRoomNotFound, "room not found")
		return
	}
	sess.SendJSON(network.MsgTypeRoomStatus, network.RoomStatusResponse{
		RoomID:  r.ID,
		Status:  r.GetStatus(),
		Players: r.PlayerIDs(),
		Scores:  r.Scores(),
	})
}

func (s *GameServer) currentRoom(sess *session.Session) (*room.Room, bool) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		sendError(sess, network.ErrCodeNotInRoom, "not in a room")
		return nil, false
	}
	r, ok := s.roomManager.GetRoom(roomID)
	if !ok {
		logger.Log.Errorf("Room %s not found for session %s", roomID, sess.GetID())
		sendError(sess, network.ErrCodeRoomNotFound, "room not found")
	}
	return r, ok
}

func (s *GameServer) handleGameState(sess *session.Session, packet *network.Packet) {
	r, ok := s.currentRoom(sess)
	if !ok {
		return
	}
	var st versus.PlayerState
	if err := network.Unmarshal(packet, &st); err != nil {
		logger.Log.Warnf("Session %s sent bad state: %v", sess.GetID(), err)
		return
	}
	st.PlayerID = sess.GetPlayerID()
	r.RecordState(st.PlayerID, st.Score, st.GameOver)

	if err := s.hub.PublishState(context.Background(), r.ID, st.PlayerID, st); err != nil {
		logger.Log.Warnf("Room %s publish state: %v", r.ID, err)
		return
	}
	s.monitor.IncStatesRelayed()
}

// handleGarbage 只在对战进行中转发
func (s *GameServer) handleGarbage(sess *session.Session, packet *network.Packet) {
	r, ok := s.currentRoom(sess)
	if !ok {
		return
	}
	var g versus.GarbageEntry
	if err := network.Unmarshal(packet, &g); err != nil || g.Lines <= 0 {
		return
	}
	if r.GetStatus() != versus.RoomPlaying {
		return
	}
	g.From = sess.GetPlayerID()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := s.hub.AppendGarbage(context.Background(), r.ID, g.From, g); err != nil {
		logger.Log.Warnf("Room %s append garbage: %v", r.ID, err)
		return
	}
	s.monitor.AddGarbageLines(g.Lines)
}

// ensureRoom 创建房间并把 hub 的流转发给房间内的连接
func (s *GameServer) ensureRoom(id string) *room.Room {
	r := s.roomManager.GetOrCreate(id, s.broadcaster)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.relays[id]; ok {
		return r
	}

	cancelStates, _ := s.hub.SubscribeStates(id, func(st versus.PlayerState) {
		s.relay(id, network.MsgTypeGameState, st)
	})
	cancelGarbage, _ := s.hub.SubscribeGarbage(id, func(g versus.GarbageEntry) {
		s.relay(id, network.MsgTypeGarbage, g)
	})
	s.relays[id] = []func(){cancelStates, cancelGarbage}
	s.hub.SetRoomStatus(id, r.GetStatus())
	s.monitor.SetActiveRooms(len(s.relays))
	return r
}

func (s *GameServer) relay(roomID string, msgID uint16, v any) {
	data, err := network.Marshal(v)
	if err != nil {
		logger.Log.Warnf("Room %s encode %d: %v", roomID, msgID, err)
		return
	}
	if err := s.broadcaster.BroadcastToRoom(roomID, msgID, data); err != nil {
		logger.Log.Debugf("Room %s relay %d: %v", roomID, msgID, err)
	}
}

func (s *GameServer) leaveRoom(sess *session.Session) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		return
	}
	r, ok := s.roomManager.GetRoom(roomID)
	if !ok {
		sess.SetRoomID("")
		return
	}
	r.RemovePlayer(sess.GetID())
	logger.Log.Infof("Session %s left room %s", sess.GetID(), roomID)
	if r.PlayerCount() == 0 {
		s.removeRoom(roomID)
	}
}

func (s *GameServer) removeRoom(id string) {
	s.mutex.Lock()
	cancels := s.relays[id]
	delete(s.relays, id)
	active := len(s.relays)
	s.mutex.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.roomManager.RemoveRoom(id)
	s.hub.DeleteRoom(id)
	s.monitor.SetActiveRooms(active)
}

// --- 房间回调，运行在房间状态机内部 ---

func (s *GameServer) onMatchStart(r *room.Room, players []string) {
	s.hub.ResetRoom(r.ID)
}

func (s *GameServer) onMatchEnd(r *room.Room, result state.MatchResult) {
	s.monitor.IncMatchesFinished()
	if err := s.scores.RecordMatch(result); err != nil {
		logger.Log.Errorf("Room %s record match: %v", r.ID, err)
	}
}

func (s *GameServer) onRoomStatus(r *room.Room, status versus.RoomStatus) {
	s.hub.SetRoomStatus(r.ID, status)
}

// reapIdleSessions 关闭超过两个心跳周期没有消息的连接
func (s *GameServer) reapIdleSessions() {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			for _, sess := range s.sessionManager.Idle(now, 2*s.heartbeat) {
				logger.Log.Infof("Session %s idle, closing", sess.GetID())
				sess.Close()
			}
		case <-s.shutdownChan:
			return
		}
	}
}
