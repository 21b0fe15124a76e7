// network/client.go
package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/versus"
)

var (
	ErrClientClosed   = errors.New("network: client closed")
	ErrSendQueueFull  = errors.New("network: send queue full")
	ErrAlreadyJoined  = errors.New("network: already joined a room")
	ErrRequestPending = errors.New("network: request already pending")
)

const (
	defaultQueueSize = 64
	defaultHeartbeat = 15 * time.Second
)

type ClientOptions struct {
	QueueSize   int
	Heartbeat   time.Duration
	OnGameStart func(GameStart)
	OnGameEnd   func(GameEnd)
}

type outgoing struct {
	msgID uint16
	data  []byte
}

type joinReply struct {
	resp JoinRoomResponse
	err  error
}

type statusReply struct {
	resp RoomStatusResponse
	err  error
}

// Client is a websocket link to the relay server. It implements
// versus.Channel for the room it joined.
type Client struct {
	conn   Connection
	player string
	opts   ClientOptions

	send      chan outgoing
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	room          string
	joinWaiter    chan joinReply
	statusWaiters []chan statusReply
	stateSubs     map[int]func(versus.PlayerState)
	garbageSubs   map[int]func(versus.GarbageEntry)
	nextSub       int
	err           error
}

var _ versus.Channel = (*Client)(nil)

// Dial 连接服务器，url 形如 ws://host:port/ws
func Dial(ctx context.Context, url, player string, opts ClientOptions) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(NewWSConnection(ws), player, opts), nil
}

// NewClient wraps an established connection and starts its read and
// write loops.
func NewClient(conn Connection, player string, opts ClientOptions) *Client {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	c := &Client{
		conn:        conn,
		player:      player,
		opts:        opts,
		send:        make(chan outgoing, opts.QueueSize),
		done:        make(chan struct{}),
		stateSubs:   make(map[int]func(versus.PlayerState)),
		garbageSubs: make(map[int]func(versus.GarbageEntry)),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *Client) PlayerID() string { return c.player }

func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Err returns the error that closed the client, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Done() <-chan struct{} { return c.done }

// Join 加入房间并等待服务器确认
func (c *Client) Join(ctx context.Context, room string) (JoinRoomResponse, error) {
	wait := make(chan joinReply, 1)
	c.mu.Lock()
	if c.room != "" {
		c.mu.Unlock()
		return JoinRoomResponse{}, ErrAlreadyJoined
	}
	if c.joinWaiter != nil {
		c.mu.Unlock()
		return JoinRoomResponse{}, ErrRequestPending
	}
	c.joinWaiter = wait
	c.mu.Unlock()

	if err := c.enqueue(MsgTypeJoinRoom, JoinRoomRequest{RoomID: room, PlayerID: c.player}); err != nil {
		c.clearJoin()
		return JoinRoomResponse{}, err
	}

	select {
	case r := <-wait:
		if r.err != nil {
			return JoinRoomResponse{}, r.err
		}
		c.mu.Lock()
		c.room = r.resp.RoomID
		c.mu.Unlock()
		return r.resp, nil
	case <-ctx.Done():
		c.clearJoin()
		return JoinRoomResponse{}, ctx.Err()
	case <-c.done:
		return JoinRoomResponse{}, ErrClientClosed
	}
}

func (c *Client) clearJoin() {
	c.mu.Lock()
	c.joinWaiter = nil
	c.mu.Unlock()
}

// Leave 离开当前房间
func (c *Client) Leave() error {
	c.mu.Lock()
	room := c.room
	c.room = ""
	c.mu.Unlock()
	if room == "" {
		return nil
	}
	return c.enqueue(MsgTypeLeaveRoom, LeaveRoomRequest{RoomID: room})
}

func (c *Client) PublishState(_ context.Context, _, _ string, st versus.PlayerState) error {
	if st.PlayerID == "" {
		st.PlayerID = c.player
	}
	return c.enqueue(MsgTypeGameState, st)
}

func (c *Client) AppendGarbage(_ context.Context, _, _ string, g versus.GarbageEntry) error {
	if g.From == "" {
		g.From = c.player
	}
	return c.enqueue(MsgTypeGarbage, g)
}

func (c *Client) SubscribeStates(_ string, fn func(versus.PlayerState)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.stateSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}, nil
}

func (c *Client) SubscribeGarbage(_ string, fn func(versus.GarbageEntry)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.garbageSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.garbageSubs, id)
	}, nil
}

// RoomStatus asks the server for the room phase and waits for the answer.
func (c *Client) RoomStatus(ctx context.Context, room string) (versus.RoomStatus, error) {
	wait := make(chan statusReply, 1)
	c.mu.Lock()
	c.statusWaiters = append(c.statusWaiters, wait)
	c.mu.Unlock()

	if err := c.enqueue(MsgTypeRoomStatus, RoomStatusRequest{RoomID: room}); err != nil {
		c.dropStatusWaiter(wait)
		return versus.RoomUnknown, err
	}

	select {
	case r := <-wait:
		if r.err != nil {
			return versus.RoomUnknown, r.err
		}
		return r.resp.Status, nil
	case <-ctx.Done():
		c.dropStatusWaiter(wait)
		return versus.RoomUnknown, ctx.Err()
	case <-c.done:
		return versus.RoomUnknown, ErrClientClosed
	}
}

func (c *Client) dropStatusWaiter(wait chan statusReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.statusWaiters {
		if w == wait {
			c.statusWaiters = append(c.statusWaiters[:i], c.statusWaiters[i+1:]...)
			return
		}
	}
}

// enqueue never blocks; a full queue drops the message.
func (c *Client) enqueue(msgID uint16, v any) error {
	body, err := Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- outgoing{msgID: msgID, data: body}:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case out := <-c.send:
			if err := c.conn.Send(out.msgID, out.data); err != nil {
				c.closeWith(err)
				return
			}
		case <-ticker.C:
			if err := c.conn.Send(MsgTypeHeartbeat, nil); err != nil {
				c.closeWith(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readLoop() {
	for {
		p, err := c.conn.ReadPacket()
		if err != nil {
			c.closeWith(err)
			return
		}
		c.dispatch(p)
	}
}

func (c *Client) dispatch(p *Packet) {
	switch p.MsgID {
	case MsgTypeHeartbeat:
	case MsgTypeJoinRoom:
		var resp JoinRoomResponse
		err := Unmarshal(p, &resp)
		c.replyJoin(joinReply{resp: resp, err: err})
	case MsgTypeRoomStatus:
		var resp RoomStatusResponse
		err := Unmarshal(p, &resp)
		c.replyStatus(statusReply{resp: resp, err: err})
	case MsgTypeGameState:
		var st versus.PlayerState
		if err := Unmarshal(p, &st); err != nil {
			logger.Log.Warnf("client: %v", err)
			return
		}
		for _, fn := range c.stateHandlers() {
			fn(st)
		}
	case MsgTypeGarbage:
		var g versus.GarbageEntry
		if err := Unmarshal(p, &g); err != nil {
			logger.Log.Warnf("client: %v", err)
			return
		}
		for _, fn := range c.garbageHandlers() {
			fn(g)
		}
	case MsgTypeGameStart:
		var msg GameStart
		if err := Unmarshal(p, &msg); err == nil && c.opts.OnGameStart != nil {
			c.opts.OnGameStart(msg)
		}
	case MsgTypeGameEnd:
		var msg GameEnd
		if err := Unmarshal(p, &msg); err == nil && c.opts.OnGameEnd != nil {
			c.opts.OnGameEnd(msg)
		}
	case MsgTypeError:
		var msg ErrorMessage
		if err := Unmarshal(p, &msg); err != nil {
			logger.Log.Warnf("client: %v", err)
			return
		}
		c.replyError(&msg)
	default:
		logger.Log.Debugf("client: ignore message %d", p.MsgID)
	}
}

// replyError hands a server error to the oldest pending request.
func (c *Client) replyError(msg *ErrorMessage) {
	c.mu.Lock()
	join := c.joinWaiter
	c.mu.Unlock()
	if join != nil {
		c.replyJoin(joinReply{err: msg})
		return
	}
	if !c.replyStatus(statusReply{err: msg}) {
		logger.Log.Warnf("client: %v", msg)
	}
}

func (c *Client) replyJoin(r joinReply) {
	c.mu.Lock()
	w := c.joinWaiter
	c.joinWaiter = nil
	c.mu.Unlock()
	if w != nil {
		w <- r
	}
}

func (c *Client) replyStatus(r statusReply) bool {
	c.mu.Lock()
	if len(c.statusWaiters) == 0 {
		c.mu.Unlock()
		return false
	}
	w := c.statusWaiters[0]
	c.statusWaiters = c.statusWaiters[1:]
	c.mu.Unlock()
	w <- r
	return true
}

func (c *Client) stateHandlers() []func(versus.PlayerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(versus.PlayerState), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		out = append(out, fn)
	}
	return out
}

func (c *Client) garbageHandlers() []func(versus.GarbageEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(versus.GarbageEntry), 0, len(c.garbageSubs))
	for _, fn := range c.garbageSubs {
		out = append(out, fn)
	}
	return out
}

func (c *Client) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
		if err != nil && !errors.Is(err, ErrClientClosed) {
			logger.Log.Infof("client %s: connection closed: %v", c.player, err)
		}
	})
}

// Close 关闭连接，之后的发送都会返回 ErrClientClosed
func (c *Client) Close() error {
	c.closeWith(ErrClientClosed)
	return nil
}
