package network

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/versus"
)

// MockConnection is an in-memory Connection. Packets pushed to In are read
// by the client; packets the client sends land in Out.
type MockConnection struct {
	In     chan *Packet
	Out    chan *Packet
	closed chan struct{}
	once   sync.Once
}

func NewMockConnection() *MockConnection {
	return &MockConnection{
		In:     make(chan *Packet, 16),
		Out:    make(chan *Packet, 16),
		closed: make(chan struct{}),
	}
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	select {
	case <-m.closed:
		return errors.New("closed")
	default:
	}
	m.Out <- &Packet{MsgID: msgID, Data: data, Length: uint16(len(data))}
	return nil
}

func (m *MockConnection) ReadPacket() (*Packet, error) {
	select {
	case p := <-m.In:
		return p, nil
	case <-m.closed:
		return nil, io.EOF
	}
}

func (m *MockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

func (m *MockConnection) push(t *testing.T, msgID uint16, v any) {
	t.Helper()
	data, err := Marshal(v)
	require.NoError(t, err)
	m.In <- &Packet{MsgID: msgID, Data: data, Length: uint16(len(data))}
}

func (m *MockConnection) expect(t *testing.T, msgID uint16) *Packet {
	t.Helper()
	select {
	case p := <-m.Out:
		require.Equal(t, msgID, p.MsgID)
		return p
	case <-time.After(time.Second):
		t.Fatalf("no message %d sent", msgID)
		return nil
	}
}

func TestClient_Join(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	defer c.Close()

	go func() {
		p := conn.expect(t, MsgTypeJoinRoom)
		var req JoinRoomRequest
		if Unmarshal(p, &req) != nil {
			return
		}
		conn.push(t, MsgTypeJoinRoom, JoinRoomResponse{RoomID: req.RoomID, PlayerID: req.PlayerID, Status: versus.RoomWaiting})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := c.Join(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RoomID)
	assert.Equal(t, "alice", resp.PlayerID)
	assert.Equal(t, "r1", c.Room())

	_, err = c.Join(ctx, "r2")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestClient_JoinRejected(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	defer c.Close()

	go func() {
		conn.expect(t, MsgTypeJoinRoom)
		conn.push(t, MsgTypeError, ErrorMessage{Code: ErrCodeRoomFull, Message: "room full"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Join(ctx, "r1")
	var em *ErrorMessage
	require.ErrorAs(t, err, &em)
	assert.Equal(t, ErrCodeRoomFull, em.Code)
	assert.Empty(t, c.Room())
}

func TestClient_Publish(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	defer c.Close()

	require.NoError(t, c.PublishState(context.Background(), "r1", "alice", versus.PlayerState{Score: 10}))
	var st versus.PlayerState
	require.NoError(t, Unmarshal(conn.expect(t, MsgTypeGameState), &st))
	assert.Equal(t, "alice", st.PlayerID)
	assert.Equal(t, 10, st.Score)

	require.NoError(t, c.AppendGarbage(context.Background(), "r1", "alice", versus.GarbageEntry{ID: "g1", Lines: 4}))
	var g versus.GarbageEntry
	require.NoError(t, Unmarshal(conn.expect(t, MsgTypeGarbage), &g))
	assert.Equal(t, "alice", g.From)
	assert.Equal(t, 4, g.Lines)
}

func TestClient_Subscribe(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	defer c.Close()

	states := make(chan versus.PlayerState, 1)
	garbage := make(chan versus.GarbageEntry, 1)
	_, err := c.SubscribeStates("r1", func(st versus.PlayerState) { states <- st })
	require.NoError(t, err)
	cancel, err := c.SubscribeGarbage("r1", func(g versus.GarbageEntry) { garbage <- g })
	require.NoError(t, err)

	conn.push(t, MsgTypeGameState, versus.PlayerState{PlayerID: "bob", Score: 7})
	conn.push(t, MsgTypeGarbage, versus.GarbageEntry{From: "bob", Lines: 2})

	select {
	case st := <-states:
		assert.Equal(t, "bob", st.PlayerID)
	case <-time.After(time.Second):
		t.Fatal("state not delivered")
	}
	select {
	case g := <-garbage:
		assert.Equal(t, 2, g.Lines)
	case <-time.After(time.Second):
		t.Fatal("garbage not delivered")
	}

	cancel()
	assert.Empty(t, c.garbageHandlers())
}

func TestClient_RoomStatus(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	defer c.Close()

	go func() {
		conn.expect(t, MsgTypeRoomStatus)
		conn.push(t, MsgTypeRoomStatus, RoomStatusResponse{RoomID: "r1", Status: versus.RoomPlaying})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := c.RoomStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, versus.RoomPlaying, st)
}

func TestClient_GameCallbacks(t *testing.T) {
	conn := NewMockConnection()
	ends := make(chan GameEnd, 1)
	c := NewClient(conn, "alice", ClientOptions{OnGameEnd: func(m GameEnd) { ends <- m }})
	defer c.Close()

	conn.push(t, MsgTypeGameEnd, GameEnd{RoomID: "r1", Winner: "alice", Loser: "bob"})
	select {
	case m := <-ends:
		assert.Equal(t, "alice", m.Winner)
	case <-time.After(time.Second):
		t.Fatal("game end not delivered")
	}
}

func TestClient_Closed(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	require.NoError(t, c.Close())

	<-c.Done()
	err := c.PublishState(context.Background(), "r1", "alice", versus.PlayerState{})
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, c.Err(), ErrClientClosed)

	_, err = c.RoomStatus(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ServerDisconnect(t *testing.T) {
	conn := NewMockConnection()
	c := NewClient(conn, "alice", ClientOptions{})
	conn.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client did not notice disconnect")
	}
	assert.ErrorIs(t, c.Err(), io.EOF)
}
