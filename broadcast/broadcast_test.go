package broadcast

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/network"
	"github.com/wfunc/tetrisbattle/room"
	"github.com/wfunc/tetrisbattle/session"
)

// MockConnection counts the messages sent to it.
type MockConnection struct {
	mu   sync.Mutex
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) count(msgID uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.sent {
		if id == msgID {
			n++
		}
	}
	return n
}

func TestRoomBroadcaster(t *testing.T) {
	rooms := room.NewRoomManager(room.Hooks{})
	defer rooms.Close()
	sessions := session.NewManager()
	b := NewRoomBroadcaster(rooms, sessions)

	connA, connB, connC := &MockConnection{}, &MockConnection{}, &MockConnection{}
	a := session.NewSession("sa", connA)
	a.SetPlayerID("alice")
	bb := session.NewSession("sb", connB)
	bb.SetPlayerID("bob")
	c := session.NewSession("sc", connC)
	c.SetPlayerID("carol")
	for _, s := range []*session.Session{a, bb, c} {
		sessions.Add(s)
	}

	r1 := rooms.CreateRoom("r1", "one", 3, b)
	require.NoError(t, r1.AddPlayer(a))
	require.NoError(t, r1.AddPlayer(bb))
	r2 := rooms.CreateRoom("r2", "two", 2, b)
	require.NoError(t, r2.AddPlayer(c))

	require.NoError(t, b.BroadcastToRoom("r1", network.MsgTypeGameState, []byte("{}")))
	assert.Equal(t, 1, connA.count(network.MsgTypeGameState))
	assert.Equal(t, 1, connB.count(network.MsgTypeGameState))
	assert.Equal(t, 0, connC.count(network.MsgTypeGameState))

	assert.ErrorIs(t, b.BroadcastToRoom("missing", 1, nil), ErrRoomNotFound)

	require.NoError(t, b.BroadcastToAll(network.MsgTypeHeartbeat, nil))
	assert.Equal(t, 1, connC.count(network.MsgTypeHeartbeat))

	require.NoError(t, b.BroadcastToPlayers([]string{"carol"}, network.MsgTypeGameEnd, []byte("{}")))
	assert.Equal(t, 1, connC.count(network.MsgTypeGameEnd))
	assert.Equal(t, 0, connA.count(network.MsgTypeGameEnd))
}
