package versus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/board"
	"github.com/wfunc/tetrisbattle/engine"
)

// MockChannel delivers publishes synchronously to subscribers.
type MockChannel struct {
	mu        sync.Mutex
	States    []PlayerState
	Garbage   []GarbageEntry
	stateSubs []func(PlayerState)
	garbSubs  []func(GarbageEntry)
	Status    RoomStatus
}

func (m *MockChannel) PublishState(_ context.Context, _, _ string, st PlayerState) error {
	m.mu.Lock()
	m.States = append(m.States, st)
	subs := append([]func(PlayerState){}, m.stateSubs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
	return nil
}

func (m *MockChannel) SubscribeStates(_ string, fn func(PlayerState)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateSubs = append(m.stateSubs, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stateSubs = nil
	}, nil
}

func (m *MockChannel) AppendGarbage(_ context.Context, _, _ string, g GarbageEntry) error {
	m.mu.Lock()
	m.Garbage = append(m.Garbage, g)
	subs := append([]func(GarbageEntry){}, m.garbSubs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(g)
	}
	return nil
}

func (m *MockChannel) SubscribeGarbage(_ string, fn func(GarbageEntry)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.garbSubs = append(m.garbSubs, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.garbSubs = nil
	}, nil
}

func (m *MockChannel) RoomStatus(context.Context, string) (RoomStatus, error) {
	return m.Status, nil
}

func (m *MockChannel) stateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.States)
}

// fakeGame stands in for the engine.
type fakeGame struct {
	mu        sync.Mutex
	snap      engine.Snapshot
	garbage   []int
	paused    bool
	over      bool
	observers []engine.Observer
}

func (g *fakeGame) State() engine.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

func (g *fakeGame) ReceiveGarbage(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.garbage = append(g.garbage, n)
}

func (g *fakeGame) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
	return true
}

func (g *fakeGame) IsGameOver() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.over
}

func (g *fakeGame) Subscribe(o engine.Observer) {
	g.observers = append(g.observers, o)
}

func newFakeGame() *fakeGame {
	return &fakeGame{snap: engine.Snapshot{
		Board:        board.State{Width: 10, Height: 20},
		CurrentPiece: &engine.PieceState{Type: "T", X: 4},
		NextPiece:    &engine.PieceState{Type: "I"},
		Score:        120,
		Level:        1,
		Lines:        1,
	}}
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestGarbageFor(t *testing.T) {
	assert.Equal(t, 0, GarbageFor(0))
	assert.Equal(t, 0, GarbageFor(1))
	assert.Equal(t, 1, GarbageFor(2))
	assert.Equal(t, 2, GarbageFor(3))
	assert.Equal(t, 4, GarbageFor(4))
}

func TestSync_NoChannel(t *testing.T) {
	g := newFakeGame()
	s := New(g, nil, "r1", "alice", Options{})

	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.Start(), ErrNoChannel)
	s.Tick(t0)
	s.OnLock(engine.LockResult{Clear: board.ClearResult{Count: 4}})
	_, err := s.RoomStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.False(t, s.Stats().Enabled)
}

func TestSync_Start(t *testing.T) {
	g := newFakeGame()
	ch := &MockChannel{}
	s := New(g, ch, "r1", "alice", Options{})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Len(t, g.observers, 1)
	assert.Len(t, ch.garbSubs, 1)
	assert.Len(t, ch.stateSubs, 1)

	s.Stop()
	assert.Empty(t, ch.garbSubs)
	assert.Empty(t, ch.stateSubs)
}

func TestSync_TickThrottle(t *testing.T) {
	g := newFakeGame()
	ch := &MockChannel{}
	s := New(g, ch, "r1", "alice", Options{SyncRate: 100 * time.Millisecond})
	require.NoError(t, s.Start())

	s.Tick(t0)
	s.Tick(t0.Add(50 * time.Millisecond))
	assert.Equal(t, 1, ch.stateCount())

	s.Tick(t0.Add(100 * time.Millisecond))
	assert.Equal(t, 2, ch.stateCount())

	st := ch.States[0]
	assert.Equal(t, "alice", st.PlayerID)
	assert.Equal(t, 120, st.Score)
	require.NotNil(t, st.CurrentPiece)
	assert.Equal(t, "T", st.CurrentPiece.Type)
	assert.Equal(t, "I", st.NextPiece.Type)
	assert.Nil(t, st.HoldPiece)
	assert.Equal(t, t0.UnixMilli(), st.Timestamp)

	s.SetSyncRate(time.Second)
	s.Tick(t0.Add(300 * time.Millisecond))
	assert.Equal(t, 2, ch.stateCount())
	assert.Equal(t, time.Second, s.Stats().SyncRate)
}

func TestSync_SendsGarbage(t *testing.T) {
	tests := []struct {
		cleared int
		sent    int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 4},
	}
	for _, tt := range tests {
		ch := &MockChannel{}
		s := New(newFakeGame(), ch, "r1", "alice", Options{Clock: func() time.Time { return t0 }})
		s.OnLock(engine.LockResult{Clear: board.ClearResult{Count: tt.cleared}})

		if tt.sent == 0 {
			assert.Empty(t, ch.Garbage, "cleared %d", tt.cleared)
			continue
		}
		require.Len(t, ch.Garbage, 1, "cleared %d", tt.cleared)
		assert.Equal(t, tt.sent, ch.Garbage[0].Lines)
		assert.Equal(t, "alice", ch.Garbage[0].From)
		assert.NotEmpty(t, ch.Garbage[0].ID)
		assert.Equal(t, t0.UnixMilli(), ch.Garbage[0].Timestamp)
		assert.Equal(t, tt.sent, s.Stats().GarbageSent)
	}
}

func TestSync_ReceivesGarbage(t *testing.T) {
	g := newFakeGame()
	ch := &MockChannel{}
	s := New(g, ch, "r1", "alice", Options{})
	require.NoError(t, s.Start())

	// own attack is ignored
	s.OnLock(engine.LockResult{Clear: board.ClearResult{Count: 4}})
	assert.Empty(t, g.garbage)

	require.NoError(t, ch.AppendGarbage(context.Background(), "r1", "bob", GarbageEntry{ID: "g1", From: "bob", Lines: 2}))
	require.NoError(t, ch.AppendGarbage(context.Background(), "r1", "bob", GarbageEntry{ID: "g2", From: "bob", Lines: 0}))
	require.NoError(t, ch.AppendGarbage(context.Background(), "r1", "bob", GarbageEntry{ID: "g3", From: "bob", Lines: 1}))

	assert.Equal(t, []int{2, 1}, g.garbage)
	st := s.Stats()
	assert.Equal(t, 3, st.GarbageReceived)
	assert.Equal(t, 0, st.PendingGarbage)
}

// gatedGame blocks the first garbage application until released.
type gatedGame struct {
	*fakeGame
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedGame) ReceiveGarbage(n int) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.fakeGame.ReceiveGarbage(n)
}

func TestSync_GarbageAppliedInArrivalOrder(t *testing.T) {
	g := &gatedGame{fakeGame: newFakeGame(), entered: make(chan struct{}), release: make(chan struct{})}
	s := New(g, &MockChannel{}, "r1", "alice", Options{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.handleGarbage(GarbageEntry{ID: "g1", From: "bob", Lines: 1})
	}()
	<-g.entered
	go func() {
		defer wg.Done()
		s.handleGarbage(GarbageEntry{ID: "g2", From: "bob", Lines: 2})
	}()

	// 第二条在第一条应用期间到达
	time.Sleep(20 * time.Millisecond)
	close(g.release)
	wg.Wait()

	assert.Equal(t, []int{1, 2}, g.garbage)
	assert.Equal(t, 3, s.Stats().GarbageReceived)
}

func TestSync_OpponentState(t *testing.T) {
	g := newFakeGame()
	ch := &MockChannel{}
	var results []Result
	s := New(g, ch, "r1", "alice", Options{OnResult: func(r Result) { results = append(results, r) }})
	require.NoError(t, s.Start())

	_, ok := s.Opponent()
	assert.False(t, ok)

	require.NoError(t, ch.PublishState(context.Background(), "r1", "bob", PlayerState{PlayerID: "bob", Score: 500}))
	opp, ok := s.Opponent()
	require.True(t, ok)
	assert.Equal(t, 500, opp.Score)
	assert.True(t, s.Stats().OpponentConnected)
	assert.False(t, g.paused)

	require.NoError(t, ch.PublishState(context.Background(), "r1", "bob", PlayerState{PlayerID: "bob", GameOver: true, FinalScore: 900}))
	assert.True(t, g.paused)
	assert.Equal(t, ResultOpponentLost, s.Result())

	// a second game over does not fire again
	require.NoError(t, ch.PublishState(context.Background(), "r1", "bob", PlayerState{PlayerID: "bob", GameOver: true}))
	assert.Equal(t, []Result{ResultOpponentLost}, results)
}

func TestSync_LocalGameOver(t *testing.T) {
	g := newFakeGame()
	ch := &MockChannel{}
	s := New(g, ch, "r1", "alice", Options{Clock: func() time.Time { return t0 }})
	require.NoError(t, s.Start())

	g.over = true
	s.OnGameOver(engine.Summary{Score: 1500})

	require.Equal(t, 1, ch.stateCount())
	st := ch.States[0]
	assert.True(t, st.GameOver)
	assert.Equal(t, 1500, st.FinalScore)
	assert.Equal(t, ResultLocalLost, s.Result())
	assert.False(t, g.paused, "own state echo must not pause")
}

func TestSync_RoomStatus(t *testing.T) {
	ch := &MockChannel{Status: RoomPlaying}
	s := New(newFakeGame(), ch, "r1", "alice", Options{})
	st, err := s.RoomStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RoomPlaying, st)
}

func TestSync_WithEngine(t *testing.T) {
	opts := engine.DefaultOptions()
	e := engine.New(opts)
	ch := &MockChannel{}
	s := New(e, ch, "r1", "alice", Options{})
	require.NoError(t, s.Start())
	require.True(t, e.Start())

	require.NoError(t, ch.AppendGarbage(context.Background(), "r1", "bob", GarbageEntry{From: "bob", Lines: 3}))
	assert.Equal(t, 3, e.State().Board.GarbageLines)
}
