package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/board"
	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/versus"
)

func TestHub_PublishState(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	var got []versus.PlayerState
	cancel, err := h.SubscribeStates("r1", func(st versus.PlayerState) { got = append(got, st) })
	require.NoError(t, err)

	require.NoError(t, h.PublishState(ctx, "r1", "bob", versus.PlayerState{Score: 10}))
	require.NoError(t, h.PublishState(ctx, "r1", "alice", versus.PlayerState{PlayerID: "alice", Score: 20}))
	require.NoError(t, h.PublishState(ctx, "r1", "bob", versus.PlayerState{Score: 30}))
	require.NoError(t, h.PublishState(ctx, "r2", "carol", versus.PlayerState{}))

	require.Len(t, got, 3)
	assert.Equal(t, "bob", got[0].PlayerID)

	states := h.States("r1")
	require.Len(t, states, 2)
	assert.Equal(t, "alice", states[0].PlayerID)
	assert.Equal(t, 30, states[1].Score)

	cancel()
	require.NoError(t, h.PublishState(ctx, "r1", "bob", versus.PlayerState{}))
	assert.Len(t, got, 3)
}

func TestHub_Garbage(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	var got []versus.GarbageEntry
	_, err := h.SubscribeGarbage("r1", func(g versus.GarbageEntry) { got = append(got, g) })
	require.NoError(t, err)

	require.NoError(t, h.AppendGarbage(ctx, "r1", "alice", versus.GarbageEntry{ID: "g1", Lines: 2}))
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].From)

	for i := 0; i < maxGarbageLog+10; i++ {
		require.NoError(t, h.AppendGarbage(ctx, "r1", "alice", versus.GarbageEntry{Lines: 1}))
	}
	assert.Len(t, h.Garbage("r1"), maxGarbageLog)

	h.ResetRoom("r1")
	assert.Empty(t, h.Garbage("r1"))
	assert.Empty(t, h.States("r1"))
}

func TestHub_RoomStatus(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	st, err := h.RoomStatus(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, versus.RoomUnknown, st)

	h.SetRoomStatus("r1", versus.RoomPlaying)
	st, err = h.RoomStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, versus.RoomPlaying, st)

	h.DeleteRoom("r1")
	st, _ = h.RoomStatus(ctx, "r1")
	assert.Equal(t, versus.RoomUnknown, st)
}

func TestHub_VersusMatch(t *testing.T) {
	h := NewHub()

	alice := engine.New(engine.DefaultOptions())
	bob := engine.New(engine.DefaultOptions())
	require.True(t, alice.Start())
	require.True(t, bob.Start())

	syncA := versus.New(alice, h, "r1", "alice", versus.Options{})
	syncB := versus.New(bob, h, "r1", "bob", versus.Options{})
	require.NoError(t, syncA.Start())
	require.NoError(t, syncB.Start())

	// alice clears four rows
	syncA.OnLock(engine.LockResult{Clear: board.ClearResult{Count: 4, WasTetris: true}})
	assert.Equal(t, 4, bob.State().Board.GarbageLines)
	assert.Equal(t, 0, alice.State().Board.GarbageLines)
	assert.Equal(t, 4, syncB.Stats().GarbageReceived)

	// bob tops out
	syncB.OnGameOver(engine.Summary{Score: 100})
	assert.True(t, alice.IsPaused())
	assert.Equal(t, versus.ResultOpponentLost, syncA.Result())
	assert.Equal(t, versus.ResultLocalLost, syncB.Result())

	opp, ok := syncA.Opponent()
	require.True(t, ok)
	assert.True(t, opp.GameOver)
	assert.Equal(t, 100, opp.FinalScore)
}
