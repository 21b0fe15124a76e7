package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/persistence"
	"github.com/wfunc/tetrisbattle/state"
)

func TestScoreService_Submit(t *testing.T) {
	svc := NewScoreService(persistence.NewMemoryStore())

	tests := []struct {
		name string
		rec  models.ScoreRecord
		err  error
	}{
		{"valid", models.ScoreRecord{PlayerID: "alice", Score: 100}, nil},
		{"blank player", models.ScoreRecord{PlayerID: "  ", Score: 100}, ErrInvalidScore},
		{"negative score", models.ScoreRecord{PlayerID: "alice", Score: -1}, ErrInvalidScore},
		{"negative lines", models.ScoreRecord{PlayerID: "alice", Lines: -1}, ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := svc.Submit(tt.rec)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, rec.Level)
			assert.Equal(t, models.ModeSolo, rec.Mode)
			assert.NotZero(t, rec.ID)
		})
	}
}

func TestScoreService_Leaderboard(t *testing.T) {
	svc := NewScoreService(persistence.NewMemoryStore())
	for i := 0; i < 120; i++ {
		_, err := svc.Submit(models.ScoreRecord{PlayerID: "p", Score: i})
		require.NoError(t, err)
	}

	top, err := svc.Leaderboard(0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultLeaderboardSize)
	assert.Equal(t, 119, top[0].Score)

	top, _ = svc.Leaderboard(500)
	assert.Len(t, top, MaxLeaderboardSize)

	top, _ = svc.Leaderboard(3)
	assert.Len(t, top, 3)
}

func TestScoreService_SummaryAndMatch(t *testing.T) {
	svc := NewScoreService(persistence.NewMemoryStore())

	rec, err := svc.SubmitSummary("alice", models.ModeVersus, engine.Summary{Score: 800, Lines: 4, Level: 1, PlayTime: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 90, rec.Duration)
	assert.Equal(t, models.ModeVersus, rec.Mode)

	require.NoError(t, svc.RecordMatch(state.MatchResult{RoomID: "r1", Winner: "alice", Loser: "bob", Duration: time.Minute}))

	stats, err := svc.PlayerStats("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.GamesWon)
	assert.Equal(t, 800, stats.BestScore)
}

func TestSaveService_RoundTrip(t *testing.T) {
	db := persistence.NewMemoryStore()
	svc := NewSaveService(db)

	src := engine.New(engine.DefaultOptions())
	require.True(t, src.Start())
	src.HardDrop()
	require.NoError(t, svc.Save("alice", src))

	dst := engine.New(engine.DefaultOptions())
	require.NoError(t, svc.Resume("alice", dst))
	assert.Equal(t, src.Score(), dst.Score())
	assert.Equal(t, src.State().Board.Grid, dst.State().Board.Grid)
	assert.Equal(t, src.Current(), dst.Current())

	require.NoError(t, svc.Discard("alice"))
	assert.ErrorIs(t, svc.Resume("alice", dst), persistence.ErrRecordNotFound)
}
