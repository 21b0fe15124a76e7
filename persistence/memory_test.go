package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/config"
	"github.com/wfunc/tetrisbattle/models"
)

func TestMemoryStore_Scores(t *testing.T) {
	db := NewMemoryStore()

	for _, rec := range []models.ScoreRecord{
		{PlayerID: "alice", Score: 500, Lines: 5},
		{PlayerID: "bob", Score: 900, Lines: 9},
		{PlayerID: "alice", Score: 1200, Lines: 12},
		{PlayerID: "carol", Score: 900, Lines: 8},
	} {
		r := rec
		require.NoError(t, db.SaveScore(&r))
		assert.NotZero(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}

	top, err := db.TopScores(3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "alice", top[0].PlayerID)
	assert.Equal(t, "bob", top[1].PlayerID, "ties keep submission order")
	assert.Equal(t, "carol", top[2].PlayerID)

	stats, err := db.PlayerStats("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.GamesPlayed)
	assert.Equal(t, int64(1700), stats.TotalScore)
	assert.Equal(t, 1200, stats.BestScore)
	assert.Equal(t, int64(17), stats.TotalLines)
	assert.Equal(t, 0, stats.GamesWon)

	require.NoError(t, db.SaveMatch(&models.MatchRecord{RoomID: "r1", Winner: "alice", Loser: "bob"}))
	stats, _ = db.PlayerStats("alice")
	assert.Equal(t, 1, stats.GamesWon)
	assert.Len(t, db.Matches(), 1)
}

func TestMemoryStore_SavedGames(t *testing.T) {
	db := NewMemoryStore()

	_, err := db.LoadGame("alice")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	snap := []byte(`{"score":10}`)
	require.NoError(t, db.SaveGame(&models.SavedGame{PlayerID: "alice", Snapshot: snap, Score: 10}))
	snap[2] = 'X'

	game, err := db.LoadGame("alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":10}`, string(game.Snapshot))
	assert.Equal(t, 10, game.Score)

	require.NoError(t, db.DeleteGame("alice"))
	_, err = db.LoadGame("alice")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStore_Achievements(t *testing.T) {
	db := NewMemoryStore()

	require.NoError(t, db.SaveAchievements("alice", []string{"FIRST_TETRIS"}))
	require.NoError(t, db.SaveAchievements("alice", []string{"FIRST_TETRIS", "SURVIVOR"}))

	recs, err := db.LoadAchievements("alice")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "FIRST_TETRIS", recs[0].AchievementID)
	assert.Equal(t, "SURVIVOR", recs[1].AchievementID)

	recs, err = db.LoadAchievements("bob")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOpen(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, db)

	_, err = Open(config.DatabaseConfig{Driver: "mongo"})
	assert.Error(t, err)
}
