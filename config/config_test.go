package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10, cfg.Game.BoardWidth)
	assert.Equal(t, 20, cfg.Game.BoardHeight)
	assert.Equal(t, time.Second, cfg.Game.InitialDropInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.MinDropInterval)
	assert.InDelta(t, 0.9, cfg.Game.SpeedIncreaseFactor, 1e-9)
	assert.True(t, cfg.Game.PowerupsEnabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Multiplayer.SyncRate)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 12*time.Second, cfg.Game.FreezeLineCooldown)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("game:\n  board_width: 12\n  slow_time_duration: 8s\nmultiplayer:\n  room: abc\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Game.BoardWidth)
	assert.Equal(t, 8*time.Second, cfg.Game.SlowTimeDuration)
	assert.Equal(t, "abc", cfg.Multiplayer.Room)
	assert.Equal(t, 20, cfg.Game.BoardHeight, "unset keys keep defaults")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TETRIS_MULTIPLAYER_PLAYER", "alice")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Multiplayer.Player)
}
