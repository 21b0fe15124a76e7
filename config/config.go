package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Game        GameConfig        `mapstructure:"game"`
	Multiplayer MultiplayerConfig `mapstructure:"multiplayer"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress      string `mapstructure:"http_address"`
	RPCAddress       string `mapstructure:"rpc_address"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

type DatabaseConfig struct {
	// Driver selects the store: memory, gorm or postgres.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig holds the rules of a single game.
type GameConfig struct {
	BoardWidth          int           `mapstructure:"board_width"`
	BoardHeight         int           `mapstructure:"board_height"`
	InitialDropInterval time.Duration `mapstructure:"initial_drop_interval"`
	MinDropInterval     time.Duration `mapstructure:"min_drop_interval"`
	SpeedIncreaseFactor float64       `mapstructure:"speed_increase_factor"`
	LinesPerLevel       int           `mapstructure:"lines_per_level"`
	PowerupsEnabled     bool          `mapstructure:"powerups_enabled"`
	BombOnLock          bool          `mapstructure:"bomb_on_lock"`
	SlowTimeDuration    time.Duration `mapstructure:"slow_time_duration"`
	SlowTimeCooldown    time.Duration `mapstructure:"slow_time_cooldown"`
	BombCooldown        time.Duration `mapstructure:"bomb_cooldown"`
	FreezeLineDuration  time.Duration `mapstructure:"freeze_line_duration"`
	FreezeLineCooldown  time.Duration `mapstructure:"freeze_line_cooldown"`
	PowerupQueueSize    int           `mapstructure:"powerup_queue_size"`
}

type MultiplayerConfig struct {
	SyncRate  time.Duration `mapstructure:"sync_rate"`
	ServerURL string        `mapstructure:"server_url"`
	Room      string        `mapstructure:"room"`
	Player    string        `mapstructure:"player"`

	// LeaderboardAddress is the gRPC endpoint scores are submitted to.
	// Empty keeps scores in the local database.
	LeaderboardAddress string `mapstructure:"leaderboard_address"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]interface{}{
	"server.http_address":      ":8080",
	"server.rpc_address":       ":9090",
	"server.metrics_namespace": "tetrisbattle",

	"database.driver":            "memory",
	"database.postgres.host":     "localhost",
	"database.postgres.port":     5432,
	"database.postgres.user":     "postgres",
	"database.postgres.password": "",
	"database.postgres.dbname":   "tetrisbattle",

	"game.board_width":           10,
	"game.board_height":          20,
	"game.initial_drop_interval": time.Second,
	"game.min_drop_interval":     50 * time.Millisecond,
	"game.speed_increase_factor": 0.9,
	"game.lines_per_level":       10,
	"game.powerups_enabled":      true,
	"game.bomb_on_lock":          false,
	"game.slow_time_duration":    5 * time.Second,
	"game.slow_time_cooldown":    15 * time.Second,
	"game.bomb_cooldown":         20 * time.Second,
	"game.freeze_line_duration":  3 * time.Second,
	"game.freeze_line_cooldown":  12 * time.Second,
	"game.powerup_queue_size":    3,

	"multiplayer.sync_rate":  100 * time.Millisecond,
	"multiplayer.server_url": "",
	"multiplayer.room":       "",
	"multiplayer.player":     "",

	"multiplayer.leaderboard_address": "",

	"log.level":       "info",
	"log.development": false,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TETRIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads config.yaml from path. A missing file leaves the defaults
// (and any TETRIS_* environment overrides) in place.
func LoadConfig(path string) (config *Config, err error) {
	v := newViper()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}

// Default returns the built-in configuration without reading disk or env.
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
