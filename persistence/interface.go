// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/tetrisbattle/config"
	"github.com/wfunc/tetrisbattle/models"
)

// Database 数据库接口
type Database interface {
	SaveScore(rec *models.ScoreRecord) error
	TopScores(limit int) ([]models.ScoreRecord, error)
	PlayerStats(playerID string) (models.PlayerStats, error)
	SaveGame(game *models.SavedGame) error
	LoadGame(playerID string) (*models.SavedGame, error)
	DeleteGame(playerID string) error
	SaveMatch(match *models.MatchRecord) error
	SaveAchievements(playerID string, ids []string) error
	LoadAchievements(playerID string) ([]models.AchievementRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// Open 按配置选择存储实现
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
