// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/tetrisbattle/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormScore{},
		&models.GormSavedGame{},
		&models.GormMatch{},
		&models.GormAchievement{},
	)
}

// SaveScore 保存成绩
func (p *GormPostgreSQL) SaveScore(rec *models.ScoreRecord) error {
	row := models.GormScore{
		PlayerID: rec.PlayerID,
		Score:    rec.Score,
		Lines:    rec.Lines,
		Level:    rec.Level,
		Duration: rec.Duration,
		Mode:     rec.Mode,
	}
	if err := p.db.Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

// TopScores 排行榜
func (p *GormPostgreSQL) TopScores(limit int) ([]models.ScoreRecord, error) {
	var rows []models.GormScore
	err := p.db.Order("score DESC").Order("created_at ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.ScoreRecord, len(rows))
	for i, row := range rows {
		out[i] = row.Record()
	}
	return out, nil
}

// PlayerStats 使用原生SQL聚合玩家统计
func (p *GormPostgreSQL) PlayerStats(playerID string) (models.PlayerStats, error) {
	stats := models.PlayerStats{PlayerID: playerID}

	err := p.db.Raw(`
        SELECT
            COUNT(*) AS games_played,
            COALESCE(SUM(score), 0) AS total_score,
            COALESCE(MAX(score), 0) AS best_score,
            COALESCE(SUM(lines), 0) AS total_lines
        FROM scores
        WHERE player_id = ? AND deleted_at IS NULL`,
		playerID,
	).Scan(&stats).Error
	if err != nil {
		return stats, err
	}

	var won int64
	if err := p.db.Model(&models.GormMatch{}).Where("winner = ?", playerID).Count(&won).Error; err != nil {
		return stats, err
	}
	stats.GamesWon = int(won)
	return stats, nil
}

// SaveGame 覆盖玩家存档
func (p *GormPostgreSQL) SaveGame(game *models.SavedGame) error {
	row := models.GormSavedGame{
		PlayerID:  game.PlayerID,
		Snapshot:  string(game.Snapshot),
		Score:     game.Score,
		Level:     game.Level,
		UpdatedAt: time.Now(),
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot", "score", "level", "updated_at"}),
	}).Create(&row).Error
}

func (p *GormPostgreSQL) LoadGame(playerID string) (*models.SavedGame, error) {
	var row models.GormSavedGame
	if err := p.db.Where("player_id = ?", playerID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.SavedGame{
		PlayerID:  row.PlayerID,
		Snapshot:  []byte(row.Snapshot),
		Score:     row.Score,
		Level:     row.Level,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (p *GormPostgreSQL) DeleteGame(playerID string) error {
	return p.db.Where("player_id = ?", playerID).Delete(&models.GormSavedGame{}).Error
}

// SaveMatch 保存对战记录
func (p *GormPostgreSQL) SaveMatch(match *models.MatchRecord) error {
	row := models.GormMatch{
		RoomID:   match.RoomID,
		Winner:   match.Winner,
		Loser:    match.Loser,
		Scores:   match.Scores,
		Duration: match.Duration,
	}
	if err := p.db.Create(&row).Error; err != nil {
		return err
	}
	match.ID = row.ID
	match.CreatedAt = row.CreatedAt
	return nil
}

// SaveAchievements 在事务中写入新解锁的成就，已存在的忽略
func (p *GormPostgreSQL) SaveAchievements(playerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return p.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			row := models.GormAchievement{PlayerID: playerID, AchievementID: id, UnlockedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *GormPostgreSQL) LoadAchievements(playerID string) ([]models.AchievementRecord, error) {
	var rows []models.GormAchievement
	if err := p.db.Where("player_id = ?", playerID).Order("unlocked_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.AchievementRecord, len(rows))
	for i, row := range rows {
		out[i] = models.AchievementRecord{
			PlayerID:      row.PlayerID,
			AchievementID: row.AchievementID,
			UnlockedAt:    row.UnlockedAt,
		}
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}
