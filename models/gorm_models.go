// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormScore 成绩表
type GormScore struct {
	gorm.Model
	PlayerID string `gorm:"index;not null"`
	Score    int    `gorm:"index;not null"`
	Lines    int    `gorm:"default:0"`
	Level    int    `gorm:"default:1"`
	Duration int    `gorm:"default:0"`
	Mode     string `gorm:"size:16;default:solo"`
}

func (GormScore) TableName() string { return "scores" }

func (g GormScore) Record() ScoreRecord {
	return ScoreRecord{
		ID:        g.ID,
		PlayerID:  g.PlayerID,
		Score:     g.Score,
		Lines:     g.Lines,
		Level:     g.Level,
		Duration:  g.Duration,
		Mode:      g.Mode,
		CreatedAt: g.CreatedAt,
	}
}

// GormSavedGame 存档表，每个玩家一条
type GormSavedGame struct {
	PlayerID  string `gorm:"primaryKey"`
	Snapshot  string `gorm:"type:jsonb;not null"`
	Score     int
	Level     int
	UpdatedAt time.Time
}

func (GormSavedGame) TableName() string { return "saved_games" }

// GormMatch 对战记录表
type GormMatch struct {
	gorm.Model
	RoomID   string         `gorm:"index;not null"`
	Winner   string         `gorm:"index"`
	Loser    string         `gorm:"index"`
	Scores   map[string]int `gorm:"serializer:json;type:jsonb"`
	Duration int            `gorm:"default:0"`
}

func (GormMatch) TableName() string { return "matches" }

// GormAchievement 成就表
type GormAchievement struct {
	PlayerID      string `gorm:"primaryKey"`
	AchievementID string `gorm:"primaryKey"`
	UnlockedAt    time.Time
}

func (GormAchievement) TableName() string { return "achievements" }
