// models/models.go
package models

import (
	"encoding/json"
	"time"
)

const (
	ModeSolo   = "solo"
	ModeVersus = "versus"
)

// ScoreRecord 一局结束后的成绩
type ScoreRecord struct {
	ID        uint      `json:"id"`
	PlayerID  string    `json:"player_id"`
	Score     int       `json:"score"`
	Lines     int       `json:"lines"`
	Level     int       `json:"level"`
	Duration  int       `json:"duration"` // 游戏时长(秒)
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedGame 玩家的存档，Snapshot 为引擎快照 JSON
type SavedGame struct {
	PlayerID  string          `json:"player_id"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Score     int             `json:"score"`
	Level     int             `json:"level"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MatchRecord 对战结果
type MatchRecord struct {
	ID        uint           `json:"id"`
	RoomID    string         `json:"room_id"`
	Winner    string         `json:"winner"`
	Loser     string         `json:"loser"`
	Scores    map[string]int `json:"scores"`
	Duration  int            `json:"duration"` // 对战时长(秒)
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	PlayerID    string `json:"player_id"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
	TotalScore  int64  `json:"total_score"`
	BestScore   int    `json:"best_score"`
	TotalLines  int64  `json:"total_lines"`
}

// AchievementRecord 已解锁的成就
type AchievementRecord struct {
	PlayerID      string    `json:"player_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}
