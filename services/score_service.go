// services/score_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/persistence"
	"github.com/wfunc/tetrisbattle/state"
)

const (
	DefaultLeaderboardSize = 50
	MaxLeaderboardSize     = 100
)

var ErrInvalidScore = errors.New("invalid score")

type ScoreService struct {
	db persistence.Database
}

func NewScoreService(db persistence.Database) *ScoreService {
	return &ScoreService{db: db}
}

// Submit 校验并保存一条成绩
func (s *ScoreService) Submit(rec models.ScoreRecord) (models.ScoreRecord, error) {
	rec.PlayerID = strings.TrimSpace(rec.PlayerID)
	if rec.PlayerID == "" || rec.Score < 0 || rec.Lines < 0 || rec.Duration < 0 {
		return rec, ErrInvalidScore
	}
	if rec.Level < 1 {
		rec.Level = 1
	}
	if rec.Mode == "" {
		rec.Mode = models.ModeSolo
	}
	if err := s.db.SaveScore(&rec); err != nil {
		return rec, fmt.Errorf("save score: %w", err)
	}
	return rec, nil
}

// SubmitSummary 保存引擎结束时的汇总
func (s *ScoreService) SubmitSummary(playerID, mode string, sum engine.Summary) (models.ScoreRecord, error) {
	return s.Submit(models.ScoreRecord{
		PlayerID: playerID,
		Score:    sum.Score,
		Lines:    sum.Lines,
		Level:    sum.Level,
		Duration: int(sum.PlayTime.Seconds()),
		Mode:     mode,
	})
}

// Leaderboard 排行榜，limit<=0 时取默认值
func (s *ScoreService) Leaderboard(limit int) ([]models.ScoreRecord, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	return s.db.TopScores(limit)
}

func (s *ScoreService) PlayerStats(playerID string) (models.PlayerStats, error) {
	return s.db.PlayerStats(playerID)
}

// RecordMatch 保存房间结算结果
func (s *ScoreService) RecordMatch(result state.MatchResult) error {
	return s.db.SaveMatch(&models.MatchRecord{
		RoomID:   result.RoomID,
		Winner:   result.Winner,
		Loser:    result.Loser,
		Scores:   result.Scores,
		Duration: int(result.Duration.Seconds()),
	})
}
