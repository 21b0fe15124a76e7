// persistence/memory.go
package persistence

import (
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tetrisbattle/models"
)

// MemoryStore 内存实现，用于单机运行和测试
type MemoryStore struct {
	mu           sync.RWMutex
	scores       []models.ScoreRecord
	games        map[string]models.SavedGame
	matches      []models.MatchRecord
	achievements map[string][]models.AchievementRecord
	nextID       uint
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:        make(map[string]models.SavedGame),
		achievements: make(map[string][]models.AchievementRecord),
		now:          time.Now,
	}
}

func (m *MemoryStore) SaveScore(rec *models.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = m.now()
	m.scores = append(m.scores, *rec)
	return nil
}

func (m *MemoryStore) TopScores(limit int) ([]models.ScoreRecord, error) {
	m.mu.RLock()
	out := append([]models.ScoreRecord(nil), m.scores...)
	m.mu.RUnlock()

	// 同分按提交顺序
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PlayerStats(playerID string) (models.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.PlayerStats{PlayerID: playerID}
	for _, rec := range m.scores {
		if rec.PlayerID != playerID {
			continue
		}
		stats.GamesPlayed++
		stats.TotalScore += int64(rec.Score)
		stats.TotalLines += int64(rec.Lines)
		if rec.Score > stats.BestScore {
			stats.BestScore = rec.Score
		}
	}
	for _, match := range m.matches {
		if match.Winner == playerID {
			stats.GamesWon++
		}
	}
	return stats, nil
}

func (m *MemoryStore) SaveGame(game *models.SavedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *game
	cp.Snapshot = append([]byte(nil), game.Snapshot...)
	cp.UpdatedAt = m.now()
	m.games[game.PlayerID] = cp
	return nil
}

func (m *MemoryStore) LoadGame(playerID string) (*models.SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	game, ok := m.games[playerID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &game, nil
}

func (m *MemoryStore) DeleteGame(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, playerID)
	return nil
}

func (m *MemoryStore) SaveMatch(match *models.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	match.ID = m.nextID
	match.CreatedAt = m.now()
	m.matches = append(m.matches, *match)
	return nil
}

// Matches 返回全部对战记录
func (m *MemoryStore) Matches() []models.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.MatchRecord(nil), m.matches...)
}

func (m *MemoryStore) SaveAchievements(playerID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := make(map[string]bool)
	for _, rec := range m.achievements[playerID] {
		have[rec.AchievementID] = true
	}
	now := m.now()
	for _, id := range ids {
		if have[id] {
			continue
		}
		have[id] = true
		m.achievements[playerID] = append(m.achievements[playerID], models.AchievementRecord{
			PlayerID:      playerID,
			AchievementID: id,
			UnlockedAt:    now,
		})
	}
	return nil
}

func (m *MemoryStore) LoadAchievements(playerID string) ([]models.AchievementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AchievementRecord(nil), m.achievements[playerID]...), nil
}

func (m *MemoryStore) Close() error { return nil }
