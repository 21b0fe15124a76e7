// services/save_service.go
package services

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/persistence"
)

// Game 存档需要的引擎能力
type Game interface {
	State() engine.Snapshot
	SetState(s engine.Snapshot)
}

type SaveService struct {
	db persistence.Database
}

func NewSaveService(db persistence.Database) *SaveService {
	return &SaveService{db: db}
}

// Save 覆盖玩家的存档
func (s *SaveService) Save(playerID string, game Game) error {
	snap := game.State()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.SaveGame(&models.SavedGame{
		PlayerID: playerID,
		Snapshot: data,
		Score:    snap.Score,
		Level:    snap.Level,
	})
}

// Resume 读取存档并恢复到引擎，没有存档时返回 persistence.ErrRecordNotFound
func (s *SaveService) Resume(playerID string, game Game) error {
	saved, err := s.db.LoadGame(playerID)
	if err != nil {
		return err
	}
	snap, err := engine.DecodeSnapshot(saved.Snapshot)
	if err != nil {
		return err
	}
	game.SetState(snap)
	return nil
}

func (s *SaveService) Discard(playerID string) error {
	return s.db.DeleteGame(playerID)
}
