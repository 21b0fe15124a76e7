// achievement/achievement.go
package achievement

import (
	"math"
	"sync"
	"time"

	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/models"
)

type ID string

const (
	FirstTetris ID = "FIRST_TETRIS"
	BackToBack  ID = "BACK_TO_BACK"
	TSpinMaster ID = "T_SPIN_MASTER"
	SpeedDemon  ID = "SPEED_DEMON"
	Survivor    ID = "SURVIVOR"
)

const (
	SpeedDemonLevel = 10
	SurvivorTime    = 5 * time.Minute
)

type Definition struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog 成就列表，顺序即展示顺序
var Catalog = []Definition{
	{FirstTetris, "First Tetris!", "Clear 4 lines at once"},
	{BackToBack, "Back to Back", "Clear Tetris twice in a row"},
	{TSpinMaster, "T-Spin Master", "Perform a T-Spin"},
	{SpeedDemon, "Speed Demon", "Reach level 10"},
	{Survivor, "Survivor", "Survive 5 minutes"},
}

func Lookup(id ID) (Definition, bool) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Store 成就持久化，persistence.Database 满足该接口
type Store interface {
	SaveAchievements(playerID string, ids []string) error
	LoadAchievements(playerID string) ([]models.AchievementRecord, error)
}

type Status struct {
	Definition
	Unlocked bool `json:"unlocked"`
}

// Tracker 接收引擎事件并解锁成就。store 为 nil 时只保存在内存里。
type Tracker struct {
	mu       sync.Mutex
	player   string
	store    Store
	unlocked map[ID]bool
	// OnUnlock 在锁外调用
	OnUnlock func(Definition)
}

var _ engine.Notifier = (*Tracker)(nil)

func NewTracker(player string, store Store) *Tracker {
	return &Tracker{
		player:   player,
		store:    store,
		unlocked: make(map[ID]bool),
	}
}

// Load 从存储恢复已解锁的成就
func (t *Tracker) Load() error {
	if t.store == nil {
		return nil
	}
	recs, err := t.store.LoadAchievements(t.player)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range recs {
		if _, ok := Lookup(ID(rec.AchievementID)); ok {
			t.unlocked[ID(rec.AchievementID)] = true
		}
	}
	return nil
}

// Notify implements engine.Notifier.
func (t *Tracker) Notify(ev engine.Event) {
	switch ev.Kind {
	case engine.EventTetris:
		t.Unlock(FirstTetris)
		if ev.Consecutive >= 2 {
			t.Unlock(BackToBack)
		}
	case engine.EventBackToBack:
		if ev.Consecutive >= 2 {
			t.Unlock(BackToBack)
		}
	case engine.EventTSpin:
		t.Unlock(TSpinMaster)
	case engine.EventLevelUp:
		if ev.Level >= SpeedDemonLevel {
			t.Unlock(SpeedDemon)
		}
	case engine.EventSurvival:
		if ev.Survived >= SurvivorTime {
			t.Unlock(Survivor)
		}
	}
}

// Unlock 返回是否为首次解锁
func (t *Tracker) Unlock(id ID) bool {
	def, ok := Lookup(id)
	if !ok {
		return false
	}
	t.mu.Lock()
	if t.unlocked[id] {
		t.mu.Unlock()
		return false
	}
	t.unlocked[id] = true
	cb := t.OnUnlock
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveAchievements(t.player, []string{string(id)}); err != nil {
			logger.Log.Warnf("成就 %s 保存失败: %v", id, err)
		}
	}
	logger.Log.Infof("玩家 %s 解锁成就 %s", t.player, id)
	if cb != nil {
		cb(def)
	}
	return true
}

func (t *Tracker) IsUnlocked(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unlocked[id]
}

func (t *Tracker) All() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Status, len(Catalog))
	for i, d := range Catalog {
		out[i] = Status{Definition: d, Unlocked: t.unlocked[d.ID]}
	}
	return out
}

func (t *Tracker) UnlockedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.unlocked)
}

// Progress 解锁百分比，四舍五入
func (t *Tracker) Progress() int {
	return int(math.Round(float64(t.UnlockedCount()) * 100 / float64(len(Catalog))))
}

// Reset 只清空内存状态
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unlocked = make(map[ID]bool)
}
