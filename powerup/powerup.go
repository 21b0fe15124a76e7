// powerup/powerup.go
package powerup

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/kamstrup/intmap"
)

// Kind is a power-up variant.
type Kind int

const (
	SlowTime Kind = iota
	BombPiece
	FreezeLine
)

var kindNames = map[Kind]string{
	SlowTime:   "SLOW_TIME",
	BombPiece:  "BOMB_PIECE",
	FreezeLine: "FREEZE_LINE",
}

// Kinds lists every power-up kind.
func Kinds() []Kind {
	return []Kind{SlowTime, BombPiece, FreezeLine}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts SLOW_TIME style names as well as short aliases
// ("slow", "bomb", "freeze").
func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "SLOW":
		return SlowTime, nil
	case "BOMB":
		return BombPiece, nil
	case "FREEZE":
		return FreezeLine, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown power-up %q", s)
}

// Random picks a kind uniformly.
func Random(rng *rand.Rand) Kind {
	kinds := Kinds()
	return kinds[rng.IntN(len(kinds))]
}

// Settings are the timing rules for each kind. A zero duration means the
// effect is instantaneous.
type Settings struct {
	SlowTimeDuration   time.Duration
	SlowTimeCooldown   time.Duration
	BombCooldown       time.Duration
	FreezeLineDuration time.Duration
	FreezeLineCooldown time.Duration
	QueueSize          int
}

func DefaultSettings() Settings {
	return Settings{
		SlowTimeDuration:   5 * time.Second,
		SlowTimeCooldown:   15 * time.Second,
		BombCooldown:       20 * time.Second,
		FreezeLineDuration: 3 * time.Second,
		FreezeLineCooldown: 12 * time.Second,
		QueueSize:          3,
	}
}

func (s Settings) Duration(k Kind) time.Duration {
	switch k {
	case SlowTime:
		return s.SlowTimeDuration
	case FreezeLine:
		return s.FreezeLineDuration
	}
	return 0
}

func (s Settings) Cooldown(k Kind) time.Duration {
	switch k {
	case SlowTime:
		return s.SlowTimeCooldown
	case BombPiece:
		return s.BombCooldown
	case FreezeLine:
		return s.FreezeLineCooldown
	}
	return 0
}

// Effect is an active duration-based power-up.
type Effect struct {
	Kind  Kind
	Until time.Time
}

// Status is a point-in-time view of one kind.
type Status struct {
	Kind              string        `json:"kind"`
	Active            bool          `json:"active"`
	OnCooldown        bool          `json:"onCooldown"`
	CooldownRemaining time.Duration `json:"cooldownRemaining"`
	CanUse            bool          `json:"canUse"`
}

// System tracks active effects and cooldowns. It does not apply effects;
// the engine does that when Activate succeeds.
type System struct {
	settings  Settings
	enabled   bool
	active    *intmap.Map[Kind, Effect]
	cooldowns *intmap.Map[Kind, time.Time]
	queue     []Kind
}

func New(settings Settings, enabled bool) *System {
	if settings.QueueSize <= 0 {
		settings.QueueSize = DefaultSettings().QueueSize
	}
	return &System{
		settings:  settings,
		enabled:   enabled,
		active:    intmap.New[Kind, Effect](len(kindNames)),
		cooldowns: intmap.New[Kind, time.Time](len(kindNames)),
	}
}

func (s *System) Settings() Settings { return s.settings }

func (s *System) Enabled() bool { return s.enabled }

func (s *System) SetEnabled(enabled bool) { s.enabled = enabled }

// Activate starts kind at now. It fails when power-ups are disabled, the
// kind is unknown, or it is still cooling down.
func (s *System) Activate(kind Kind, now time.Time) bool {
	if !s.enabled || !kind.Valid() || s.OnCooldown(kind, now) {
		return false
	}
	s.cooldowns.Put(kind, now.Add(s.settings.Cooldown(kind)))
	if d := s.settings.Duration(kind); d > 0 {
		s.active.Put(kind, Effect{Kind: kind, Until: now.Add(d)})
	}
	return true
}

func (s *System) IsActive(kind Kind) bool {
	_, ok := s.active.Get(kind)
	return ok
}

func (s *System) OnCooldown(kind Kind, now time.Time) bool {
	until, ok := s.cooldowns.Get(kind)
	return ok && now.Before(until)
}

// Expire removes effects whose end time has passed and returns their kinds
// in declaration order. Elapsed cooldowns are dropped too.
func (s *System) Expire(now time.Time) []Kind {
	var expired []Kind
	for _, k := range Kinds() {
		if e, ok := s.active.Get(k); ok && now.After(e.Until) {
			s.active.Del(k)
			expired = append(expired, k)
		}
		if until, ok := s.cooldowns.Get(k); ok && !now.Before(until) {
			s.cooldowns.Del(k)
		}
	}
	return expired
}

// Active returns the running effects.
func (s *System) Active() []Effect {
	effects := make([]Effect, 0, s.active.Len())
	for _, k := range Kinds() {
		if e, ok := s.active.Get(k); ok {
			effects = append(effects, e)
		}
	}
	return effects
}

func (s *System) Status(kind Kind, now time.Time) Status {
	st := Status{Kind: kind.String(), Active: s.IsActive(kind)}
	if until, ok := s.cooldowns.Get(kind); ok && now.Before(until) {
		st.OnCooldown = true
		st.CooldownRemaining = until.Sub(now)
	}
	st.CanUse = s.enabled && !st.OnCooldown
	return st
}

// Statuses reports every kind keyed by its name.
func (s *System) Statuses(now time.Time) map[string]Status {
	out := make(map[string]Status, len(kindNames))
	for _, k := range Kinds() {
		out[k.String()] = s.Status(k, now)
	}
	return out
}

// Enqueue stores a kind for later use; it fails when the queue is full.
func (s *System) Enqueue(kind Kind) bool {
	if !kind.Valid() || len(s.queue) >= s.settings.QueueSize {
		return false
	}
	s.queue = append(s.queue, kind)
	return true
}

// Take removes and returns the queued kind at index.
func (s *System) Take(index int) (Kind, bool) {
	if index < 0 || index >= len(s.queue) {
		return 0, false
	}
	k := s.queue[index]
	s.queue = append(s.queue[:index], s.queue[index+1:]...)
	return k, true
}

// Requeue puts a kind back at index, used when a queued activation fails.
func (s *System) Requeue(index int, kind Kind) {
	if index < 0 || index > len(s.queue) {
		index = len(s.queue)
	}
	s.queue = append(s.queue, 0)
	copy(s.queue[index+1:], s.queue[index:])
	s.queue[index] = kind
}

func (s *System) Queue() []Kind {
	return append([]Kind(nil), s.queue...)
}

// Reset clears effects, cooldowns and the queue.
func (s *System) Reset() {
	s.active.Clear()
	s.cooldowns.Clear()
	s.queue = nil
}
