// versus/sync.go
package versus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/logger"
)

const DefaultSyncRate = 100 * time.Millisecond

// Result is the terminal outcome seen by the local player.
type Result int

const (
	ResultNone Result = iota
	ResultOpponentLost
	ResultLocalLost
)

func (r Result) String() string {
	switch r {
	case ResultOpponentLost:
		return "opponent_lost"
	case ResultLocalLost:
		return "local_lost"
	}
	return "none"
}

// Stats describes the sync link.
type Stats struct {
	Enabled           bool
	SyncRate          time.Duration
	LastSync          time.Time
	OpponentConnected bool
	PendingGarbage    int
	GarbageSent       int
	GarbageReceived   int
}

type Options struct {
	SyncRate time.Duration
	Clock    func() time.Time
	// OnResult fires once when the match outcome is known.
	OnResult func(Result)
}

// Sync bridges a local engine to an opponent over a Channel. A nil channel
// leaves every method a no-op so single-player play continues.
type Sync struct {
	game    Game
	channel Channel
	room    string
	player  string
	opts    Options

	mu              sync.Mutex
	lastSync        time.Time
	garbageQueue    []int
	opponent        *PlayerState
	result          Result
	garbageSent     int
	garbageReceived int
	cancels         []func()
	started         bool

	// drainMu 保证收到的垃圾行按到达顺序落到棋盘上
	drainMu sync.Mutex
}

func New(game Game, channel Channel, room, player string, opts Options) *Sync {
	if opts.SyncRate <= 0 {
		opts.SyncRate = DefaultSyncRate
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Sync{game: game, channel: channel, room: room, player: player, opts: opts}
}

func (s *Sync) Enabled() bool {
	return s.channel != nil
}

// Start subscribes to the room streams and to the local engine's lock events.
func (s *Sync) Start() error {
	if s.channel == nil {
		return ErrNoChannel
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	cancelGarbage, err := s.channel.SubscribeGarbage(s.room, s.handleGarbage)
	if err != nil {
		return err
	}
	cancelStates, err := s.channel.SubscribeStates(s.room, s.handleState)
	if err != nil {
		cancelGarbage()
		return err
	}

	s.mu.Lock()
	s.cancels = append(s.cancels, cancelGarbage, cancelStates)
	s.mu.Unlock()

	s.game.Subscribe(s)
	return nil
}

// Stop drops the subscriptions. The engine keeps running.
func (s *Sync) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Tick publishes a snapshot when the sync interval has elapsed.
func (s *Sync) Tick(now time.Time) {
	if s.channel == nil {
		return
	}
	s.mu.Lock()
	if now.Sub(s.lastSync) < s.opts.SyncRate {
		s.mu.Unlock()
		return
	}
	s.lastSync = now
	s.mu.Unlock()

	s.publishState(s.snapshot(now))
}

func (s *Sync) snapshot(now time.Time) PlayerState {
	snap := s.game.State()
	st := PlayerState{
		PlayerID:  s.player,
		Score:     snap.Score,
		Level:     snap.Level,
		Lines:     snap.Lines,
		Board:     snap.Board.Grid,
		GameOver:  snap.IsGameOver,
		Timestamp: now.UnixMilli(),
	}
	if p := snap.CurrentPiece; p != nil {
		st.CurrentPiece = &PieceSummary{Type: p.Type, X: p.X, Y: p.Y, Rotation: p.Rotation}
	}
	if p := snap.NextPiece; p != nil {
		st.NextPiece = &PieceSummary{Type: p.Type}
	}
	if p := snap.HoldPiece; p != nil {
		st.HoldPiece = &PieceSummary{Type: p.Type}
	}
	if st.GameOver {
		st.FinalScore = st.Score
	}
	return st
}

func (s *Sync) publishState(st PlayerState) {
	if err := s.channel.PublishState(context.Background(), s.room, s.player, st); err != nil {
		logger.Log.Warnf("versus: publish state for %s/%s: %v", s.room, s.player, err)
	}
}

// OnLock sends garbage for multi-line clears.
func (s *Sync) OnLock(res engine.LockResult) {
	if s.channel == nil || res.Clear.Count < 2 {
		return
	}
	lines := GarbageFor(res.Clear.Count)
	if lines == 0 {
		return
	}
	entry := GarbageEntry{
		ID:        uuid.NewString(),
		From:      s.player,
		Lines:     lines,
		Timestamp: s.opts.Clock().UnixMilli(),
	}
	if err := s.channel.AppendGarbage(context.Background(), s.room, s.player, entry); err != nil {
		logger.Log.Warnf("versus: send %d garbage lines: %v", lines, err)
		return
	}
	s.mu.Lock()
	s.garbageSent += lines
	s.mu.Unlock()
}

// OnGameOver publishes the final state right away.
func (s *Sync) OnGameOver(sum engine.Summary) {
	if s.channel == nil {
		return
	}
	st := s.snapshot(s.opts.Clock())
	st.GameOver = true
	st.FinalScore = sum.Score
	s.publishState(st)
	s.finish(ResultLocalLost)
}

func (s *Sync) handleGarbage(g GarbageEntry) {
	if g.From == s.player || g.Lines <= 0 {
		return
	}
	s.mu.Lock()
	s.garbageQueue = append(s.garbageQueue, g.Lines)
	s.mu.Unlock()
	s.drainGarbage()
}

// drainGarbage applies queued entries one at a time.
func (s *Sync) drainGarbage() {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.garbageQueue) == 0 {
			s.mu.Unlock()
			return
		}
		lines := s.garbageQueue[0]
		s.garbageQueue = s.garbageQueue[1:]
		s.garbageReceived += lines
		s.mu.Unlock()

		s.game.ReceiveGarbage(lines)
	}
}

func (s *Sync) handleState(st PlayerState) {
	if st.PlayerID == s.player {
		return
	}
	s.mu.Lock()
	cp := st
	s.opponent = &cp
	s.mu.Unlock()

	if st.GameOver && !s.game.IsGameOver() {
		s.game.Pause()
		s.finish(ResultOpponentLost)
	}
}

func (s *Sync) finish(r Result) {
	s.mu.Lock()
	if s.result != ResultNone {
		s.mu.Unlock()
		return
	}
	s.result = r
	cb := s.opts.OnResult
	s.mu.Unlock()

	logger.Log.Infof("versus: room %s player %s result %s", s.room, s.player, r)
	if cb != nil {
		cb(r)
	}
}

// Opponent returns the last received opponent snapshot. It is read-only
// display data.
func (s *Sync) Opponent() (PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opponent == nil {
		return PlayerState{}, false
	}
	return *s.opponent, true
}

func (s *Sync) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// RoomStatus reads the relay room phase; without a channel it is unknown.
func (s *Sync) RoomStatus(ctx context.Context) (RoomStatus, error) {
	if s.channel == nil {
		return RoomUnknown, ErrNoChannel
	}
	return s.channel.RoomStatus(ctx, s.room)
}

func (s *Sync) SetSyncRate(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.opts.SyncRate = d
	s.mu.Unlock()
}

func (s *Sync) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Enabled:           s.channel != nil,
		SyncRate:          s.opts.SyncRate,
		LastSync:          s.lastSync,
		OpponentConnected: s.opponent != nil,
		PendingGarbage:    len(s.garbageQueue),
		GarbageSent:       s.garbageSent,
		GarbageReceived:   s.garbageReceived,
	}
}
