package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/tetrisbattle/achievement"
	"github.com/wfunc/tetrisbattle/config"
	"github.com/wfunc/tetrisbattle/engine"
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/network"
	"github.com/wfunc/tetrisbattle/persistence"
	"github.com/wfunc/tetrisbattle/powerup"
	"github.com/wfunc/tetrisbattle/rpc"
	"github.com/wfunc/tetrisbattle/services"
	"github.com/wfunc/tetrisbattle/timer"
	"github.com/wfunc/tetrisbattle/versus"
)

const frame = 16 * time.Millisecond

const help = `commands:
  a / left      d / right     s / down      drop
  w / rotate    ccw           c / hold      p / pause
  slow | bomb | freeze        use <n>       grant
  save          resume        show          achievements
  status        new           q / quit`

// scoreReporter 游戏结束时提交成绩
type scoreReporter struct {
	player string
	mode   string
	local  *services.ScoreService
	remote *rpc.Client
}

func (r *scoreReporter) OnLock(engine.LockResult) {}

func (r *scoreReporter) OnGameOver(sum engine.Summary) {
	fmt.Printf("GAME OVER  score=%d lines=%d level=%d time=%s\n",
		sum.Score, sum.Lines, sum.Level, sum.PlayTime.Round(time.Second))

	go func() {
		if r.remote == nil {
			if _, err := r.local.SubmitSummary(r.player, r.mode, sum); err != nil {
				logger.Log.Warnf("Submit score: %v", err)
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := r.remote.SubmitScore(ctx, models.ScoreRecord{
			PlayerID: r.player,
			Score:    sum.Score,
			Lines:    sum.Lines,
			Level:    sum.Level,
			Duration: int(sum.PlayTime.Seconds()),
			Mode:     r.mode,
		})
		if err != nil {
			logger.Log.Warnf("Submit score to leaderboard: %v", err)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		logger.Init()
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.InitWithLevel(cfg.Log.Level, cfg.Log.Development); err != nil {
		logger.Init()
	}
	defer logger.Sync()

	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	player := cfg.Multiplayer.Player
	if player == "" {
		player = "player-" + uuid.NewString()[:8]
	}

	tracker := achievement.NewTracker(player, db)
	if err := tracker.Load(); err != nil {
		logger.Log.Warnf("Load achievements: %v", err)
	}
	tracker.OnUnlock = func(d achievement.Definition) {
		fmt.Printf("*** Achievement unlocked: %s (%s)\n", d.Name, d.Description)
	}

	opts := engine.OptionsFromConfig(cfg.Game)
	opts.Notifier = tracker
	eng := engine.New(opts)
	saves := services.NewSaveService(db)

	reporter := &scoreReporter{player: player, mode: models.ModeSolo, local: services.NewScoreService(db)}
	if addr := cfg.Multiplayer.LeaderboardAddress; addr != "" {
		remote, err := rpc.Dial(addr)
		if err != nil {
			logger.Log.Fatalf("Dial leaderboard %s: %v", addr, err)
		}
		defer remote.Close()
		reporter.remote = remote
	}
	eng.Subscribe(reporter)

	// 对战模式: 连接服务器并等待开局
	started := make(chan struct{}, 1)
	var client *network.Client
	var roomID string
	if cfg.Multiplayer.ServerURL != "" {
		reporter.mode = models.ModeVersus
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = network.Dial(ctx, cfg.Multiplayer.ServerURL, player, network.ClientOptions{
			OnGameStart: func(m network.GameStart) {
				fmt.Printf("Match started: %s\n", strings.Join(m.Players, " vs "))
				select {
				case started <- struct{}{}:
				default:
				}
			},
			OnGameEnd: func(m network.GameEnd) {
				fmt.Printf("Match over: winner=%s loser=%s scores=%v\n", m.Winner, m.Loser, m.Scores)
			},
		})
		if err != nil {
			cancel()
			logger.Log.Fatalf("Dial %s: %v", cfg.Multiplayer.ServerURL, err)
		}
		resp, err := client.Join(ctx, cfg.Multiplayer.Room)
		cancel()
		if err != nil {
			logger.Log.Fatalf("Join room: %v", err)
		}
		roomID = resp.RoomID
		fmt.Printf("Joined room %s as %s, players: %v\n", roomID, player, resp.Players)
		defer client.Close()
	} else {
		started <- struct{}{}
	}

	var channel versus.Channel
	if client != nil {
		channel = client
	}
	syncer := versus.New(eng, channel, roomID, player, versus.Options{
		SyncRate: cfg.Multiplayer.SyncRate,
		OnResult: func(r versus.Result) { fmt.Printf("Versus result: %s\n", r) },
	})
	if err := syncer.Start(); err != nil {
		logger.Log.Fatalf("Start sync: %v", err)
	}
	defer syncer.Stop()

	timers := timer.NewTimerManager(0)
	defer timers.Stop()
	timers.AddTimer(0, frame, func(now time.Time) {
		eng.Tick(now)
		syncer.Tick(now)
	})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	var disconnected <-chan struct{}
	if client != nil {
		disconnected = client.Done()
	}

	fmt.Println(help)
	for {
		select {
		case <-started:
			eng.Start()
			render(eng.View())
		case <-interrupt:
			fmt.Println("Interrupt received, exiting.")
			return
		case <-disconnected:
			fmt.Printf("Disconnected: %v\n", client.Err())
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !command(line, eng, syncer, saves, tracker, player) {
				return
			}
		}
	}
}

// command 执行一条输入，返回 false 时退出
func command(line string, eng *engine.Engine, syncer *versus.Sync, saves *services.SaveService, tracker *achievement.Tracker, player string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		render(eng.View())
		return true
	}

	switch fields[0] {
	case "a", "left":
		eng.MoveLeft()
	case "d", "right":
		eng.MoveRight()
	case "s", "down":
		eng.MoveDown()
	case "drop":
		eng.HardDrop()
	case "w", "rotate":
		eng.Rotate()
	case "ccw":
		eng.RotateCounter()
	case "c", "hold":
		eng.Hold()
	case "p", "pause":
		eng.TogglePause()
	case "slow", "bomb", "freeze":
		kind, _ := powerup.ParseKind(fields[0])
		if !eng.ActivatePowerup(kind) {
			fmt.Printf("%s not available: %+v\n", kind, eng.PowerupStatus(kind))
		}
	case "grant":
		if kind, ok := eng.GrantRandomPowerup(); ok {
			fmt.Printf("Queued %s\n", kind)
		}
	case "use":
		idx := 0
		if len(fields) > 1 {
			idx, _ = strconv.Atoi(fields[1])
		}
		if !eng.UseQueuedPowerup(idx) {
			fmt.Println("Cannot use queued power-up", idx)
		}
	case "save":
		if err := saves.Save(player, eng); err != nil {
			fmt.Println("Save failed:", err)
		} else {
			fmt.Println("Saved.")
		}
	case "resume":
		if err := saves.Resume(player, eng); err != nil {
			fmt.Println("Resume failed:", err)
		}
	case "new":
		eng.Reset()
		eng.Start()
	case "status":
		if opp, ok := syncer.Opponent(); ok {
			fmt.Printf("Opponent %s: score=%d lines=%d level=%d over=%v\n",
				opp.PlayerID, opp.Score, opp.Lines, opp.Level, opp.GameOver)
		}
		fmt.Printf("Sync: %+v\n", syncer.Stats())
		return true
	case "achievements":
		for _, st := range tracker.All() {
			mark := " "
			if st.Unlocked {
				mark = "x"
			}
			fmt.Printf("[%s] %-14s %s\n", mark, st.Name, st.Description)
		}
		fmt.Printf("%d%% complete\n", tracker.Progress())
		return true
	case "show":
	case "h", "help":
		fmt.Println(help)
		return true
	case "q", "quit":
		return false
	default:
		fmt.Println("Unknown command:", line)
		return true
	}
	render(eng.View())
	return true
}

func render(v engine.View) {
	rows := make([][]byte, v.Height)
	for y := range rows {
		rows[y] = make([]byte, v.Width)
		for x := range rows[y] {
			rows[y][x] = '.'
			if y < len(v.Grid) && x < len(v.Grid[y]) && v.Grid[y][x] != "" {
				rows[y][x] = '#'
			}
		}
	}
	paint := func(p *engine.PieceView, c byte) {
		if p == nil {
			return
		}
		for _, pt := range p.Cells {
			if pt.Y >= 0 && pt.Y < v.Height && pt.X >= 0 && pt.X < v.Width {
				rows[pt.Y][pt.X] = c
			}
		}
	}
	paint(v.Ghost, ':')
	paint(v.Active, '@')

	var sb strings.Builder
	for y, row := range rows {
		sb.WriteString("|")
		sb.Write(row)
		sb.WriteString("|")
		switch y {
		case 0:
			fmt.Fprintf(&sb, "  score %d", v.Score)
		case 1:
			fmt.Fprintf(&sb, "  lines %d  level %d", v.Lines, v.Level)
		case 2:
			fmt.Fprintf(&sb, "  next %s  hold %s", v.Next, v.Held)
		case 3:
			fmt.Fprintf(&sb, "  %s", v.Phase)
		case 4:
			if len(v.Queue) > 0 {
				fmt.Fprintf(&sb, "  queue %v", v.Queue)
			}
		}
		sb.WriteString("\n")
	}
	fmt.Print(sb.String())
}
