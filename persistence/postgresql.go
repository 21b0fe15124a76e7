// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/tetrisbattle/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 基于 lib/pq 的原生 SQL 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	connector, err := pq.NewConnector(connStr)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS scores (
            id SERIAL PRIMARY KEY,
            player_id VARCHAR(64) NOT NULL,
            score INTEGER NOT NULL,
            lines INTEGER NOT NULL DEFAULT 0,
            level INTEGER NOT NULL DEFAULT 1,
            duration INTEGER NOT NULL DEFAULT 0,
            mode VARCHAR(16) NOT NULL DEFAULT 'solo',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS saved_games (
            player_id VARCHAR(64) PRIMARY KEY,
            snapshot JSONB NOT NULL,
            score INTEGER NOT NULL DEFAULT 0,
            level INTEGER NOT NULL DEFAULT 1,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS matches (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            winner VARCHAR(64),
            loser VARCHAR(64),
            scores JSONB NOT NULL,
            duration INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS achievements (
            player_id VARCHAR(64) NOT NULL,
            achievement_id VARCHAR(64) NOT NULL,
            unlocked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (player_id, achievement_id)
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_scores_player_id ON scores(player_id);
        CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
        CREATE INDEX IF NOT EXISTS idx_matches_winner ON matches(winner);
    `)

	return err
}

func (p *PostgreSQL) SaveScore(rec *models.ScoreRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO scores (player_id, score, lines, level, duration, mode)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `
	var id int64
	err := p.db.QueryRowContext(ctx, query,
		rec.PlayerID, rec.Score, rec.Lines, rec.Level, rec.Duration, rec.Mode,
	).Scan(&id, &rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.ID = uint(id)
	return nil
}

func (p *PostgreSQL) TopScores(limit int) ([]models.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, player_id, score, lines, level, duration, mode, created_at
        FROM scores
        ORDER BY score DESC, created_at ASC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoreRecord
	for rows.Next() {
		var (
			rec models.ScoreRecord
			id  int64
		)
		if err := rows.Scan(&id, &rec.PlayerID, &rec.Score, &rec.Lines, &rec.Level, &rec.Duration, &rec.Mode, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ID = uint(id)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) PlayerStats(playerID string) (models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats := models.PlayerStats{PlayerID: playerID}
	err := p.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(score), 0),
            COALESCE(MAX(score), 0),
            COALESCE(SUM(lines), 0),
            (SELECT COUNT(*) FROM matches WHERE winner = $1)
        FROM scores
        WHERE player_id = $1`, playerID,
	).Scan(&stats.GamesPlayed, &stats.TotalScore, &stats.BestScore, &stats.TotalLines, &stats.GamesWon)
	return stats, err
}

// SaveGame 使用 UPSERT 覆盖存档
func (p *PostgreSQL) SaveGame(game *models.SavedGame) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO saved_games (player_id, snapshot, score, level)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (player_id)
        DO UPDATE SET snapshot = $2, score = $3, level = $4, updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query, game.PlayerID, []byte(game.Snapshot), game.Score, game.Level)
	return err
}

func (p *PostgreSQL) LoadGame(playerID string) (*models.SavedGame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	game := &models.SavedGame{PlayerID: playerID}
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT snapshot, score, level, updated_at FROM saved_games WHERE player_id = $1`, playerID,
	).Scan(&data, &game.Score, &game.Level, &game.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	game.Snapshot = data
	return game, nil
}

func (p *PostgreSQL) DeleteGame(playerID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM saved_games WHERE player_id = $1`, playerID)
	return err
}

func (p *PostgreSQL) SaveMatch(match *models.MatchRecord) error {
	scores, err := json.Marshal(match.Scores)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var id int64
	err = p.db.QueryRowContext(ctx, `
        INSERT INTO matches (room_id, winner, loser, scores, duration)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`,
		match.RoomID, match.Winner, match.Loser, scores, match.Duration,
	).Scan(&id, &match.CreatedAt)
	if err != nil {
		return err
	}
	match.ID = uint(id)
	return nil
}

// SaveAchievements 批量写入，pq.Array 展开ID列表
func (p *PostgreSQL) SaveAchievements(playerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
        INSERT INTO achievements (player_id, achievement_id)
        SELECT $1, unnest($2::text[])
        ON CONFLICT DO NOTHING`,
		playerID, pq.Array(ids))
	return err
}

func (p *PostgreSQL) LoadAchievements(playerID string) ([]models.AchievementRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT achievement_id, unlocked_at FROM achievements
        WHERE player_id = $1 ORDER BY unlocked_at`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AchievementRecord
	for rows.Next() {
		rec := models.AchievementRecord{PlayerID: playerID}
		if err := rows.Scan(&rec.AchievementID, &rec.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
