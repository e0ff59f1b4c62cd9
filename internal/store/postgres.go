package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/pgnlab/insight/internal/domain"
)

// Archive persists finished analysis output for later retrieval. The
// Postgres implementation is used when DATABASE_URL is configured; the
// in-memory one otherwise.
type Archive interface {
	SaveGame(ctx context.Context, batchID string, rep *domain.GameReport, pgnText string) error
	SavePlayerStats(ctx context.Context, batchID string, stats *domain.PlayerStats) error
	RecentGames(ctx context.Context, player string, limit int) ([]*ArchivedGame, error)
	Close() error
}

// ArchivedGame is the flattened row stored per game.
type ArchivedGame struct {
	BatchID   string    `json:"batch_id"`
	Index     int       `json:"index"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"`
	Opening   string    `json:"opening"`
	ECO       string    `json:"eco,omitempty"`
	MoveCount int       `json:"move_count"`
	Valid     bool      `json:"valid"`
	PGN       string    `json:"pgn,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pgArchive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &pgArchive{db: db}, nil
}

func (a *pgArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *pgArchive) SaveGame(ctx context.Context, batchID string, rep *domain.GameReport, pgnText string) error {
	if a == nil || a.db == nil || rep == nil || rep.Record == nil {
		return nil
	}
	movesSAN, err := json.Marshal(rep.Record.SANMoves())
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const q = `INSERT INTO insight_games (
			batch_id, game_index, white, black, result,
			opening, eco, move_count, valid, truncated_at,
			moves_san, pgn, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13)
		ON CONFLICT (batch_id, game_index) DO UPDATE SET
			white=EXCLUDED.white,
			black=EXCLUDED.black,
			result=EXCLUDED.result,
			opening=EXCLUDED.opening,
			eco=EXCLUDED.eco,
			move_count=EXCLUDED.move_count,
			valid=EXCLUDED.valid,
			truncated_at=EXCLUDED.truncated_at,
			moves_san=EXCLUDED.moves_san,
			pgn=EXCLUDED.pgn`

	_, err = a.db.ExecContext(ctx, q,
		batchID, rep.Index,
		rep.Record.White(), rep.Record.Black(), string(rep.Record.Result),
		rep.Opening.Name, rep.Opening.ECO, rep.Record.PlyCount(), rep.Valid, rep.TruncatedAt,
		string(movesSAN), pgnText, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (a *pgArchive) SavePlayerStats(ctx context.Context, batchID string, stats *domain.PlayerStats) error {
	if a == nil || a.db == nil || stats == nil {
		return nil
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal player stats: %w", err)
	}

	const q = `INSERT INTO insight_player_stats (
			batch_id, player, games, wins, losses, draws, stats, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8)
		ON CONFLICT (batch_id, player) DO UPDATE SET
			games=EXCLUDED.games,
			wins=EXCLUDED.wins,
			losses=EXCLUDED.losses,
			draws=EXCLUDED.draws,
			stats=EXCLUDED.stats,
			updated_at=EXCLUDED.updated_at`

	_, err = a.db.ExecContext(ctx, q,
		batchID, stats.Player, stats.Games, stats.Wins, stats.Losses, stats.Draws,
		string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert player stats: %w", err)
	}
	return nil
}

func (a *pgArchive) RecentGames(ctx context.Context, player string, limit int) ([]*ArchivedGame, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT batch_id, game_index, white, black, result,
			opening, eco, move_count, valid, pgn, created_at
		FROM insight_games
		WHERE white = $1 OR black = $1
		ORDER BY created_at DESC, game_index DESC
		LIMIT $2`

	rows, err := a.db.QueryContext(ctx, q, player, limit)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	games := make([]*ArchivedGame, 0, limit)
	for rows.Next() {
		var g ArchivedGame
		var eco, pgnText sql.NullString
		if err := rows.Scan(
			&g.BatchID, &g.Index, &g.White, &g.Black, &g.Result,
			&g.Opening, &eco, &g.MoveCount, &g.Valid, &pgnText, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.ECO = eco.String
		g.PGN = pgnText.String
		games = append(games, &g)
	}
	return games, rows.Err()
}
