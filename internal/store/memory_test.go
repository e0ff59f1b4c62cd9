package store

import (
	"context"
	"testing"

	"github.com/pgnlab/insight/internal/domain"
)

func gameReport(index int, white, black string) *domain.GameReport {
	return &domain.GameReport{
		Index: index,
		Record: &domain.GameRecord{
			Tags:   map[string]string{"White": white, "Black": black},
			Result: domain.ResultWhiteWin,
		},
		Valid: true,
	}
}

func TestMemoryArchiveRecentGames(t *testing.T) {
	arch := NewMemoryArchive()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := arch.SaveGame(ctx, "batch-1", gameReport(i, "Alice", "Bob"), "pgn"); err != nil {
			t.Fatalf("SaveGame %d: %v", i, err)
		}
	}
	if err := arch.SaveGame(ctx, "batch-1", gameReport(9, "Carol", "Dave"), "pgn"); err != nil {
		t.Fatalf("SaveGame other players: %v", err)
	}

	games, err := arch.RecentGames(ctx, "Alice", 2)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("limit not applied: %d games", len(games))
	}
	for _, g := range games {
		if g.White != "Alice" && g.Black != "Alice" {
			t.Fatalf("wrong player's game: %+v", g)
		}
	}

	games, err = arch.RecentGames(ctx, "Nobody", 10)
	if err != nil || len(games) != 0 {
		t.Fatalf("unknown player: games=%d err=%v", len(games), err)
	}
}

func TestMemoryArchiveUpsertsSameGame(t *testing.T) {
	arch := NewMemoryArchive()
	ctx := context.Background()

	rep := gameReport(0, "Alice", "Bob")
	if err := arch.SaveGame(ctx, "batch-1", rep, "v1"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := arch.SaveGame(ctx, "batch-1", rep, "v2"); err != nil {
		t.Fatalf("second save: %v", err)
	}

	games, err := arch.RecentGames(ctx, "Alice", 10)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 1 || games[0].PGN != "v2" {
		t.Fatalf("expected one upserted game: %+v", games)
	}
}

func TestMemoryArchivePlayerStats(t *testing.T) {
	arch := NewMemoryArchive()
	stats := &domain.PlayerStats{Player: "Alice", Games: 4, Wins: 2}

	if err := arch.SavePlayerStats(context.Background(), "batch-1", stats); err != nil {
		t.Fatalf("SavePlayerStats: %v", err)
	}
	// the archive keeps a copy, later mutation must not leak in
	stats.Wins = 99
	if err := arch.SavePlayerStats(context.Background(), "batch-2", stats); err != nil {
		t.Fatalf("SavePlayerStats second batch: %v", err)
	}
}
