package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/pgnlab/insight/internal/domain"
)

func sampleBatch() *domain.BatchReport {
	rec := &domain.GameRecord{
		Tags: map[string]string{
			"White": "Alice",
			"Black": "Bob",
			"Date":  "2024.03.01",
		},
		Moves: []domain.MoveRecord{
			{Ply: 1, Color: domain.White, SAN: "e4"},
			{Ply: 2, Color: domain.Black, SAN: "d5"},
			{Ply: 3, Color: domain.White, SAN: "exd5"},
		},
		Result: domain.ResultWhiteWin,
	}
	return &domain.BatchReport{
		ID:         "batch-7",
		CreatedAt:  time.Now(),
		GameCount:  1,
		ValidGames: 1,
		Games: []*domain.GameReport{{
			Index:   0,
			Record:  rec,
			Opening: domain.OpeningLabel{Name: "Scandinavian Defense", ECO: "B01"},
			Features: []domain.MoveFeatures{
				{Ply: 1, Color: domain.White, SAN: "e4"},
				{Ply: 2, Color: domain.Black, SAN: "d5"},
				{Ply: 3, Color: domain.White, SAN: "exd5", Capture: true, MaterialDiff: 1},
			},
			Valid: true,
		}},
		Players: map[string]*domain.PlayerStats{
			"Alice": {
				Player: "Alice", Games: 1, Wins: 1,
				WhiteGames: 1, WhiteWins: 1,
				AvgGameLength: 3, Captures: 1,
				AvgAccuracy: 91.5, AccuracyGames: 1,
			},
			"Bob": {
				Player: "Bob", Games: 1, Losses: 1,
				BlackGames: 1, AvgGameLength: 3,
			},
		},
	}
}

func TestWriteGames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGames(&buf, sampleBatch()); err != nil {
		t.Fatalf("WriteGames: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[0][0] != "batch_id" || rows[0][6] != "opening" {
		t.Fatalf("header: %v", rows[0])
	}
	row := rows[1]
	want := []string{"batch-7", "1", "2024.03.01", "Alice", "Bob", "1-0",
		"Scandinavian Defense", "B01", "3", "true", "1", "0", "1"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("column %d = %q, want %q (row %v)", i, row[i], want[i], row)
		}
	}
}

func TestWritePlayers(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlayers(&buf, sampleBatch()); err != nil {
		t.Fatalf("WritePlayers: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	// rows come out sorted by player name
	if rows[1][1] != "Alice" || rows[2][1] != "Bob" {
		t.Fatalf("row order: %v / %v", rows[1], rows[2])
	}
	alice := rows[1]
	if alice[6] != "100.0" {
		t.Fatalf("win rate column: %q", alice[6])
	}
	if alice[11] != "91.5" {
		t.Fatalf("avg accuracy column: %q", alice[11])
	}
	bob := rows[2]
	if bob[11] != "" || bob[12] != "" {
		t.Fatalf("missing metrics should stay empty: %v", bob)
	}
}

func TestWriteNilReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGames(&buf, nil); err == nil {
		t.Fatal("expected error for nil report")
	}
	if err := WritePlayers(&buf, nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}
