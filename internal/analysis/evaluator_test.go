package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/pgnlab/insight/internal/domain"
	"github.com/pgnlab/insight/internal/pgn"
)

func parseOne(t *testing.T, text string) *domain.GameRecord {
	t.Helper()
	recs, errs := pgn.ParseAll(strings.NewReader(text))
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 game, got %d", len(recs))
	}
	return recs[0]
}

func TestEvaluateFeaturesPerPly(t *testing.T) {
	rec := parseOne(t, `[White "Alice"]
[Black "Bob"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`)
	game, feats, err := Replay(rec)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(feats) != 7 {
		t.Fatalf("expected 7 feature records, got %d", len(feats))
	}

	first := feats[0]
	if first.Ply != 1 || first.Color != domain.White || first.SAN != "e4" || first.UCI != "e2e4" {
		t.Fatalf("first feature: %+v", first)
	}
	if first.Capture || first.Check || first.Castle || first.Promotion {
		t.Fatalf("e4 should carry no event flags: %+v", first)
	}
	if first.MaterialWhite != 39 || first.MaterialBlack != 39 || first.MaterialDiff != 0 {
		t.Fatalf("opening material: %+v", first)
	}

	for i, f := range feats {
		if f.Ply != i+1 {
			t.Fatalf("ply sequence broken at %d: %+v", i, f)
		}
		if f.Color != domain.ColorAt(f.Ply) {
			t.Fatalf("color does not alternate at ply %d", f.Ply)
		}
	}

	mate := feats[6]
	if !mate.Capture || !mate.Check {
		t.Fatalf("Qxf7# should be a capturing check: %+v", mate)
	}
	if mate.MaterialWhite != 39 || mate.MaterialBlack != 38 || mate.MaterialDiff != 1 {
		t.Fatalf("material after Qxf7: %+v", mate)
	}

	if got := OutcomeResult(game); got != domain.ResultWhiteWin {
		t.Fatalf("outcome = %s", got)
	}
}

func TestReplayCastleAndEnPassant(t *testing.T) {
	rec := parseOne(t, `[White "Alice"]
[Black "Bob"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 4. O-O *
`)
	_, feats, err := Replay(rec)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !feats[6].Castle {
		t.Fatalf("O-O not flagged as castle: %+v", feats[6])
	}

	rec = parseOne(t, `[White "Alice"]
[Black "Bob"]
[Result "*"]

1. e4 a6 2. e5 d5 3. exd6 *
`)
	_, feats, err = Replay(rec)
	if err != nil {
		t.Fatalf("Replay en passant: %v", err)
	}
	last := feats[4]
	if !last.EnPassant || !last.Capture {
		t.Fatalf("exd6 should be an en passant capture: %+v", last)
	}
	if last.MaterialDiff != 1 {
		t.Fatalf("material after en passant: %+v", last)
	}
}

func TestReplayIllegalMoveTruncates(t *testing.T) {
	rec := parseOne(t, `[White "Alice"]
[Black "Bob"]
[Result "0-1"]

1. e4 e5 2. Ke3 0-1
`)
	_, feats, err := Replay(rec)
	if err == nil {
		t.Fatal("expected an error for Ke3")
	}
	var ill *IllegalMoveError
	if !errors.As(err, &ill) {
		t.Fatalf("expected IllegalMoveError, got %T: %v", err, err)
	}
	if ill.Ply != 3 || ill.SAN != "Ke3" {
		t.Fatalf("error position: %+v", ill)
	}
	if len(feats) != 2 {
		t.Fatalf("features should stop before the illegal ply, got %d", len(feats))
	}
}

func TestReplayEmptyRecord(t *testing.T) {
	game, feats, err := Replay(nil)
	if err != nil || len(feats) != 0 {
		t.Fatalf("nil record: feats=%d err=%v", len(feats), err)
	}
	if got := OutcomeResult(game); got != domain.ResultUnknown {
		t.Fatalf("outcome of unplayed game = %s", got)
	}

	_, feats, err = Replay(&domain.GameRecord{Result: domain.ResultDraw})
	if err != nil || len(feats) != 0 {
		t.Fatalf("moveless record: feats=%d err=%v", len(feats), err)
	}
}

func TestReplayRejectsBrokenAlternation(t *testing.T) {
	rec := &domain.GameRecord{
		Moves: []domain.MoveRecord{
			{Ply: 1, Color: domain.White, SAN: "e4"},
			{Ply: 2, Color: domain.White, SAN: "d4"},
		},
	}
	_, feats, err := Replay(rec)
	var ill *IllegalMoveError
	if !errors.As(err, &ill) || ill.Ply != 2 {
		t.Fatalf("expected alternation error at ply 2, got %v", err)
	}
	if len(feats) != 1 {
		t.Fatalf("features before the break should survive, got %d", len(feats))
	}
}
