package opening

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/pgnlab/insight/internal/domain"
	"github.com/pgnlab/insight/internal/pgn"
)

func record(t *testing.T, movetext string) *domain.GameRecord {
	t.Helper()
	text := "[White \"Alice\"]\n[Black \"Bob\"]\n\n" + movetext + "\n"
	recs, errs := pgn.ParseAll(strings.NewReader(text))
	if len(errs) != 0 || len(recs) != 1 {
		t.Fatalf("fixture parse: recs=%d errs=%v", len(recs), errs)
	}
	return recs[0]
}

func replay(t *testing.T, rec *domain.GameRecord) *nchess.Game {
	t.Helper()
	game := nchess.NewGame()
	for _, mv := range rec.Moves {
		if err := game.PushNotationMove(mv.SAN, nchess.AlgebraicNotation{}, nil); err != nil {
			t.Fatalf("fixture move %s: %v", mv.SAN, err)
		}
	}
	return game
}

func TestClassifyLongestPrefixWins(t *testing.T) {
	cat, err := Load("", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := record(t, "1. e4 c5 2. Nf3 d6 3. d4 cxd4 4. Nxd4 Nf6 5. Nc3 a6 *")
	label := cat.Classify(nil, rec)
	if label.Name != "Sicilian Defense: Najdorf Variation" || label.ECO != "B90" {
		t.Fatalf("najdorf label: %+v", label)
	}
	if label.Line != "e4 c5 Nf3 d6 d4 cxd4 Nxd4 Nf6" {
		t.Fatalf("line prefix: %q", label.Line)
	}

	rec = record(t, "1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 *")
	label = cat.Classify(nil, rec)
	if label.Name != "Giuoco Piano" {
		t.Fatalf("expected the longer line to win, got %+v", label)
	}
}

func TestClassifyOpeningTagTakesPrecedence(t *testing.T) {
	cat, err := Load("", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := record(t, "1. e4 e5 *")
	rec.Tags["Opening"] = "King's Pawn Game"
	rec.Tags["Variation"] = "MacLeod Attack"
	rec.Tags["ECO"] = "C20"

	label := cat.Classify(nil, rec)
	if label.Name != "King's Pawn Game: MacLeod Attack" || label.ECO != "C20" {
		t.Fatalf("tagged label: %+v", label)
	}
}

func TestClassifyFallsBackToECOBook(t *testing.T) {
	cat, err := Load("", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// 1. b4 is not in the catalog
	rec := record(t, "1. b4 e5 *")
	label := cat.Classify(replay(t, rec), rec)
	if label.Name == "" {
		t.Fatalf("expected an ECO book name: %+v", label)
	}
	if !strings.HasPrefix(label.ECO, "A") {
		t.Fatalf("expected an A-series ECO code: %+v", label)
	}
}

func TestClassifyUnknownLine(t *testing.T) {
	cat, err := Load("", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := record(t, "1. a3 *")
	label := cat.Classify(nil, rec)
	if label.Name != "" {
		t.Fatalf("expected no catalog name without a replayed game: %+v", label)
	}
	if label.Line != "a3" {
		t.Fatalf("line: %q", label.Line)
	}
}

func TestLoadOverrideDir(t *testing.T) {
	dir := t.TempDir()
	extra := `openings:
  - name: "Polish Opening"
    eco: "A00"
    line: "b4"
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extra), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cat, err := Load(dir, 0)
	if err != nil {
		t.Fatalf("Load with overrides: %v", err)
	}
	rec := record(t, "1. b4 e5 *")
	label := cat.Classify(nil, rec)
	if label.Name != "Polish Opening" || label.ECO != "A00" {
		t.Fatalf("override label: %+v", label)
	}
}

func TestLoadRejectsBadCatalog(t *testing.T) {
	dir := t.TempDir()
	bad := `openings:
  - eco: "Z99"
    line: "e4"
`
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := Load(dir, 0); err == nil {
		t.Fatal("expected an error for an entry without a name")
	}
}

func TestLinePlyLimit(t *testing.T) {
	cat, err := Load("", 4)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec := record(t, "1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 *")
	label := cat.Classify(nil, rec)
	if label.Line != "e4 e5 Nf3 Nc6" {
		t.Fatalf("line should stop at 4 plies: %q", label.Line)
	}
	// prefix matching still sees the full game
	if label.Name != "Ruy Lopez" {
		t.Fatalf("label: %+v", label)
	}
}
