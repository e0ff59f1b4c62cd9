package domain

import "time"

// MoveFeatures is the per-ply feature record produced by the evaluator.
type MoveFeatures struct {
	Ply           int           `json:"ply"`
	Color         Color         `json:"color"`
	SAN           string        `json:"san"`
	UCI           string        `json:"uci"`
	Capture       bool          `json:"capture,omitempty"`
	Check         bool          `json:"check,omitempty"`
	Castle        bool          `json:"castle,omitempty"`
	Promotion     bool          `json:"promotion,omitempty"`
	EnPassant     bool          `json:"en_passant,omitempty"`
	MaterialWhite int           `json:"material_white"`
	MaterialBlack int           `json:"material_black"`
	MaterialDiff  int           `json:"material_diff"`
	Clock         time.Duration `json:"clock,omitempty"`
	HasClock      bool          `json:"has_clock,omitempty"`
}

// OpeningLabel classifies the opening of one game.
type OpeningLabel struct {
	Name string `json:"name"`
	ECO  string `json:"eco,omitempty"`
	// Line is the normalized opening line (SAN prefix of the game).
	Line string `json:"line,omitempty"`
}

// Diagnostic is a per-game failure surfaced alongside partial results.
type Diagnostic struct {
	GameIndex int    `json:"game_index"`
	Stage     string `json:"stage"` // "parse", "evaluate" or "aggregate"
	Line      int    `json:"line,omitempty"`
	Ply       int    `json:"ply,omitempty"`
	Message   string `json:"message"`
}

// GameReport is the analysis output for a single game.
type GameReport struct {
	Index   int          `json:"index"`
	Record  *GameRecord  `json:"record"`
	Opening OpeningLabel `json:"opening"`
	// Features holds one record per successfully replayed ply. When the
	// replay hits an illegal move it is truncated at that ply and Valid
	// is false; the raw GameRecord is kept intact either way.
	Features    []MoveFeatures `json:"features"`
	Valid       bool           `json:"valid"`
	TruncatedAt int            `json:"truncated_at,omitempty"` // ply of the illegal move, 0 when clean
}

// BatchReport is the full result of analyzing one PGN upload.
type BatchReport struct {
	ID          string                  `json:"id"`
	CreatedAt   time.Time               `json:"created_at"`
	GameCount   int                     `json:"game_count"`
	ValidGames  int                     `json:"valid_games"`
	Games       []*GameReport           `json:"games"`
	Diagnostics []Diagnostic            `json:"diagnostics,omitempty"`
	Players     map[string]*PlayerStats `json:"players"`
}

// PlayerNames returns the players that appear in the batch.
func (b *BatchReport) PlayerNames() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.Players))
	for name := range b.Players {
		names = append(names, name)
	}
	return names
}
