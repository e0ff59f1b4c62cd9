package domain

import "time"

// Result is the PGN game termination token.
type Result string

const (
	ResultWhiteWin Result = "1-0"
	ResultBlackWin Result = "0-1"
	ResultDraw     Result = "1/2-1/2"
	ResultUnknown  Result = "*"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// ColorAt returns the side to move for a 1-based ply index.
func ColorAt(ply int) Color {
	if ply%2 == 1 {
		return White
	}
	return Black
}

// MoveRecord is one ply as written in the source PGN.
type MoveRecord struct {
	Ply        int           `json:"ply"`
	Color      Color         `json:"color"`
	SAN        string        `json:"san"`
	Comment    string        `json:"comment,omitempty"`
	Annotation string        `json:"annotation,omitempty"`
	Clock      time.Duration `json:"clock,omitempty"`
	HasClock   bool          `json:"has_clock,omitempty"`
}

// GameRecord is a single parsed PGN game. It is never mutated after the
// parser returns it; downstream passes derive their own state from it.
type GameRecord struct {
	Tags     map[string]string `json:"tags"`
	TagOrder []string          `json:"tag_order,omitempty"`
	Moves    []MoveRecord      `json:"moves"`
	Result   Result            `json:"result"`
	// StartLine is the source line of the game's first tag pair.
	StartLine int `json:"start_line,omitempty"`
}

// Tag returns the tag value for key, or "" when absent.
func (g *GameRecord) Tag(key string) string {
	if g == nil || g.Tags == nil {
		return ""
	}
	return g.Tags[key]
}

func (g *GameRecord) White() string { return g.Tag("White") }
func (g *GameRecord) Black() string { return g.Tag("Black") }

// PlyCount returns the number of recorded plies.
func (g *GameRecord) PlyCount() int {
	if g == nil {
		return 0
	}
	return len(g.Moves)
}

// SANMoves returns the move sequence in play order.
func (g *GameRecord) SANMoves() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.Moves))
	for i, m := range g.Moves {
		out[i] = m.SAN
	}
	return out
}

// SideOf reports which color the named player held, or "" when the player
// did not take part in the game.
func (g *GameRecord) SideOf(player string) Color {
	switch player {
	case "":
		return ""
	case g.White():
		return White
	case g.Black():
		return Black
	default:
		return ""
	}
}
