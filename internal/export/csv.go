// Package export flattens analysis output into the tabular projection the
// external spreadsheet collaborator consumes. Transport and auth belong to
// that collaborator, not here.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pgnlab/insight/internal/domain"
)

var gameHeader = []string{
	"batch_id", "game", "date", "white", "black", "result",
	"opening", "eco", "moves", "valid", "captures", "checks",
	"final_material_diff",
}

var playerHeader = []string{
	"batch_id", "player", "games", "wins", "losses", "draws",
	"win_rate", "white_games", "black_games", "avg_game_length",
	"blunders", "avg_accuracy", "avg_acl",
}

// WriteGames emits one row per game in batch order.
func WriteGames(w io.Writer, rep *domain.BatchReport) error {
	if rep == nil {
		return fmt.Errorf("nil batch report")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(gameHeader); err != nil {
		return err
	}
	for _, g := range rep.Games {
		if g == nil || g.Record == nil {
			continue
		}
		captures, checks := 0, 0
		finalDiff := 0
		for _, f := range g.Features {
			if f.Capture {
				captures++
			}
			if f.Check {
				checks++
			}
			finalDiff = f.MaterialDiff
		}
		row := []string{
			rep.ID,
			strconv.Itoa(g.Index + 1),
			g.Record.Tag("Date"),
			g.Record.White(),
			g.Record.Black(),
			string(g.Record.Result),
			g.Opening.Name,
			g.Opening.ECO,
			strconv.Itoa(g.Record.PlyCount()),
			strconv.FormatBool(g.Valid),
			strconv.Itoa(captures),
			strconv.Itoa(checks),
			strconv.Itoa(finalDiff),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePlayers emits one row per player, sorted by name for deterministic
// output.
func WritePlayers(w io.Writer, rep *domain.BatchReport) error {
	if rep == nil {
		return fmt.Errorf("nil batch report")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(playerHeader); err != nil {
		return err
	}
	names := rep.PlayerNames()
	sort.Strings(names)
	for _, name := range names {
		s := rep.Players[name]
		if s == nil {
			continue
		}
		row := []string{
			rep.ID,
			s.Player,
			strconv.Itoa(s.Games),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Losses),
			strconv.Itoa(s.Draws),
			strconv.FormatFloat(s.WinRate(), 'f', 1, 64),
			strconv.Itoa(s.WhiteGames),
			strconv.Itoa(s.BlackGames),
			strconv.FormatFloat(s.AvgGameLength, 'f', 1, 64),
			strconv.Itoa(s.Blunders),
			formatOptional(s.AvgAccuracy, s.AccuracyGames),
			formatOptional(s.AvgACL, s.ACLGames),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(v float64, n int) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
