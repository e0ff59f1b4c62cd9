// Package insightdto holds the wire shapes served by the HTTP API. They are
// flattened views over the analysis domain types so the internal model can
// move without breaking clients.
package insightdto

import (
	"sort"
	"time"

	"github.com/pgnlab/insight/internal/domain"
)

type Diagnostic struct {
	GameIndex int    `json:"game_index"`
	Stage     string `json:"stage"`
	Line      int    `json:"line,omitempty"`
	Ply       int    `json:"ply,omitempty"`
	Message   string `json:"message"`
}

type GameSummary struct {
	Index       int    `json:"index"`
	Date        string `json:"date,omitempty"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Result      string `json:"result"`
	Opening     string `json:"opening"`
	ECO         string `json:"eco,omitempty"`
	Line        string `json:"line,omitempty"`
	Moves       int    `json:"moves"`
	Valid       bool   `json:"valid"`
	TruncatedAt int    `json:"truncated_at,omitempty"`
}

type OpeningCount struct {
	Name  string `json:"name"`
	Games int    `json:"games"`
	Wins  int    `json:"wins"`
	Draws int    `json:"draws"`
}

type Cluster struct {
	Games   int     `json:"games"`
	MeanAcc float64 `json:"mean_accuracy"`
	MeanACL float64 `json:"mean_acl"`
}

type PlayerReport struct {
	Player        string         `json:"player"`
	Games         int            `json:"games"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	Draws         int            `json:"draws"`
	WinRate       float64        `json:"win_rate"`
	WhiteGames    int            `json:"white_games"`
	BlackGames    int            `json:"black_games"`
	WhiteWins     int            `json:"white_wins"`
	BlackWins     int            `json:"black_wins"`
	AvgGameLength float64        `json:"avg_game_length"`
	Captures      int            `json:"captures"`
	Checks        int            `json:"checks"`
	Blunders      int            `json:"blunders"`
	AvgAccuracy   *float64       `json:"avg_accuracy,omitempty"`
	AvgACL        *float64       `json:"avg_acl,omitempty"`
	RatingFirst   int            `json:"rating_first,omitempty"`
	RatingLast    int            `json:"rating_last,omitempty"`
	AvgMaterial   []float64      `json:"avg_material,omitempty"`
	Openings      []OpeningCount `json:"openings,omitempty"`
	Insights      []string       `json:"insights,omitempty"`
	Clusters      []Cluster      `json:"clusters,omitempty"`
}

type BatchReport struct {
	ID          string                   `json:"id"`
	CreatedAt   time.Time                `json:"created_at"`
	GameCount   int                      `json:"game_count"`
	ValidGames  int                      `json:"valid_games"`
	Games       []GameSummary            `json:"games"`
	Diagnostics []Diagnostic             `json:"diagnostics,omitempty"`
	Players     map[string]*PlayerReport `json:"players"`
}

// NewBatchReport flattens a domain batch report for the wire.
func NewBatchReport(rep *domain.BatchReport) *BatchReport {
	if rep == nil {
		return nil
	}
	out := &BatchReport{
		ID:         rep.ID,
		CreatedAt:  rep.CreatedAt,
		GameCount:  rep.GameCount,
		ValidGames: rep.ValidGames,
		Games:      make([]GameSummary, 0, len(rep.Games)),
		Players:    make(map[string]*PlayerReport, len(rep.Players)),
	}
	for _, g := range rep.Games {
		if g == nil || g.Record == nil {
			continue
		}
		out.Games = append(out.Games, GameSummary{
			Index:       g.Index,
			Date:        g.Record.Tag("Date"),
			White:       g.Record.White(),
			Black:       g.Record.Black(),
			Result:      string(g.Record.Result),
			Opening:     g.Opening.Name,
			ECO:         g.Opening.ECO,
			Line:        g.Opening.Line,
			Moves:       g.Record.PlyCount(),
			Valid:       g.Valid,
			TruncatedAt: g.TruncatedAt,
		})
	}
	for _, d := range rep.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			GameIndex: d.GameIndex,
			Stage:     d.Stage,
			Line:      d.Line,
			Ply:       d.Ply,
			Message:   d.Message,
		})
	}
	for name, stats := range rep.Players {
		out.Players[name] = NewPlayerReport(stats)
	}
	return out
}

// NewPlayerReport flattens one player's aggregated stats.
func NewPlayerReport(s *domain.PlayerStats) *PlayerReport {
	if s == nil {
		return nil
	}
	out := &PlayerReport{
		Player:        s.Player,
		Games:         s.Games,
		Wins:          s.Wins,
		Losses:        s.Losses,
		Draws:         s.Draws,
		WinRate:       s.WinRate(),
		WhiteGames:    s.WhiteGames,
		BlackGames:    s.BlackGames,
		WhiteWins:     s.WhiteWins,
		BlackWins:     s.BlackWins,
		AvgGameLength: s.AvgGameLength,
		Captures:      s.Captures,
		Checks:        s.Checks,
		Blunders:      s.Blunders,
		RatingFirst:   s.RatingFirst,
		RatingLast:    s.RatingLast,
		AvgMaterial:   s.AvgMaterial,
		Insights:      s.Insights,
	}
	if s.AccuracyGames > 0 {
		v := s.AvgAccuracy
		out.AvgAccuracy = &v
	}
	if s.ACLGames > 0 {
		v := s.AvgACL
		out.AvgACL = &v
	}
	for _, os := range s.Openings {
		out.Openings = append(out.Openings, OpeningCount{
			Name:  os.Name,
			Games: os.Games,
			Wins:  os.Wins,
			Draws: os.Draws,
		})
	}
	sort.Slice(out.Openings, func(i, j int) bool {
		if out.Openings[i].Games != out.Openings[j].Games {
			return out.Openings[i].Games > out.Openings[j].Games
		}
		return out.Openings[i].Name < out.Openings[j].Name
	})
	for _, c := range s.Clusters {
		out.Clusters = append(out.Clusters, Cluster{
			Games:   c.Games,
			MeanAcc: c.MeanAcc,
			MeanACL: c.MeanACL,
		})
	}
	return out
}
