package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pgnlab/insight/internal/domain"
)

// AggregationInputError reports a feature record missing a required field.
// It is fatal to the aggregation call that received it, nothing else.
type AggregationInputError struct {
	GameIndex int
	Field     string
}

func (e *AggregationInputError) Error() string {
	return fmt.Sprintf("aggregation input: game %d missing %s", e.GameIndex, e.Field)
}

const (
	// maxTrajectoryPlies caps the mean material trajectory length.
	maxTrajectoryPlies = 80
	// blunderDrop is the material swing (minor piece) that counts a ply
	// as a blunder when not recovered on the following ply.
	blunderDrop = 3
)

// Aggregate reduces per-game feature records into PlayerStats for one
// player. It is a pure function of its inputs: no hidden state, and
// aggregating the same reports twice yields identical stats. Games the
// player did not take part in are skipped.
func Aggregate(player string, reports []*domain.GameReport) (*domain.PlayerStats, error) {
	stats := &domain.PlayerStats{Player: player}

	openings := map[string]*domain.OpeningStat{}
	trajSum := make([]float64, 0, maxTrajectoryPlies)
	trajCount := make([]int, 0, maxTrajectoryPlies)
	totalPlies := 0
	var accSum, aclSum float64

	for _, rep := range reports {
		if rep == nil {
			return nil, &AggregationInputError{GameIndex: -1, Field: "report"}
		}
		if rep.Record == nil {
			return nil, &AggregationInputError{GameIndex: rep.Index, Field: "record"}
		}
		rec := rep.Record
		if rec.White() == "" && rec.Black() == "" {
			return nil, &AggregationInputError{GameIndex: rep.Index, Field: "player tags"}
		}
		side := rec.SideOf(player)
		if side == "" {
			continue
		}

		stats.Games++
		totalPlies += rec.PlyCount()
		if side == domain.White {
			stats.WhiteGames++
		} else {
			stats.BlackGames++
		}

		won, drew := outcomeFor(rec.Result, side)
		switch {
		case won:
			stats.Wins++
			if side == domain.White {
				stats.WhiteWins++
			} else {
				stats.BlackWins++
			}
		case drew:
			stats.Draws++
		case rec.Result != domain.ResultUnknown:
			stats.Losses++
		}

		name := openingKey(rep.Opening)
		op := openings[name]
		if op == nil {
			op = &domain.OpeningStat{Name: name}
			openings[name] = op
		}
		op.Games++
		if won {
			op.Wins++
		} else if drew {
			op.Draws++
		}

		sign := 1.0
		if side == domain.Black {
			sign = -1.0
		}
		prev := 0.0
		for i, f := range rep.Features {
			if f.Ply <= 0 {
				return nil, &AggregationInputError{GameIndex: rep.Index, Field: "feature ply"}
			}
			persp := sign * float64(f.MaterialDiff)
			if i < maxTrajectoryPlies {
				if i >= len(trajSum) {
					trajSum = append(trajSum, 0)
					trajCount = append(trajCount, 0)
				}
				trajSum[i] += persp
				trajCount[i]++
			}
			if f.Color == side {
				if f.Capture {
					stats.Captures++
				}
				if f.Check {
					stats.Checks++
				}
				// A blunder: the balance after the opponent's reply sits a
				// minor piece below where it stood before this move.
				if i+1 < len(rep.Features) {
					after := sign * float64(rep.Features[i+1].MaterialDiff)
					if after <= prev-blunderDrop {
						stats.Blunders++
					}
				}
			}
			prev = persp
		}

		if acc, ok := accuracyFor(rec, side); ok {
			accSum += acc
			stats.AccuracyGames++
		}
		if acl, ok := aclFor(rec, side); ok {
			aclSum += acl
			stats.ACLGames++
		}
		if elo, ok := eloFor(rec, side); ok {
			if stats.RatingFirst == 0 {
				stats.RatingFirst = elo
			}
			stats.RatingLast = elo
		}
	}

	if stats.Games > 0 {
		stats.AvgGameLength = float64(totalPlies) / float64(stats.Games)
	}
	if stats.AccuracyGames > 0 {
		stats.AvgAccuracy = accSum / float64(stats.AccuracyGames)
	}
	if stats.ACLGames > 0 {
		stats.AvgACL = aclSum / float64(stats.ACLGames)
	}

	stats.AvgMaterial = make([]float64, len(trajSum))
	for i := range trajSum {
		if trajCount[i] > 0 {
			stats.AvgMaterial[i] = trajSum[i] / float64(trajCount[i])
		}
	}

	stats.Openings = make([]domain.OpeningStat, 0, len(openings))
	for _, op := range openings {
		stats.Openings = append(stats.Openings, *op)
	}
	sort.Slice(stats.Openings, func(i, j int) bool {
		if stats.Openings[i].Games != stats.Openings[j].Games {
			return stats.Openings[i].Games > stats.Openings[j].Games
		}
		return stats.Openings[i].Name < stats.Openings[j].Name
	})

	return stats, nil
}

// AggregateAll groups the batch by player and aggregates each one.
func AggregateAll(reports []*domain.GameReport) (map[string]*domain.PlayerStats, error) {
	players := map[string]struct{}{}
	for _, rep := range reports {
		if rep == nil || rep.Record == nil {
			continue
		}
		if w := rep.Record.White(); w != "" {
			players[w] = struct{}{}
		}
		if b := rep.Record.Black(); b != "" {
			players[b] = struct{}{}
		}
	}
	out := make(map[string]*domain.PlayerStats, len(players))
	for name := range players {
		stats, err := Aggregate(name, reports)
		if err != nil {
			return nil, err
		}
		out[name] = stats
	}
	return out, nil
}

func outcomeFor(result domain.Result, side domain.Color) (won, drew bool) {
	switch result {
	case domain.ResultWhiteWin:
		return side == domain.White, false
	case domain.ResultBlackWin:
		return side == domain.Black, false
	case domain.ResultDraw:
		return false, true
	default:
		return false, false
	}
}

func openingKey(label domain.OpeningLabel) string {
	if label.Name != "" {
		return label.Name
	}
	if label.Line != "" {
		return label.Line
	}
	return "Unknown Opening"
}

func accuracyFor(rec *domain.GameRecord, side domain.Color) (float64, bool) {
	if side == domain.White {
		if v, ok := floatTag(rec, "WhiteAccuracy"); ok {
			return v, true
		}
	} else {
		if v, ok := floatTag(rec, "BlackAccuracy"); ok {
			return v, true
		}
	}
	return floatTag(rec, "Accuracy")
}

func aclFor(rec *domain.GameRecord, side domain.Color) (float64, bool) {
	if side == domain.White {
		if v, ok := floatTag(rec, "WhiteACL"); ok {
			return v, true
		}
	} else {
		if v, ok := floatTag(rec, "BlackACL"); ok {
			return v, true
		}
	}
	return floatTag(rec, "ACL")
}

func eloFor(rec *domain.GameRecord, side domain.Color) (int, bool) {
	key := "WhiteElo"
	if side == domain.Black {
		key = "BlackElo"
	}
	v := strings.TrimSpace(rec.Tag(key))
	if v == "" || v == "?" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func floatTag(rec *domain.GameRecord, key string) (float64, bool) {
	v := strings.TrimSpace(rec.Tag(key))
	if v == "" {
		return 0, false
	}
	v = strings.TrimSuffix(v, "%")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
