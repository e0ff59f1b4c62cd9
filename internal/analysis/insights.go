package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/pgnlab/insight/internal/domain"
)

const (
	minInsightGames  = 5
	minClusterPoints = 3
	kmeansRounds     = 25
)

// Insights produces rule-based performance commentary for one player's
// aggregated stats. Deterministic: same stats in, same lines out.
func Insights(stats *domain.PlayerStats) []string {
	if stats == nil {
		return nil
	}
	if stats.Games < minInsightGames {
		return []string{fmt.Sprintf("Need at least %d games for insights", minInsightGames)}
	}

	var out []string

	if stats.RatingFirst > 0 && stats.RatingLast > 0 {
		delta := stats.RatingLast - stats.RatingFirst
		switch {
		case delta > 0:
			out = append(out, fmt.Sprintf("Rating improved by %d points over %d games", delta, stats.Games))
		case delta < 0:
			out = append(out, fmt.Sprintf("Rating decreased by %d points over %d games", -delta, stats.Games))
		default:
			out = append(out, fmt.Sprintf("Rating remained stable over %d games", stats.Games))
		}
	}

	if stats.AccuracyGames > 0 {
		acc := stats.AvgAccuracy
		switch {
		case acc > 85:
			out = append(out, fmt.Sprintf("Excellent accuracy: %.1f%% average shows strong tactical play", acc))
		case acc > 75:
			out = append(out, fmt.Sprintf("Good accuracy: %.1f%% average indicates solid tactical understanding", acc))
		default:
			out = append(out, fmt.Sprintf("Accuracy of %.1f%% has room for improvement; consider tactical training", acc))
		}
	}

	if stats.ACLGames > 0 {
		acl := stats.AvgACL
		switch {
		case acl < 50:
			out = append(out, fmt.Sprintf("Strong positional play: average centipawn loss of %.1f", acl))
		case acl < 75:
			out = append(out, fmt.Sprintf("Decent positional understanding with average centipawn loss of %.1f", acl))
		default:
			out = append(out, fmt.Sprintf("Average centipawn loss of %.1f indicates room for positional improvement", acl))
		}
	}

	if stats.WhiteGames > 0 && stats.BlackGames > 0 {
		whiteRate := float64(stats.WhiteWins) / float64(stats.WhiteGames) * 100
		blackRate := float64(stats.BlackWins) / float64(stats.BlackGames) * 100
		if math.Abs(whiteRate-blackRate) > 10 {
			if whiteRate > blackRate {
				out = append(out, fmt.Sprintf("Performs better with White (%.1f%% vs %.1f%% win rate)", whiteRate, blackRate))
			} else {
				out = append(out, fmt.Sprintf("Performs better with Black (%.1f%% vs %.1f%% win rate)", blackRate, whiteRate))
			}
		}
	}

	if stats.Games > 0 && stats.Blunders > 0 {
		perGame := float64(stats.Blunders) / float64(stats.Games)
		if perGame >= 1 {
			out = append(out, fmt.Sprintf("Material blunders average %.1f per game; review games with large swings", perGame))
		}
	}

	out = append(out, fmt.Sprintf("Overall win rate: %.1f%% (%d/%d)", stats.WinRate(), stats.Wins, stats.Games))
	return out
}

// Clusters groups a player's games by (accuracy, ACL) with a small k-means
// pass. Both metrics must be present for a game to contribute; fewer than
// three usable games yields no clusters. Deterministic: points are sorted
// and centroids seeded evenly, so repeated runs agree.
func Clusters(player string, reports []*domain.GameReport) []domain.Cluster {
	type point struct{ acc, acl float64 }
	var pts []point
	for _, rep := range reports {
		if rep == nil || rep.Record == nil {
			continue
		}
		side := rep.Record.SideOf(player)
		if side == "" {
			continue
		}
		acc, okAcc := accuracyFor(rep.Record, side)
		acl, okACL := aclFor(rep.Record, side)
		if okAcc && okACL {
			pts = append(pts, point{acc, acl})
		}
	}
	if len(pts) < minClusterPoints {
		return nil
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].acc != pts[j].acc {
			return pts[i].acc < pts[j].acc
		}
		return pts[i].acl < pts[j].acl
	})

	k := 3
	if len(pts) < k {
		k = len(pts)
	}

	// standardize both axes so neither dominates the distance
	meanAcc, meanACL := 0.0, 0.0
	for _, p := range pts {
		meanAcc += p.acc
		meanACL += p.acl
	}
	meanAcc /= float64(len(pts))
	meanACL /= float64(len(pts))
	varAcc, varACL := 0.0, 0.0
	for _, p := range pts {
		varAcc += (p.acc - meanAcc) * (p.acc - meanAcc)
		varACL += (p.acl - meanACL) * (p.acl - meanACL)
	}
	sdAcc := math.Sqrt(varAcc / float64(len(pts)))
	sdACL := math.Sqrt(varACL / float64(len(pts)))
	if sdAcc == 0 {
		sdAcc = 1
	}
	if sdACL == 0 {
		sdACL = 1
	}
	scaled := make([]point, len(pts))
	for i, p := range pts {
		scaled[i] = point{(p.acc - meanAcc) / sdAcc, (p.acl - meanACL) / sdACL}
	}

	centroids := make([]point, k)
	for c := 0; c < k; c++ {
		centroids[c] = scaled[c*(len(scaled)-1)/max(k-1, 1)]
	}

	assign := make([]int, len(scaled))
	for round := 0; round < kmeansRounds; round++ {
		changed := false
		for i, p := range scaled {
			best, bestDist := 0, math.MaxFloat64
			for c, ct := range centroids {
				d := (p.acc-ct.acc)*(p.acc-ct.acc) + (p.acl-ct.acl)*(p.acl-ct.acl)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		sums := make([]point, k)
		counts := make([]int, k)
		for i, p := range scaled {
			sums[assign[i]].acc += p.acc
			sums[assign[i]].acl += p.acl
			counts[assign[i]]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = point{sums[c].acc / float64(counts[c]), sums[c].acl / float64(counts[c])}
			}
		}
		if !changed {
			break
		}
	}

	out := make([]domain.Cluster, 0, k)
	for c := 0; c < k; c++ {
		var cl domain.Cluster
		for i, p := range pts {
			if assign[i] == c {
				cl.Games++
				cl.MeanAcc += p.acc
				cl.MeanACL += p.acl
			}
		}
		if cl.Games == 0 {
			continue
		}
		cl.MeanAcc /= float64(cl.Games)
		cl.MeanACL /= float64(cl.Games)
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeanAcc > out[j].MeanAcc })
	return out
}
