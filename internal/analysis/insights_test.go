package analysis

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/pgnlab/insight/internal/domain"
)

func TestInsightsNeedsEnoughGames(t *testing.T) {
	lines := Insights(&domain.PlayerStats{Player: "Alice", Games: 3})
	if len(lines) != 1 || !strings.Contains(lines[0], "at least 5 games") {
		t.Fatalf("short history insight: %v", lines)
	}
}

func TestInsightsRuleBands(t *testing.T) {
	stats := &domain.PlayerStats{
		Player:        "Alice",
		Games:         6,
		Wins:          4,
		Losses:        2,
		WhiteGames:    3,
		WhiteWins:     3,
		BlackGames:    3,
		BlackWins:     1,
		RatingFirst:   1400,
		RatingLast:    1450,
		AvgAccuracy:   86.2,
		AccuracyGames: 6,
		AvgACL:        42.0,
		ACLGames:      6,
	}
	lines := Insights(stats)
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"Rating improved by 50 points",
		"Excellent accuracy: 86.2%",
		"Strong positional play",
		"Performs better with White (100.0% vs 33.3% win rate)",
		"Overall win rate: 66.7% (4/6)",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
}

func TestInsightsFlagsFrequentBlunders(t *testing.T) {
	stats := &domain.PlayerStats{Player: "Alice", Games: 6, Blunders: 9}
	joined := strings.Join(Insights(stats), "\n")
	if !strings.Contains(joined, "blunders average 1.5 per game") {
		t.Fatalf("blunder insight missing:\n%s", joined)
	}
}

func metricReports(metrics [][2]float64) []*domain.GameReport {
	reports := make([]*domain.GameReport, len(metrics))
	for i, m := range metrics {
		reports[i] = &domain.GameReport{
			Index: i,
			Record: &domain.GameRecord{Tags: map[string]string{
				"White":    "Alice",
				"Black":    "Bob",
				"Accuracy": strconv.FormatFloat(m[0], 'f', 1, 64),
				"ACL":      strconv.FormatFloat(m[1], 'f', 1, 64),
			}},
		}
	}
	return reports
}

func TestClustersGroupByStrength(t *testing.T) {
	reports := metricReports([][2]float64{
		{91, 20}, {92, 22}, {90, 25},
		{60, 140}, {62, 150}, {58, 160},
	})

	clusters := Clusters("Alice", reports)
	if len(clusters) == 0 {
		t.Fatal("expected clusters")
	}
	total := 0
	for _, c := range clusters {
		total += c.Games
	}
	if total != 6 {
		t.Fatalf("cluster sizes sum to %d", total)
	}
	for i := 1; i < len(clusters); i++ {
		if clusters[i-1].MeanAcc < clusters[i].MeanAcc {
			t.Fatalf("clusters not sorted by accuracy: %+v", clusters)
		}
	}
	// the strong and weak groups must not share a cluster
	if clusters[0].MeanAcc < 85 || clusters[len(clusters)-1].MeanAcc > 70 {
		t.Fatalf("groups merged: %+v", clusters)
	}

	again := Clusters("Alice", reports)
	if !reflect.DeepEqual(clusters, again) {
		t.Fatalf("clustering not deterministic:\n%+v\n%+v", clusters, again)
	}
}

func TestClustersNeedThreeMeasuredGames(t *testing.T) {
	reports := metricReports([][2]float64{{91, 20}, {60, 140}})
	if got := Clusters("Alice", reports); got != nil {
		t.Fatalf("expected no clusters, got %+v", got)
	}

	// games without both metrics do not count
	reports = append(reports, &domain.GameReport{
		Record: &domain.GameRecord{Tags: map[string]string{"White": "Alice", "Black": "Bob"}},
	})
	if got := Clusters("Alice", reports); got != nil {
		t.Fatalf("expected no clusters, got %+v", got)
	}
}
