package domain

// OpeningStat counts results for one normalized opening line.
type OpeningStat struct {
	Name  string `json:"name"`
	Games int    `json:"games"`
	Wins  int    `json:"wins"`
	Draws int    `json:"draws"`
}

// PlayerStats is the aggregated view of one player's games in a batch.
// It is derived data, recomputed from feature records and never edited
// in place.
type PlayerStats struct {
	Player string `json:"player"`

	Games  int `json:"games"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`

	WhiteGames int `json:"white_games"`
	WhiteWins  int `json:"white_wins"`
	BlackGames int `json:"black_games"`
	BlackWins  int `json:"black_wins"`

	Openings []OpeningStat `json:"openings,omitempty"`

	// AvgMaterial is the mean material balance per ply from the
	// player's perspective, indexed by ply-1.
	AvgMaterial []float64 `json:"avg_material,omitempty"`

	AvgGameLength float64 `json:"avg_game_length"`
	Captures      int     `json:"captures"`
	Checks        int     `json:"checks"`
	// Blunders counts plies where the player's material balance dropped
	// by a minor piece or more without recovery on the following ply.
	Blunders int `json:"blunders"`

	AvgAccuracy   float64 `json:"avg_accuracy,omitempty"`
	AccuracyGames int     `json:"accuracy_games,omitempty"`
	AvgACL        float64 `json:"avg_acl,omitempty"`
	ACLGames      int     `json:"acl_games,omitempty"`

	// RatingFirst/RatingLast are the player's Elo tags from the first and
	// last rated game in the batch, 0 when no Elo tags were present.
	RatingFirst int `json:"rating_first,omitempty"`
	RatingLast  int `json:"rating_last,omitempty"`

	Insights []string  `json:"insights,omitempty"`
	Clusters []Cluster `json:"clusters,omitempty"`
}

// Cluster is one k-means grouping of games over (accuracy, ACL).
type Cluster struct {
	Games   int     `json:"games"`
	MeanAcc float64 `json:"mean_accuracy"`
	MeanACL float64 `json:"mean_acl"`
}

// WinRate returns the player's win percentage.
func (s *PlayerStats) WinRate() float64 {
	if s == nil || s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games) * 100
}
