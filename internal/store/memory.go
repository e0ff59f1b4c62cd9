package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pgnlab/insight/internal/domain"
)

// memArchive is the development Archive used when no database is
// configured. Same contract as the Postgres implementation.
type memArchive struct {
	mu sync.RWMutex

	games map[string]*ArchivedGame       // batchID|index
	stats map[string]*domain.PlayerStats // batchID|player
	order []*ArchivedGame                // insertion order, latest last
}

func NewMemoryArchive() Archive {
	return &memArchive{
		games: make(map[string]*ArchivedGame),
		stats: make(map[string]*domain.PlayerStats),
	}
}

func (m *memArchive) Close() error { return nil }

func (m *memArchive) SaveGame(ctx context.Context, batchID string, rep *domain.GameReport, pgnText string) error {
	if rep == nil || rep.Record == nil {
		return nil
	}
	g := &ArchivedGame{
		BatchID:   batchID,
		Index:     rep.Index,
		White:     rep.Record.White(),
		Black:     rep.Record.Black(),
		Result:    string(rep.Record.Result),
		Opening:   rep.Opening.Name,
		ECO:       rep.Opening.ECO,
		MoveCount: rep.Record.PlyCount(),
		Valid:     rep.Valid,
		PGN:       pgnText,
		CreatedAt: time.Now(),
	}
	key := batchID + "|" + strconv.Itoa(rep.Index)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[key]; !exists {
		m.order = append(m.order, g)
	} else {
		for i, old := range m.order {
			if old.BatchID == batchID && old.Index == rep.Index {
				m.order[i] = g
				break
			}
		}
	}
	m.games[key] = g
	return nil
}

func (m *memArchive) SavePlayerStats(ctx context.Context, batchID string, stats *domain.PlayerStats) error {
	if stats == nil {
		return nil
	}
	copied := *stats
	m.mu.Lock()
	m.stats[batchID+"|"+stats.Player] = &copied
	m.mu.Unlock()
	return nil
}

func (m *memArchive) RecentGames(ctx context.Context, player string, limit int) ([]*ArchivedGame, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ArchivedGame
	for _, g := range m.order {
		if g.White == player || g.Black == player {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
