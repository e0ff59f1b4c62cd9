package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgnlab/insight/internal/analysis"
	"github.com/pgnlab/insight/internal/domain"
	"github.com/pgnlab/insight/internal/opening"
	"github.com/pgnlab/insight/internal/pgn"
	"github.com/pgnlab/insight/internal/store"
)

var (
	ErrEmptyBatch    = errors.New("no games in upload")
	ErrBatchNotFound = errors.New("batch not found")
	ErrNoStore       = errors.New("report store not configured")
)

const defaultWorkers = 4

type Config struct {
	// Workers bounds the number of games evaluated concurrently. Games
	// share no mutable state, so the pool is a plain fan-out.
	Workers int
}

// Service runs the parse → evaluate → aggregate pipeline for uploaded PGN
// batches and hands the results to the attached stores.
type Service struct {
	catalog *opening.Catalog
	cfg     Config
	logger  *zap.Logger

	reports *store.ReportStore
	archive store.Archive
}

func New(catalog *opening.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("opening catalog is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, cfg: cfg, logger: logger}, nil
}

// AttachReportStore wires the Redis store for persisting batch reports.
func (s *Service) AttachReportStore(rs *store.ReportStore) {
	if s != nil {
		s.reports = rs
	}
}

// AttachArchive wires a long-term archive for finished games and stats.
func (s *Service) AttachArchive(a store.Archive) {
	if s != nil {
		s.archive = a
	}
}

// AnalyzeBatch parses every game in the input, evaluates them in parallel
// and aggregates per-player stats. Per-game failures become diagnostics on
// the report; only an abandoned context or a store failure is fatal.
func (s *Service) AnalyzeBatch(ctx context.Context, r io.Reader) (*domain.BatchReport, error) {
	started := time.Now()

	var (
		records []*domain.GameRecord
		fileIdx []int
		diags   []domain.Diagnostic
		gamesIn int
		stream  = pgn.Parse(r)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *pgn.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read pgn: %w", err)
			}
			diags = append(diags, domain.Diagnostic{
				GameIndex: gamesIn,
				Stage:     "parse",
				Line:      pe.Line,
				Message:   pe.Error(),
			})
			gamesIn++
			continue
		}
		records = append(records, rec)
		fileIdx = append(fileIdx, gamesIn)
		gamesIn++
	}
	if gamesIn == 0 {
		return nil, ErrEmptyBatch
	}

	reports := make([]*domain.GameReport, len(records))
	evalDiags := make([]*domain.Diagnostic, len(records))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i], evalDiags[i] = s.evaluateGame(fileIdx[i], records[i])
			}
		}()
	}
	var dispatchErr error
	for i := range records {
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	valid := 0
	for i, rep := range reports {
		if rep.Valid {
			valid++
		}
		if evalDiags[i] != nil {
			diags = append(diags, *evalDiags[i])
		}
	}

	players, err := analysis.AggregateAll(aggregatable(reports))
	if err != nil {
		// a malformed feature batch spoils aggregation, not the reports
		s.logger.Warn("aggregation failed", zap.Error(err))
		diags = append(diags, domain.Diagnostic{GameIndex: -1, Stage: "aggregate", Message: err.Error()})
		players = map[string]*domain.PlayerStats{}
	}
	for name, stats := range players {
		stats.Insights = analysis.Insights(stats)
		stats.Clusters = analysis.Clusters(name, reports)
	}

	report := &domain.BatchReport{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		GameCount:   len(reports),
		ValidGames:  valid,
		Games:       reports,
		Diagnostics: diags,
		Players:     players,
	}

	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, report); err != nil {
			return nil, fmt.Errorf("save batch report: %w", err)
		}
	}
	s.archiveBatch(ctx, report)

	s.logger.Info("batch analyzed",
		zap.String("batch_id", report.ID),
		zap.Int("games", report.GameCount),
		zap.Int("valid_games", report.ValidGames),
		zap.Int("players", len(report.Players)),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Duration("took", time.Since(started)),
	)
	return report, nil
}

// GetReport loads a stored batch report.
func (s *Service) GetReport(ctx context.Context, id string) (*domain.BatchReport, error) {
	if s.reports == nil {
		return nil, ErrNoStore
	}
	rep, err := s.reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, ErrBatchNotFound
	}
	return rep, nil
}

// PlayerStats returns one player's stats from a stored batch.
func (s *Service) PlayerStats(ctx context.Context, batchID, player string) (*domain.PlayerStats, error) {
	rep, err := s.GetReport(ctx, batchID)
	if err != nil {
		return nil, err
	}
	stats, ok := rep.Players[player]
	if !ok {
		return nil, fmt.Errorf("player %q not in batch %s", player, batchID)
	}
	return stats, nil
}

// BatchesForPlayer lists the stored batch IDs a player appears in.
func (s *Service) BatchesForPlayer(ctx context.Context, player string) ([]string, error) {
	if s.reports == nil {
		return nil, ErrNoStore
	}
	return s.reports.BatchesForPlayer(ctx, player)
}

func (s *Service) evaluateGame(index int, rec *domain.GameRecord) (*domain.GameReport, *domain.Diagnostic) {
	game, feats, err := analysis.Replay(rec)
	rep := &domain.GameReport{
		Index:    index,
		Record:   rec,
		Features: feats,
		Valid:    err == nil,
	}
	rep.Opening = s.catalog.Classify(game, rec)
	if err == nil {
		return rep, nil
	}
	var ill *analysis.IllegalMoveError
	if errors.As(err, &ill) {
		rep.TruncatedAt = ill.Ply
	}
	return rep, &domain.Diagnostic{
		GameIndex: index,
		Stage:     "evaluate",
		Ply:       rep.TruncatedAt,
		Message:   err.Error(),
	}
}

// aggregatable filters out games that cannot name a player; they stay on
// the report but cannot contribute to per-player stats.
func aggregatable(reports []*domain.GameReport) []*domain.GameReport {
	out := make([]*domain.GameReport, 0, len(reports))
	for _, rep := range reports {
		if rep == nil || rep.Record == nil {
			continue
		}
		if rep.Record.White() == "" && rep.Record.Black() == "" {
			continue
		}
		out = append(out, rep)
	}
	return out
}

func (s *Service) archiveBatch(ctx context.Context, report *domain.BatchReport) {
	if s.archive == nil {
		return
	}
	for _, g := range report.Games {
		if err := s.archive.SaveGame(ctx, report.ID, g, pgn.WritePGN(g.Record)); err != nil {
			s.logger.Error("archive game failed",
				zap.String("batch_id", report.ID),
				zap.Int("game_index", g.Index),
				zap.Error(err),
			)
		}
	}
	for _, stats := range report.Players {
		if err := s.archive.SavePlayerStats(ctx, report.ID, stats); err != nil {
			s.logger.Error("archive player stats failed",
				zap.String("batch_id", report.ID),
				zap.String("player", stats.Player),
				zap.Error(err),
			)
		}
	}
}
