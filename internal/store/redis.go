package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pgnlab/insight/internal/domain"
)

const defaultReportTTL = 24 * time.Hour

// ReportStore keeps batch reports in Redis with a TTL, plus a per-player
// index of the batches that mention them.
type ReportStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReportStore(redisURL string, ttl time.Duration) (*ReportStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for report store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewReportStoreWithClient(rdb, ttl), nil
}

// NewReportStoreWithClient wraps an existing client; used by tests.
func NewReportStoreWithClient(rdb *redis.Client, ttl time.Duration) *ReportStore {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	return &ReportStore{rdb: rdb, ttl: ttl}
}

func (s *ReportStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *ReportStore) SaveReport(ctx context.Context, rep *domain.BatchReport) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("report store not initialized")
	}
	if rep == nil || strings.TrimSpace(rep.ID) == "" {
		return fmt.Errorf("batch report needs an ID")
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal batch report: %w", err)
	}
	if err := s.rdb.Set(ctx, batchKey(rep.ID), raw, s.ttl).Err(); err != nil {
		return err
	}
	for name := range rep.Players {
		key := playerKey(name)
		if err := s.rdb.SAdd(ctx, key, rep.ID).Err(); err != nil {
			return err
		}
		// keep the index from outliving its batches
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// GetReport returns (nil, nil) when the batch is unknown or expired.
func (s *ReportStore) GetReport(ctx context.Context, id string) (*domain.BatchReport, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("report store not initialized")
	}
	raw, err := s.rdb.Get(ctx, batchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rep domain.BatchReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("unmarshal batch report: %w", err)
	}
	return &rep, nil
}

// BatchesForPlayer lists the batch IDs a player appears in, sorted for
// deterministic output.
func (s *ReportStore) BatchesForPlayer(ctx context.Context, player string) ([]string, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("report store not initialized")
	}
	ids, err := s.rdb.SMembers(ctx, playerKey(player)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func batchKey(id string) string    { return "insight:batch:" + strings.TrimSpace(id) }
func playerKey(name string) string { return "insight:player:" + strings.TrimSpace(name) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
