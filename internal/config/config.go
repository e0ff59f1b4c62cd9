package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	AnalysisWorkers int
	ReportTTL       time.Duration
	MaxUploadBytes  int

	OpeningMaxPly     int
	OpeningCatalogDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8420",
		AnalysisWorkers: 4,
		ReportTTL:       24 * time.Hour,
		MaxUploadBytes:  16 << 20,
		OpeningMaxPly:   8,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("ANALYSIS_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisWorkers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REPORT_TTL")); v != "" { // duration like 24h or 90m
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReportTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OPENING_MAX_PLY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OpeningMaxPly = n
		}
	}
	cfg.OpeningCatalogDir = strings.TrimSpace(os.Getenv("OPENING_CATALOG_DIR"))

	return cfg, nil
}
