package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Training.Metric != "map" {
		t.Errorf("training metric = %q, want map", cfg.Training.Metric)
	}
	if cfg.Training.MaxRounds != 50 {
		t.Errorf("max rounds = %d, want 50", cfg.Training.MaxRounds)
	}
	if cfg.Training.Tolerance != 0.003 {
		t.Errorf("tolerance = %v, want 0.003", cfg.Training.Tolerance)
	}
	if cfg.Kafka.Topics.TrainingJobs != "training-jobs" {
		t.Errorf("jobs topic = %q, want training-jobs", cfg.Kafka.Topics.TrainingJobs)
	}
	if cfg.Scoring.MaxDocuments != 10000 {
		t.Errorf("max documents = %d, want 10000", cfg.Scoring.MaxDocuments)
	}
	if cfg.Scoring.RateLimit != 300 || cfg.Scoring.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d per %v, want 300 per 1m",
			cfg.Scoring.RateLimit, cfg.Scoring.RateLimitWindow)
	}
	if cfg.Redis.CacheTTL != 5*time.Minute {
		t.Errorf("cache TTL = %v, want 5m", cfg.Redis.CacheTTL)
	}
}

func TestLoadFile(t *testing.T) {
	content := `
server:
  port: 9999
training:
  metric: ndcg@10
  maxRounds: 20
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Training.Metric != "ndcg@10" {
		t.Errorf("metric = %q, want ndcg@10", cfg.Training.Metric)
	}
	if cfg.Training.MaxRounds != 20 {
		t.Errorf("max rounds = %d, want 20", cfg.Training.MaxRounds)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Postgres.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AR_SERVER_PORT", "7070")
	t.Setenv("AR_POSTGRES_HOST", "db.internal")
	t.Setenv("AR_TRAINING_METRIC", "p@5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %q, want db.internal", cfg.Postgres.Host)
	}
	if cfg.Training.Metric != "p@5" {
		t.Errorf("training metric = %q, want p@5", cfg.Training.Metric)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "pw",
		Database: "adarank", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=u password=pw dbname=adarank sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
