// Package integration contains tests that verify the interaction between
// multiple components. These tests use httptest servers with real handler
// wiring and a real PostgreSQL database; they skip when the database is
// unavailable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/marcosfpr/adarank/internal/ltr/boosting"
	"github.com/marcosfpr/adarank/internal/scorer"
	"github.com/marcosfpr/adarank/internal/scorer/handler"
	"github.com/marcosfpr/adarank/internal/scorer/modelcache"
	"github.com/marcosfpr/adarank/internal/trainer/store"
	"github.com/marcosfpr/adarank/pkg/config"
	"github.com/marcosfpr/adarank/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := testPostgresConfig()
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "adarank_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "adarank"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "adarank"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// newModelStore creates a Store with the schema in place.
func newModelStore(t *testing.T, db *postgres.Client) *store.Store {
	t.Helper()
	st := store.New(db)
	if err := st.EnsureSchema(t.Context()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return st
}

// newScorerServer wires a scorer handler over a real store; Redis stays nil
// so lookups go straight to PostgreSQL through singleflight.
func newScorerServer(t *testing.T, st *store.Store) *httptest.Server {
	t.Helper()
	cache := modelcache.New(st, nil, config.RedisConfig{CacheTTL: time.Minute}, nil)
	h := handler.New(cache, nil, 100)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func saveTestModel(t *testing.T, st *store.Store, name string) {
	t.Helper()
	m := &store.Model{
		Name:          name,
		Metric:        "MAP",
		Status:        "converged",
		Rounds:        1,
		TrainingScore: 1.0,
		Ensemble: boosting.Ensemble{Stumps: []boosting.Stump{
			{WeakRanker: boosting.WeakRanker{Feature: 1}, Confidence: 1.0},
		}},
	}
	if err := st.Save(t.Context(), m); err != nil {
		t.Fatalf("saving model: %v", err)
	}
	t.Cleanup(func() { st.Delete(t.Context(), name) })
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestModelLifecycle exercises save, get, list, and delete against the
// real database.
func TestModelLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	st := newModelStore(t, db)

	saveTestModel(t, st, "it-lifecycle")

	m, err := st.Get(t.Context(), "it-lifecycle")
	if err != nil {
		t.Fatalf("getting model: %v", err)
	}
	if m.Rounds != 1 || m.Ensemble.Len() != 1 {
		t.Errorf("loaded model rounds=%d stumps=%d, want 1 and 1", m.Rounds, m.Ensemble.Len())
	}

	// Upsert replaces.
	m.Rounds = 5
	if err := st.Save(t.Context(), m); err != nil {
		t.Fatalf("resaving model: %v", err)
	}
	again, err := st.Get(t.Context(), "it-lifecycle")
	if err != nil {
		t.Fatalf("reloading model: %v", err)
	}
	if again.Rounds != 5 {
		t.Errorf("rounds after upsert = %d, want 5", again.Rounds)
	}

	summaries, err := st.List(t.Context())
	if err != nil {
		t.Fatalf("listing models: %v", err)
	}
	found := false
	for _, s := range summaries {
		if s.Name == "it-lifecycle" {
			found = true
		}
	}
	if !found {
		t.Error("saved model missing from listing")
	}

	if err := st.Delete(t.Context(), "it-lifecycle"); err != nil {
		t.Fatalf("deleting model: %v", err)
	}
	if _, err := st.Get(t.Context(), "it-lifecycle"); err == nil {
		t.Error("expected not-found after delete")
	}
}

// TestRankEndpoint ranks three documents with a stored single-stump model
// and checks the returned order.
func TestRankEndpoint(t *testing.T) {
	db := skipIfNoPostgres(t)
	st := newModelStore(t, db)
	saveTestModel(t, st, "it-ranker")
	srv := newScorerServer(t, st)

	resp := postJSON(t, srv.URL+"/v1/rank", scorer.RankRequest{
		Model: "it-ranker",
		Documents: []scorer.Document{
			{ID: "low", Features: map[string]float64{"1": 0.1}},
			{ID: "high", Features: map[string]float64{"1": 0.9}},
			{ID: "mid", Features: map[string]float64{"1": 0.5}},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body scorer.RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	wantOrder := []string{"high", "mid", "low"}
	if len(body.Results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(body.Results), len(wantOrder))
	}
	for i, want := range wantOrder {
		got := body.Results[i]
		if got.ID != want {
			t.Errorf("result %d = %s, want %s", i, got.ID, want)
		}
		if got.Rank != i+1 {
			t.Errorf("result %d rank = %d, want %d", i, got.Rank, i+1)
		}
	}
}

// TestRankUnknownModel verifies a missing model maps to 404.
func TestRankUnknownModel(t *testing.T) {
	db := skipIfNoPostgres(t)
	st := newModelStore(t, db)
	srv := newScorerServer(t, st)

	resp := postJSON(t, srv.URL+"/v1/rank", scorer.RankRequest{
		Model:     "it-no-such-model",
		Documents: []scorer.Document{{ID: "d", Features: map[string]float64{"1": 1}}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// TestRankValidation covers request validation failures.
func TestRankValidation(t *testing.T) {
	db := skipIfNoPostgres(t)
	st := newModelStore(t, db)
	saveTestModel(t, st, "it-validation")
	srv := newScorerServer(t, st)

	cases := []struct {
		name string
		req  scorer.RankRequest
		want int
	}{
		{"missing model", scorer.RankRequest{
			Documents: []scorer.Document{{ID: "d"}},
		}, http.StatusBadRequest},
		{"no documents", scorer.RankRequest{
			Model: "it-validation",
		}, http.StatusBadRequest},
		{"bad feature key", scorer.RankRequest{
			Model:     "it-validation",
			Documents: []scorer.Document{{ID: "d", Features: map[string]float64{"zero": 1}}},
		}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/v1/rank", c.req)
			resp.Body.Close()
			if resp.StatusCode != c.want {
				t.Errorf("expected %d, got %d", c.want, resp.StatusCode)
			}
		})
	}
}

// TestScoreEndpoint scores a single document.
func TestScoreEndpoint(t *testing.T) {
	db := skipIfNoPostgres(t)
	st := newModelStore(t, db)
	saveTestModel(t, st, "it-score")
	srv := newScorerServer(t, st)

	resp := postJSON(t, srv.URL+"/v1/score", scorer.ScoreRequest{
		Model:    "it-score",
		Document: scorer.Document{ID: "d", Features: map[string]float64{"1": 0.75}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var scored scorer.ScoredDocument
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if scored.Score != 0.75 {
		t.Errorf("score = %v, want 0.75 (confidence 1.0 times feature 1)", scored.Score)
	}
}
