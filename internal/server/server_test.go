package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/orium/internal/database"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/runs"
	testingpkg "github.com/aristath/orium/internal/testing"
	"github.com/aristath/orium/internal/training"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv  *Server
	db   *database.DB
	repo *runs.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "runs")
	t.Cleanup(cleanup)

	repo := runs.NewRepository(db.Conn(), zerolog.Nop())
	srv := New(Config{
		Log:    zerolog.Nop(),
		Port:   0,
		RunsDB: db,
		Runs:   repo,
	})
	return &testServer{srv: srv, db: db, repo: repo}
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (ts *testServer) seedRun(t *testing.T, values ...float64) *runs.Run {
	t.Helper()
	ctx := context.Background()
	run, err := ts.repo.CreateRun(ctx, training.DefaultHyperparameters(), environment.DefaultConfig())
	require.NoError(t, err)
	for i, v := range values {
		require.NoError(t, ts.repo.RecordEpisode(ctx, run.ID, training.EpisodeResult{
			Index:               i,
			FinalPortfolioValue: v,
			Steps:               10,
			Epsilon:             0.5,
			Duration:            time.Second,
		}))
	}
	return run
}

func TestHandleRoot(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, map[string]string{"status": "online", "project": "Orium Backend v1.0"}, body)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleHealth_ClosedDatabase(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.db.Close())

	w := ts.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleTrainingStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/training/status")
	require.Equal(t, http.StatusOK, w.Code)
	var idle TrainingStatus
	decode(t, w, &idle)
	assert.Equal(t, StateIdle, idle.State)

	tr := ts.srv.Tracker()
	tr.Start("abc", 5, 1.0)
	require.NoError(t, tr.ObserveEpisode(context.Background(), training.EpisodeResult{Index: 0, FinalPortfolioValue: 11.5, Epsilon: 0.995}))

	w = ts.get(t, "/api/training/status")
	require.Equal(t, http.StatusOK, w.Code)
	var running TrainingStatus
	decode(t, w, &running)
	assert.Equal(t, StateRunning, running.State)
	assert.Equal(t, "abc", running.RunID)
	assert.Equal(t, 1, running.EpisodesCompleted)
	require.NotNil(t, running.LastEpisode)
	assert.Equal(t, 11.5, running.LastEpisode.FinalPortfolioValue)
}

func TestHandleListRuns(t *testing.T) {
	ts := newTestServer(t)
	ts.seedRun(t, 10)
	ts.seedRun(t, 11)
	ts.seedRun(t, 12)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCount int
	}{
		{name: "default limit", path: "/api/runs", wantCode: http.StatusOK, wantCount: 3},
		{name: "explicit limit", path: "/api/runs?limit=2", wantCode: http.StatusOK, wantCount: 2},
		{name: "zero means all", path: "/api/runs?limit=0", wantCode: http.StatusOK, wantCount: 3},
		{name: "bad limit", path: "/api/runs?limit=abc", wantCode: http.StatusBadRequest},
		{name: "negative limit", path: "/api/runs?limit=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.get(t, tt.path)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Runs  []runs.Run `json:"runs"`
				Count int        `json:"count"`
			}
			decode(t, w, &body)
			assert.Equal(t, tt.wantCount, body.Count)
			assert.Len(t, body.Runs, tt.wantCount)
		})
	}
}

func TestHandleGetRun(t *testing.T) {
	ts := newTestServer(t)
	run := ts.seedRun(t, 10, 14, 12)

	w := ts.get(t, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, w.Code)

	var body runDetail
	decode(t, w, &body)
	require.NotNil(t, body.Run)
	assert.Equal(t, run.ID, body.Run.ID)
	assert.Equal(t, 3, body.Run.EpisodesCompleted)
	require.NotNil(t, body.Summary)
	assert.Equal(t, 3, body.Summary.Episodes)
	assert.InDelta(t, 12.0, body.Summary.MeanPortfolioValue, 1e-9)
	assert.Equal(t, 14.0, body.Summary.BestPortfolioValue)
	assert.Equal(t, 10.0, body.Summary.WorstPortfolioValue)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.get(t, "/api/runs/does-not-exist/episodes")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListEpisodes(t *testing.T) {
	ts := newTestServer(t)
	run := ts.seedRun(t, 10, 11)

	w := ts.get(t, "/api/runs/"+run.ID+"/episodes")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		RunID    string         `json:"run_id"`
		Episodes []runs.Episode `json:"episodes"`
		Count    int            `json:"count"`
	}
	decode(t, w, &body)
	assert.Equal(t, run.ID, body.RunID)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Episodes, 2)
	assert.Equal(t, 0, body.Episodes[0].Index)
	assert.Equal(t, 11.0, body.Episodes[1].FinalPortfolioValue)
}

func TestHandleRuns_NoRepository(t *testing.T) {
	srv := New(Config{Log: zerolog.Nop()})

	for _, path := range []string{"/api/runs", "/api/runs/x", "/api/runs/x/episodes"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestHandleSystemStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/api/system")
	require.Equal(t, http.StatusOK, w.Code)

	var body SystemStatusResponse
	decode(t, w, &body)
	assert.Greater(t, body.Goroutines, 0)
	assert.GreaterOrEqual(t, body.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, body.MemoryPercent, 0.0)
	assert.Greater(t, body.HeapAllocMB, 0.0)
	require.NotNil(t, body.RunsDB)
	assert.Greater(t, body.RunsDB.PageSize, int64(0))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/training/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
