package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donsko1/DNS-case/internal/api/handlers"
	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/pkg/logger"
)

type memoryStore struct {
	aggregated []contracts.AggregatedRecord
	results    []contracts.ResultRecord
	err        error
}

func (m *memoryStore) SaveAggregated(ctx context.Context, rows []contracts.AggregatedRecord) error {
	m.aggregated = rows
	return nil
}

func (m *memoryStore) LoadAggregated(ctx context.Context) ([]contracts.AggregatedRecord, error) {
	return m.aggregated, m.err
}

func (m *memoryStore) SaveResults(ctx context.Context, rows []contracts.ResultRecord) error {
	m.results = rows
	return nil
}

func (m *memoryStore) LoadResults(ctx context.Context) ([]contracts.ResultRecord, error) {
	return m.results, m.err
}

type fakeRunner struct {
	runs int
	err  error
}

func (f *fakeRunner) RunChain(ctx context.Context, jobName string) ([]scheduler.JobResult, error) {
	f.runs++
	return []scheduler.JobResult{{JobName: jobName, Success: f.err == nil}}, f.err
}

func (f *fakeRunner) GetAllJobs() []string { return []string{"data_processing", "assessment"} }

func (f *fakeRunner) Roots() []string { return []string{"data_processing"} }

func (f *fakeRunner) GetJobStats() map[string]scheduler.JobStats {
	return map[string]scheduler.JobStats{
		"data_processing": {JobName: "data_processing", Schedule: "0 0 15 * * *", TotalRuns: 3},
		"assessment":      {JobName: "assessment", DependsOn: []string{"data_processing"}},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestRouter(store *memoryStore, runner *fakeRunner, interval time.Duration, health HealthCheck) http.Handler {
	log := logger.NewWithWriter(io.Discard, "error")
	rules := pipelineconfig.NewHolder(pipelineconfig.Default())
	return NewRouter(
		handlers.NewQualityHandler(store, rules, log),
		handlers.NewPipelineHandler(runner, log),
		NewTriggerLimiter(interval),
		health,
		log,
	)
}

func sampleStore() *memoryStore {
	kettle, mixer := "Kettle", "Mixer"
	return &memoryStore{
		aggregated: []contracts.AggregatedRecord{
			{ProductID: "1", Sold: 500, Defects: 10, Name: &kettle, PercentDefects: dec("2")},
			{ProductID: "2", Sold: 300, Defects: 12, Name: &kettle, PercentDefects: dec("4")},
			{ProductID: "3", Sold: 50, Defects: 5, Name: &mixer, PercentDefects: dec("10")},
		},
		results: []contracts.ResultRecord{
			{ProductID: "1", PercentDefects: dec("2"), Grade: contracts.GradeGoodQuality},
			{ProductID: "2", PercentDefects: dec("4"), Grade: contracts.GradePoorQuality},
			{ProductID: "3", PercentDefects: dec("10"), Grade: contracts.GradeInsufficientData},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestRouter(sampleStore(), &fakeRunner{}, 0, nil), "GET", "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	failing := func(ctx context.Context) error { return errors.New("db down") }
	rec, body = do(t, newTestRouter(sampleStore(), &fakeRunner{}, 0, failing), "GET", "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db down", body["error"])
}

func TestQualityResults(t *testing.T) {
	router := newTestRouter(sampleStore(), &fakeRunner{}, 0, nil)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCount float64
	}{
		{"all", "/api/quality/results", http.StatusOK, 3},
		{"by grade", "/api/quality/results?grade=poor%20quality", http.StatusOK, 1},
		{"unknown grade", "/api/quality/results?grade=excellent", http.StatusBadRequest, 0},
		{"aggregated", "/api/quality/aggregated", http.StatusOK, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, "GET", tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCount, body["count"])
			}
		})
	}
}

func TestQualityResult_ByProduct(t *testing.T) {
	router := newTestRouter(sampleStore(), &fakeRunner{}, 0, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/quality/results/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"percentDefects":4.0`), rec.Body.String())
	assert.True(t, strings.Contains(rec.Body.String(), `"grade":"poor quality"`))

	rec, _ = do(t, router, "GET", "/api/quality/results/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQualityResults_NotProducedYet(t *testing.T) {
	store := &memoryStore{err: contracts.ErrSourceUnavailable}
	rec, _ := do(t, newTestRouter(store, &fakeRunner{}, 0, nil), "GET", "/api/quality/results")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = contracts.ErrMalformedRecord
	rec, _ = do(t, newTestRouter(store, &fakeRunner{}, 0, nil), "GET", "/api/quality/results")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQualitySummary(t *testing.T) {
	rec, body := do(t, newTestRouter(sampleStore(), &fakeRunner{}, 0, nil), "GET", "/api/quality/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 3.0, body["rows"])
	assert.Equal(t, 2.0, body["qualifying"])

	grades := body["grades"].(map[string]interface{})
	assert.Equal(t, 1.0, grades["good quality"])
	assert.Equal(t, 1.0, grades["poor quality"])
	assert.Equal(t, 1.0, grades["insufficient data"])

	baselines := body["baselines"].([]interface{})
	require.Len(t, baselines, 1)
	kettle := baselines[0].(map[string]interface{})
	assert.Equal(t, "Kettle", kettle["product"])
	assert.Equal(t, 3.0, kettle["mean"])
}

func TestPipelineJobs(t *testing.T) {
	rec, body := do(t, newTestRouter(sampleStore(), &fakeRunner{}, 0, nil), "GET", "/api/pipeline/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs := body["jobs"].([]interface{})
	require.Len(t, jobs, 2)
	assert.Equal(t, "data_processing", jobs[0].(map[string]interface{})["job_name"])
	assert.Equal(t, "assessment", jobs[1].(map[string]interface{})["job_name"])
}

func TestPipelineRun(t *testing.T) {
	t.Run("success then rate limited", func(t *testing.T) {
		runner := &fakeRunner{}
		router := newTestRouter(sampleStore(), runner, time.Hour, nil)

		rec, body := do(t, router, "POST", "/api/pipeline/run")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", body["status"])

		rec, _ = do(t, router, "POST", "/api/pipeline/run")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, 1, runner.runs)
	})

	t.Run("failure", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("job data_processing failed")}
		rec, body := do(t, newTestRouter(sampleStore(), runner, 0, nil), "POST", "/api/pipeline/run")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed", body["status"])
	})

	t.Run("already running", func(t *testing.T) {
		runner := &fakeRunner{err: scheduler.ErrChainRunning}
		rec, _ := do(t, newTestRouter(sampleStore(), runner, 0, nil), "POST", "/api/pipeline/run")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("GET not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(sampleStore(), &fakeRunner{}, 0, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/pipeline/run", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsRouter(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
