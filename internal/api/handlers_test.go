package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/rugscan/internal/analysis"
	"github.com/mbd888/rugscan/internal/jobs"
	"github.com/mbd888/rugscan/internal/scoring"
)

const (
	testAddr  = "0x1234567890123456789012345678901234567890"
	otherAddr = "0xabcdef1234567890123456789012345678901234"
)

type stuckAnalyzer struct{}

func (stuckAnalyzer) Analyze(ctx context.Context, chain, address string) (*analysis.Report, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testRouter(t *testing.T, store analysis.Store) (*gin.Engine, *jobs.Queue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := analysis.NewService(analysis.ServiceConfig{
		Store:  store,
		Cache:  analysis.NewCache(time.Hour),
		Logger: logger,
	})
	// Workers never started: queued jobs stay queued for the duration of a test.
	queue := jobs.New(jobs.Config{Analyzer: stuckAnalyzer{}, Logger: logger})

	r := gin.New()
	h := NewHandler(service, queue, []string{"ethereum", "base"}, time.Hour)
	h.RegisterRoutes(r.Group("/v1"))
	return r, queue
}

func storedReport(chain, address string, age time.Duration) *analysis.Report {
	now := time.Now().UTC().Add(-age)
	return &analysis.Report{
		Chain:     chain,
		Address:   address,
		RiskScore: 64,
		RiskTier:  scoring.TierHigh,
		Signals:   []scoring.Signal{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_FreshReportShortCircuits(t *testing.T) {
	store := analysis.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), storedReport("ethereum", testAddr, time.Minute)))
	r, _ := testRouter(t, store)

	w := doJSON(r, "POST", "/v1/analyze", AnalyzeRequest{Chain: "ethereum", Address: testAddr})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status string           `json:"status"`
		Report *analysis.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 64, resp.Report.RiskScore)
}

func TestAnalyze_StaleReportQueuesJob(t *testing.T) {
	store := analysis.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), storedReport("ethereum", testAddr, 48*time.Hour)))
	r, queue := testRouter(t, store)

	w := doJSON(r, "POST", "/v1/analyze", AnalyzeRequest{Chain: "ethereum", Address: testAddr})

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp struct {
		Status string `json:"status"`
		JobID  string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
	require.NotEmpty(t, resp.JobID)

	job, err := queue.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, job.Status)
	assert.Equal(t, "ethereum", job.Chain)
	assert.Equal(t, testAddr, job.Address)
}

func TestAnalyze_DefaultsToEthereum(t *testing.T) {
	r, queue := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "POST", "/v1/analyze", AnalyzeRequest{Address: testAddr})

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	job, err := queue.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", job.Chain)
}

func TestAnalyze_RepeatRequestJoinsExistingJob(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	first := doJSON(r, "POST", "/v1/analyze", AnalyzeRequest{Chain: "base", Address: testAddr})
	second := doJSON(r, "POST", "/v1/analyze", AnalyzeRequest{Chain: "base", Address: testAddr})

	var a, b struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.JobID, b.JobID)
}

func TestAnalyze_Validation(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	tests := []struct {
		name string
		req  AnalyzeRequest
	}{
		{"missing address", AnalyzeRequest{Chain: "ethereum"}},
		{"malformed address", AnalyzeRequest{Chain: "ethereum", Address: "0x1234"}},
		{"unsupported chain", AnalyzeRequest{Chain: "solana", Address: testAddr}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(r, "POST", "/v1/analyze", tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "validation_failed")
		})
	}
}

func TestAnalyze_InvalidBody(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	req := httptest.NewRequest("POST", "/v1/analyze", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestGetJob_NotFound(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "GET", "/v1/jobs/job_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport(t *testing.T) {
	store := analysis.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), storedReport("ethereum", testAddr, 30*24*time.Hour)))
	r, _ := testRouter(t, store)

	// Stored reports are served regardless of age.
	w := doJSON(r, "GET", "/v1/reports/ethereum/"+testAddr, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 64, report.RiskScore)
	assert.Equal(t, scoring.TierHigh, report.RiskTier)
}

func TestGetReport_NotFound(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "GET", "/v1/reports/ethereum/"+otherAddr, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport_BadParams(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "GET", "/v1/reports/solana/"+testAddr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "GET", "/v1/reports/ethereum/nonsense", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports(t *testing.T) {
	store := analysis.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), storedReport("ethereum", testAddr, time.Hour)))
	require.NoError(t, store.Upsert(context.Background(), storedReport("base", otherAddr, time.Minute)))
	r, _ := testRouter(t, store)

	w := doJSON(r, "GET", "/v1/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reports    []*analysis.Report `json:"reports"`
		Count      int                `json:"count"`
		HasMore    bool               `json:"hasMore"`
		NextCursor string             `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	// Most recently updated first.
	assert.Equal(t, otherAddr, resp.Reports[0].Address)
	assert.False(t, resp.HasMore)

	// First page of one, then follow the cursor to the rest.
	w = doJSON(r, "GET", "/v1/reports?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, otherAddr, resp.Reports[0].Address)
	require.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextCursor)

	w = doJSON(r, "GET", "/v1/reports?limit=1&cursor="+resp.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, testAddr, resp.Reports[0].Address)
	assert.False(t, resp.HasMore)
}

func TestListReports_BadCursor(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "GET", "/v1/reports?cursor=%21%21not-base64", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_cursor")
}

func TestListChains(t *testing.T) {
	r, _ := testRouter(t, analysis.NewMemoryStore())

	w := doJSON(r, "GET", "/v1/chains", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ethereum")
	assert.Contains(t, w.Body.String(), "base")
}

func TestParseLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=999", 200},
		{"limit=-1", 50},
		{"limit=abc", 50},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/v1/reports?"+tc.query, nil)
		assert.Equal(t, tc.want, parseLimit(c, 50, 200), "query %q", tc.query)
	}
}
