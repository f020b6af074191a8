package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Rugscan API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// RugscanClient is a pure HTTP client for the Rugscan API.
type RugscanClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewRugscanClient creates a new client for the Rugscan API.
func NewRugscanClient(cfg Config) *RugscanClient {
	return &RugscanClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *RugscanClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// Analyze requests an analysis for a token. The response is either a
// completed report or a queued job to poll.
func (c *RugscanClient) Analyze(ctx context.Context, chain, address string) (json.RawMessage, error) {
	body := map[string]string{
		"chain":   chain,
		"address": address,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/analyze", nil, body)
}

// GetJob returns the current state of an analysis job.
func (c *RugscanClient) GetJob(ctx context.Context, jobID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, nil)
}

// GetReport returns the stored report for a token.
func (c *RugscanClient) GetReport(ctx context.Context, chain, address string) (json.RawMessage, error) {
	path := "/v1/reports/" + url.PathEscape(chain) + "/" + url.PathEscape(address)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// ListReports returns the most recently analyzed tokens.
func (c *RugscanClient) ListReports(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/reports", q, nil)
}

// ListChains returns the chains the API can analyze.
func (c *RugscanClient) ListChains(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/chains", nil, nil)
}
