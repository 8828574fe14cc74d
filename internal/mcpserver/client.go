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

// Config holds the configuration for connecting to the Ringtrace API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // API key, e.g. "sk_..." (required for mutations)
}

// RingtraceClient is a pure HTTP client for the Ringtrace API.
type RingtraceClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewRingtraceClient creates a new client for the Ringtrace API.
func NewRingtraceClient(cfg Config) *RingtraceClient {
	return &RingtraceClient{
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
func (c *RingtraceClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
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

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
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

// CreateGraph creates a new investigation graph.
func (c *RingtraceClient) CreateGraph(ctx context.Context, name, description string) (json.RawMessage, error) {
	body := map[string]string{"name": name}
	if description != "" {
		body["description"] = description
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs", nil, body)
}

// ListGraphs lists investigation graphs, optionally filtered by status.
func (c *RingtraceClient) ListGraphs(ctx context.Context, status string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/graphs", q, nil)
}

// AddNode adds an entity node to a graph.
func (c *RingtraceClient) AddNode(ctx context.Context, graphID, nodeID, nodeType string, riskScore *float64, properties map[string]any) (json.RawMessage, error) {
	body := map[string]any{"type": nodeType}
	if nodeID != "" {
		body["id"] = nodeID
	}
	if riskScore != nil {
		body["riskScore"] = *riskScore
	}
	if len(properties) > 0 {
		body["properties"] = properties
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs/"+graphID+"/nodes", nil, body)
}

// AddEdge adds a relationship edge to a graph.
func (c *RingtraceClient) AddEdge(ctx context.Context, graphID, source, target, edgeType string, weight *float64) (json.RawMessage, error) {
	body := map[string]any{
		"sourceNodeId": source,
		"targetNodeId": target,
		"type":         edgeType,
	}
	if weight != nil {
		body["weight"] = *weight
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs/"+graphID+"/edges", nil, body)
}

// AnalyzeGraph runs a comprehensive analysis pass over a graph.
func (c *RingtraceClient) AnalyzeGraph(ctx context.Context, graphID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs/"+graphID+"/analyze", nil, nil)
}

// DetectRings runs fraud-ring detection over a graph.
func (c *RingtraceClient) DetectRings(ctx context.Context, graphID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs/"+graphID+"/rings", nil, nil)
}

// DetectCommunities runs community detection over a graph.
func (c *RingtraceClient) DetectCommunities(ctx context.Context, graphID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/graphs/"+graphID+"/communities", nil, nil)
}

// GetAnalysis fetches a persisted analysis result by id.
func (c *RingtraceClient) GetAnalysis(ctx context.Context, analysisID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/analyses/"+analysisID, nil, nil)
}
