// Package scoring provides an HTTP client for an upstream risk-scoring
// service. It fills in risk scores for nodes added without one.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mbd888/ringtrace/internal/circuitbreaker"
	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/retry"
)

var (
	ErrUnavailable  = errors.New("scoring: upstream unavailable")
	ErrInvalidScore = errors.New("scoring: upstream returned score outside [0,1]")
)

const breakerKey = "scorer"

// Client calls an external scoring service over HTTP. It implements the
// graph service's Scorer interface. Failures trip a circuit breaker so a
// dead upstream cannot stall node ingestion.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker

	// MaxAttempts bounds retries per score request (default 3).
	MaxAttempts int
	// BaseDelay is the initial backoff between attempts (default 100ms).
	BaseDelay time.Duration
}

// NewClient creates a scoring client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker:     circuitbreaker.New(5, 30*time.Second),
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
	}
}

type scoreRequest struct {
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type scoreResponse struct {
	RiskScore float64 `json:"riskScore"`
	RiskLevel string  `json:"riskLevel,omitempty"`
}

// Score requests a risk score for one entity. The returned score is in
// [0,1]. When the circuit is open the call fails fast with ErrUnavailable.
func (c *Client) Score(ctx context.Context, entityID string, entityType string, properties map[string]interface{}) (float64, error) {
	if !c.breaker.Allow(breakerKey) {
		return 0, ErrUnavailable
	}

	body, err := json.Marshal(scoreRequest{
		EntityID:   entityID,
		EntityType: entityType,
		Properties: properties,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode score request: %w", err)
	}

	var score float64
	err = retry.Do(ctx, c.MaxAttempts, c.BaseDelay, func() error {
		s, err := c.scoreOnce(ctx, body)
		if err != nil {
			return err
		}
		score = s
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		logging.L(ctx).Warn("upstream scoring failed",
			"entity_id", entityID, "entity_type", entityType, "error", err)
		return 0, err
	}

	c.breaker.RecordSuccess(breakerKey)
	return score, nil
}

func (c *Client) scoreOnce(ctx context.Context, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("scorer returned %d", resp.StatusCode)
	default:
		// 4xx means our request is wrong; retrying will not help.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, retry.Permanent(fmt.Errorf("scorer rejected request: %d %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode score response: %w", err)
	}
	if out.RiskScore < 0 || out.RiskScore > 1 {
		return 0, retry.Permanent(ErrInvalidScore)
	}
	return out.RiskScore, nil
}
