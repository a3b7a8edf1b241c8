// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/models"
)

// maxResponseBytes bounds decoded responses; a model snapshot is the largest.
const maxResponseBytes = 64 << 20

// Config configures a coordinator client.
type Config struct {
	// BaseURL is the coordinator root, e.g. http://127.0.0.1:8471.
	BaseURL string

	// Timeout bounds each HTTP request.
	// Default: 10s.
	Timeout time.Duration

	// RequestsPerSecond and Burst pace outgoing requests.
	// Default: 10 and 5.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive server faults open the circuit for
	// BreakerTimeout.
	// Default: 5 and 30s.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// HTTPClient overrides the transport (tests). Timeout is ignored when set.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Client talks to a coordinator's HTTP API. It is safe for concurrent use.
//
// Requests are paced by a token bucket and pass through a circuit breaker.
// The breaker fails fast while open; the client never retries on its own.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	name    string
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid coordinator URL %q", federated.ErrConfiguration, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	name := "coordinator:" + u.Host
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cb:      newBreaker(name, cfg.BreakerFailures, cfg.BreakerTimeout),
		name:    name,
	}, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

// do sends one request and decodes the envelope's data into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := c.execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var env models.APIResponse
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			se.API = env.Error
		}
		return nil, se
	}
	return raw, nil
}

// Ready checks the coordinator's readiness endpoint.
func (c *Client) Ready(ctx context.Context) (*models.HealthStatus, error) {
	var health models.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/health/ready", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// InitializeModel creates the global model on the coordinator.
func (c *Client) InitializeModel(ctx context.Context, req models.InitializeModelRequest) (*storage.ModelSnapshot, error) {
	var model models.ModelResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/model", req, &model); err != nil {
		return nil, err
	}
	return model.Snapshot(), nil
}

// FetchModel downloads the current model snapshot.
func (c *Client) FetchModel(ctx context.Context) (*storage.ModelSnapshot, error) {
	var model models.ModelResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/model", nil, &model); err != nil {
		return nil, err
	}
	return model.Snapshot(), nil
}

// RegisterItem registers title with the coordinator's vocabulary.
func (c *Client) RegisterItem(ctx context.Context, title string) (*models.RegisterItemResponse, error) {
	var resp models.RegisterItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", models.RegisterItemRequest{Title: title}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApplyInteraction sends an out-of-round interaction delta.
func (c *Client) ApplyInteraction(ctx context.Context, delta federated.Delta) (*models.AggregationResponse, error) {
	var resp models.AggregationResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/interactions", models.InteractionRequest{Delta: delta}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenRound opens a new round.
func (c *Client) OpenRound(ctx context.Context) (*round.Round, error) {
	var rnd round.Round
	if err := c.do(ctx, http.MethodPost, "/api/v1/rounds", nil, &rnd); err != nil {
		return nil, err
	}
	return &rnd, nil
}

// ListRounds returns the open rounds.
func (c *Client) ListRounds(ctx context.Context) ([]round.Round, error) {
	var rounds []round.Round
	if err := c.do(ctx, http.MethodGet, "/api/v1/rounds", nil, &rounds); err != nil {
		return nil, err
	}
	return rounds, nil
}

// SubmitDelta submits a participant's delta to an open round.
func (c *Client) SubmitDelta(ctx context.Context, roundID, participantID string, weight float64, delta federated.Delta) error {
	req := models.SubmitDeltaRequest{ParticipantID: participantID, Weight: weight, Delta: delta}
	return c.do(ctx, http.MethodPost, "/api/v1/rounds/"+url.PathEscape(roundID)+"/deltas", req, nil)
}

// CloseRound closes a round and returns the aggregation result.
func (c *Client) CloseRound(ctx context.Context, roundID string) (*round.Result, error) {
	var result round.Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/rounds/"+url.PathEscape(roundID)+"/close", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
