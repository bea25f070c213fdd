// Package client talks to the REFLEX pipeline server. It issues commands
// (create a run, trigger a stage) and reads back run state; it never computes
// stage results itself.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

// DefaultBaseURL is where the server listens in a local setup.
const DefaultBaseURL = "http://127.0.0.1:8000"

// RequestIDHeader carries a per-call id so client and server logs line up.
const RequestIDHeader = "X-Request-ID"

// Notifier is told about every transport failure before it is returned to the
// caller.
type Notifier func(err *TransportError)

// Client issues JSON requests against the REFLEX server.
type Client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	notify     Notifier
	requestIDs func() string
	inflight   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithNotifier installs the boundary error notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notify = n
	}
}

// WithRequestIDs overrides the request id generator.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestIDs = gen
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL:    base,
		requestIDs: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.http = &http.Client{Timeout: c.timeout}
	return c
}

// BaseURL returns the server root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type createRunRequest struct {
	Directive string `json:"directive"`
}

type createRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status,omitempty"`
}

type updateStageRequest struct {
	Data json.RawMessage `json:"data"`
}

// CreateRun starts a new run for directive and returns its id.
func (c *Client) CreateRun(ctx context.Context, directive string) (string, error) {
	var resp createRunResponse
	if err := c.Do(ctx, http.MethodPost, "/runs", createRunRequest{Directive: directive}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.RunID) == "" {
		return "", c.fail(&TransportError{Method: http.MethodPost, Path: "/runs", Message: "response missing run_id"})
	}
	return resp.RunID, nil
}

// FetchState reads the full state of runID, provenance included. Concurrent
// calls for the same run share a single request.
func (c *Client) FetchState(ctx context.Context, runID string) (*pipeline.Snapshot, error) {
	path := fmt.Sprintf("/runs/%s/state?include_provenance=true", url.PathEscape(runID))
	v, err, _ := c.inflight.Do(path, func() (any, error) {
		body, err := c.roundTrip(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		snap, err := pipeline.Parse(body)
		if err != nil {
			return nil, c.fail(&TransportError{Method: http.MethodGet, Path: path, Message: "unreadable run state", Cause: err})
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.Snapshot), nil
}

// TriggerBaseline asks the server to compute the consumer baseline.
func (c *Client) TriggerBaseline(ctx context.Context, runID string) error {
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/runs/%s/baseline", url.PathEscape(runID)), nil, nil)
}

// TriggerStage asks the server to execute one pipeline stage. The baseline has
// its own endpoint and is rejected here.
func (c *Client) TriggerStage(ctx context.Context, runID string, key pipeline.StageKey) error {
	path := fmt.Sprintf("/runs/%s/reflex/%s", url.PathEscape(runID), url.PathEscape(string(key)))
	if !key.IsStage() {
		return c.fail(&TransportError{Method: http.MethodPost, Path: path, Message: fmt.Sprintf("unknown stage %q", key)})
	}
	return c.Do(ctx, http.MethodPost, path, nil, nil)
}

// Trigger dispatches to TriggerBaseline or TriggerStage.
func (c *Client) Trigger(ctx context.Context, runID string, key pipeline.StageKey) error {
	if key == pipeline.Baseline {
		return c.TriggerBaseline(ctx, runID)
	}
	return c.TriggerStage(ctx, runID, key)
}

// UpdateStage replaces a stage's output by hand. The server marks the stage
// completed and resets every downstream stage to pending.
func (c *Client) UpdateStage(ctx context.Context, runID string, key pipeline.StageKey, data json.RawMessage) error {
	path := fmt.Sprintf("/runs/%s/reflex/%s", url.PathEscape(runID), url.PathEscape(string(key)))
	if !key.IsStage() {
		return c.fail(&TransportError{Method: http.MethodPut, Path: path, Message: fmt.Sprintf("unknown stage %q", key)})
	}
	if !json.Valid(data) {
		return c.fail(&TransportError{Method: http.MethodPut, Path: path, Message: "stage data is not valid JSON"})
	}
	return c.Do(ctx, http.MethodPut, path, updateStageRequest{Data: data}, nil)
}

// Do sends body (JSON-encoded when non-nil) to path and decodes the response
// into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return c.fail(&TransportError{Method: method, Path: path, Message: "encode request", Cause: err})
		}
		payload = encoded
	}
	respBody, err := c.roundTrip(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return c.fail(&TransportError{Method: method, Path: path, Message: "decode response", Cause: err})
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, c.fail(&TransportError{Method: method, Path: path, Message: "create request", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, c.requestIDs())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(&TransportError{Method: method, Path: path, Message: "request failed", Cause: err})
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&TransportError{Method: method, Path: path, Message: "read response", Cause: err})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(&TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
		})
	}
	return respBody, nil
}

func (c *Client) fail(err *TransportError) error {
	if c.notify != nil {
		c.notify(err)
	}
	return err
}
