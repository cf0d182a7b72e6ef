// Package coordination bridges isolated workers to shared run state.
// This file implements the typed HTTP client used from inside worker
// processes. The worker launcher hands each worker the coordination endpoint
// together with its sandbox path; this client is everything a worker needs to
// speak the protocol.
package coordination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrz1836/dilagent/internal/domain"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// defaultClientTimeout bounds individual coordination calls. Operations are
// small JSON round-trips on loopback; anything slower indicates a wedged manager.
const defaultClientTimeout = 30 * time.Second

// Client is a typed caller of the coordination protocol.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL
// (e.g. "http://127.0.0.1:7342").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// ReportStatus reports worker progress for a hypothesis.
func (c *Client) ReportStatus(ctx context.Context, hypothesisID string, req StatusReportRequest) error {
	path := fmt.Sprintf("/v1/hypotheses/%s/status", hypothesisID)
	return c.post(ctx, path, req, nil)
}

// SetResult submits the terminal result for a hypothesis.
func (c *Client) SetResult(ctx context.Context, hypothesisID string, result domain.HypothesisResult) error {
	details, err := json.Marshal(result)
	if err != nil {
		return dilerrors.Wrap(err, "failed to marshal result")
	}
	req := SetResultRequest{Verdict: result.Verdict(), Details: details}
	path := fmt.Sprintf("/v1/hypotheses/%s/result", hypothesisID)
	return c.post(ctx, path, req, nil)
}

// QueryAllStatuses fetches the latest view of every known hypothesis.
func (c *Client) QueryAllStatuses(ctx context.Context) ([]StatusView, error) {
	var resp QueryStatusesResponse
	if err := c.get(ctx, "/v1/hypotheses/status", &resp); err != nil {
		return nil, err
	}
	return resp.Statuses, nil
}

// ResetAll resets every hypothesis to pending.
func (c *Client) ResetAll(ctx context.Context) error {
	return c.post(ctx, "/v1/reset", struct{}{}, nil)
}

// Health checks manager liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// post sends a JSON request body and decodes an optional JSON response.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return dilerrors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return dilerrors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// get sends a GET request and decodes an optional JSON response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dilerrors.Wrap(err, "failed to build request")
	}
	return c.do(req, out)
}

// do executes the request and maps protocol errors back onto sentinels so
// worker code can use errors.Is on coordination failures.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dilerrors.Wrap(err, "coordination call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dilerrors.Wrap(err, "failed to decode response")
	}
	return nil
}

// decodeError turns a non-200 response into a sentinel-tagged error.
func decodeError(resp *http.Response) error {
	var body ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", dilerrors.ErrInvalidPayload, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", dilerrors.ErrUnknownHypothesis, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", dilerrors.ErrHypothesisTerminal, msg)
	default:
		return fmt.Errorf("coordination server returned %d: %s", resp.StatusCode, msg) //nolint:err113 // remote error surface
	}
}
