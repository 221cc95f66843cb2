// Package worker provides the HTTP client for the external scan worker. The
// worker owns scan execution and webhook processing; this side only submits
// work, polls state, signals cancellation, and forwards webhook payloads.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tmeadows/scanhub/internal/config"
	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/pkg/common/logger"
)

// Compile-time checks that Client satisfies the domain ports.
var (
	_ scanning.WorkerGateway    = (*Client)(nil)
	_ scanning.WebhookForwarder = (*Client)(nil)
)

// maxErrorBody bounds how much of a worker error response we keep for logs
// and error messages.
const maxErrorBody = 2048

// Client talks to the scan worker over HTTP. Every method applies its own
// deadline from config so a slow worker can never stall a request handler
// beyond the configured bound.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.WorkerConfig
	log        *logger.Logger
}

// NewClient creates a worker client. The base URL is normalized to have no
// trailing slash so path joins are predictable.
func NewClient(cfg config.WorkerConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg: cfg,
		log: log,
	}
}

// SubmitJob hands a job to the worker's intake endpoint.
func (c *Client) SubmitJob(ctx context.Context, req scanning.SubmitRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling submit request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/submit-job", bytes.NewReader(payload))
	if err != nil {
		return classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("worker rejected job %s: status %d: %s", req.JobID, resp.StatusCode, body)
	}
	return nil
}

// workerJobResponse is the wire shape of the worker's job status endpoint.
type workerJobResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// JobState queries the worker for its view of a job. A 404 from the worker
// means it has no record of the job; that is reported as an empty state, not
// an error, because the local record remains authoritative.
func (c *Client) JobState(ctx context.Context, jobID uuid.UUID) (scanning.WorkerState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID.String(), nil)
	if err != nil {
		return scanning.WorkerState{}, classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return scanning.WorkerState{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return scanning.WorkerState{}, fmt.Errorf("worker job status for %s: status %d: %s", jobID, resp.StatusCode, body)
	}

	var wire workerJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return scanning.WorkerState{}, fmt.Errorf("decoding worker job status: %w", err)
	}

	status := scanning.ParseJobStatus(wire.Status)
	if status == "" && wire.Status != "" {
		c.log.Warn(ctx, "worker reported unknown job status", "job_id", jobID, "status", wire.Status)
	}
	return scanning.WorkerState{Status: status, Result: wire.Result, Error: wire.Error}, nil
}

// CancelJob signals the worker to stop processing a job.
func (c *Client) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CancelTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/jobs/"+jobID.String()+"/cancel", nil)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("worker cancel for %s: status %d: %s", jobID, resp.StatusCode, body)
	}
	return nil
}

// Healthy reports whether the worker responds to its health endpoint within
// the configured bound.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health status %d", scanning.ErrWorkerUnavailable, resp.StatusCode)
	}
	return nil
}

// ForwardWebhook posts the exact raw body to the worker's webhook endpoint.
// The worker's status code and body come back verbatim; a non-2xx response is
// a result, not an error, so the caller can preserve status fidelity.
func (c *Client) ForwardWebhook(ctx context.Context, body []byte, headers map[string]string) (scanning.ForwardResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ForwardTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks/github", bytes.NewReader(body))
	if err != nil {
		return scanning.ForwardResult{}, fmt.Errorf("building forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return scanning.ForwardResult{}, fmt.Errorf("%w after %s", scanning.ErrForwardTimeout, time.Since(start).Round(time.Millisecond))
		}
		return scanning.ForwardResult{}, fmt.Errorf("%w: %v", scanning.ErrWorkerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return scanning.ForwardResult{}, fmt.Errorf("reading worker webhook response: %w", err)
	}
	return scanning.ForwardResult{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building worker request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// classifyTransportErr maps network-level failures and timeouts onto the
// retryable sentinel so callers can branch on reachability without inspecting
// transport internals.
func classifyTransportErr(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", scanning.ErrWorkerUnavailable, err)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}
