package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tmeadows/scanhub/internal/app/relay"
	appscanning "github.com/tmeadows/scanhub/internal/app/scanning"
	"github.com/tmeadows/scanhub/internal/config"
	"github.com/tmeadows/scanhub/internal/infra/storage/scanning/memory"
	"github.com/tmeadows/scanhub/internal/infra/worker"
	"github.com/tmeadows/scanhub/pkg/common/logger"
)

const testWebhookSecret = "integration-secret"

// fakeWorkerServer is an httptest stand-in for the scan worker with a
// scriptable per-job state.
type fakeWorkerServer struct {
	mu     sync.Mutex
	states map[string]string // job id -> status reported on poll
}

func (f *fakeWorkerServer) setState(jobID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[jobID] = status
}

func (f *fakeWorkerServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit-job", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status, ok := f.states[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "result": map[string]any{"engine": "trivy"}})
	})
	mux.HandleFunc("POST /jobs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /webhooks/github", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"received_bytes": len(body), "event": r.Header.Get("X-GitHub-Event")})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type apiHarness struct {
	api    *httptest.Server
	worker *fakeWorkerServer
	vulns  *memory.VulnerabilityStore
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	fw := &fakeWorkerServer{states: make(map[string]string)}
	workerSrv := httptest.NewServer(fw.handler())
	t.Cleanup(workerSrv.Close)

	cfg := &config.Config{
		Env:             "test",
		ListenAddr:      ":0",
		ShutdownTimeout: time.Second,
		Worker: config.WorkerConfig{
			BaseURL:        workerSrv.URL,
			SubmitTimeout:  2 * time.Second,
			PollTimeout:    2 * time.Second,
			CancelTimeout:  2 * time.Second,
			ForwardTimeout: 2 * time.Second,
			HealthTimeout:  2 * time.Second,
		},
		Webhook: config.WebhookConfig{Secret: testWebhookSecret, RateRPS: 1000, RateBurst: 1000},
	}

	log := logger.New(io.Discard, logger.LevelDebug, "api-test", nil)
	tracer := noop.NewTracerProvider().Tracer("test")
	gateway := worker.NewClient(cfg.Worker, log)

	vulns := memory.NewVulnerabilityStore()
	jobSvc := appscanning.NewScanJobService(log, tracer,
		memory.NewJobStore(), memory.NewScanTargetStore(), vulns, gateway)
	relaySvc := relay.NewService(log, tracer,
		relay.NewSignatureVerifier(cfg.Webhook.Secret, log),
		gateway, gateway, memory.NewWebhookMappingStore())

	// Readiness is not exercised here, so a nil pool is fine.
	srv := NewServer(cfg, log, tracer, jobSvc, relaySvc, nil)
	apiSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(apiSrv.Close)

	return &apiHarness{api: apiSrv, worker: fw, vulns: vulns}
}

func (h *apiHarness) do(t *testing.T, method, path, userID string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.api.URL+path, reqBody)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func validCreateBody() map[string]string {
	return map[string]string{
		"job_type": "scan_repo",
		"repo_url": "https://github.com/acme/app",
		"branch":   "main",
	}
}

func TestScanLifecycleEndToEnd(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	resp, body := h.do(t, http.MethodPost, "/v1/scans", "user-1", validCreateBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "PENDING", created.Status)

	// Worker picks the job up.
	h.worker.setState(created.ID, "in_progress")
	resp, body = h.do(t, http.MethodGet, "/v1/scans/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var polled struct {
		Status          string `json:"status"`
		WorkerReachable *bool  `json:"worker_reachable"`
	}
	require.NoError(t, json.Unmarshal(body, &polled))
	assert.Equal(t, "IN_PROGRESS", polled.Status)
	require.NotNil(t, polled.WorkerReachable)
	assert.True(t, *polled.WorkerReachable)

	// Worker finishes; the next read merges completion and enriches.
	h.worker.setState(created.ID, "completed")
	resp, body = h.do(t, http.MethodGet, "/v1/scans/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var done struct {
		Status     string         `json:"status"`
		Result     map[string]any `json:"result"`
		FinishedAt *time.Time     `json:"finished_at"`
	}
	require.NoError(t, json.Unmarshal(body, &done))
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.FinishedAt)
	assert.Equal(t, "trivy", done.Result["engine"])
	assert.Contains(t, done.Result, "vulnerability_counts")

	// Listing shows the job for its owner only.
	resp, body = h.do(t, http.MethodGet, "/v1/scans?status=completed", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Jobs, 1)

	resp, body = h.do(t, http.MethodGet, "/v1/scans", "user-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed.Jobs)
}

func TestCreateScanValidation(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "missing repo_url", body: map[string]string{"job_type": "scan_repo", "branch": "main"}},
		{name: "bad repo_url", body: map[string]string{"job_type": "scan_repo", "repo_url": "not a url", "branch": "main"}},
		{name: "unknown job_type", body: map[string]string{"job_type": "fuzz", "repo_url": "https://github.com/acme/app", "branch": "main"}},
		{name: "missing branch", body: map[string]string{"job_type": "scan_repo", "repo_url": "https://github.com/acme/app"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, _ := h.do(t, http.MethodPost, "/v1/scans", "user-1", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
}

func TestCreateScanRequiresIdentity(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/v1/scans", "", validCreateBody())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetScanAccessControl(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	resp, body := h.do(t, http.MethodPost, "/v1/scans", "user-1", validCreateBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = h.do(t, http.MethodGet, "/v1/scans/"+created.ID, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/v1/scans/00000000-0000-0000-0000-000000000001", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/v1/scans/not-a-uuid", "user-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCancelScanEndpoint(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	resp, body := h.do(t, http.MethodPost, "/v1/scans", "user-1", validCreateBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = h.do(t, http.MethodPost, fmt.Sprintf("/v1/scans/%s/cancel", created.ID), "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "Job cancelled by user", cancelled.Error)

	// A second cancel hits the terminal-state guard.
	resp, _ = h.do(t, http.MethodPost, fmt.Sprintf("/v1/scans/%s/cancel", created.ID), "user-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebhookRelayEndpoint(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	payload := []byte(`{"ref":"refs/heads/main"}`)
	req, err := http.NewRequest(http.MethodPost, h.api.URL+"/webhooks/github", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", signBody(payload, testWebhookSecret))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var relayed struct {
		ReceivedBytes int            `json:"received_bytes"`
		Event         string         `json:"event"`
		Proxy         map[string]any `json:"proxy"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&relayed))
	assert.Equal(t, len(payload), relayed.ReceivedBytes)
	assert.Equal(t, "push", relayed.Event)
	assert.Equal(t, "scanhub", relayed.Proxy["relay"])
}

func TestWebhookRelayRejectsBadSignature(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.api.URL+"/webhooks/github", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookHealthEndpoint(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	resp, body := h.do(t, http.MethodGet, "/webhooks/github", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status           string `json:"status"`
		WorkerReachable  bool   `json:"worker_reachable"`
		SecretConfigured bool   `json:"webhook_secret_configured"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.WorkerReachable)
	assert.True(t, health.SecretConfigured)
}

func TestWebhookMappingEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	resp, _ := h.do(t, http.MethodPost, "/v1/webhooks/mappings", "user-1", map[string]string{
		"hook_id":  "hook-9",
		"repo_url": "https://github.com/acme/app",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/v1/webhooks/mappings/hook-9", "user-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/v1/webhooks/mappings/hook-9", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// signBody computes the GitHub-style signature header for a payload.
func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
