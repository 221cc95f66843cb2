package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/domain/scanning"
	"github.com/tmeadows/scanhub/pkg/common/logger"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

// relayIdentity names this service in the proxy metadata block so consumers
// can tell a relayed response from a direct worker response.
const relayIdentity = "scanhub"

// forwardedHeaders is the allow-list of request headers passed through to the
// worker. Everything else (auth material, cookies, infra headers) is dropped.
var forwardedHeaders = []string{
	"X-GitHub-Event",
	"X-GitHub-Delivery",
	"X-Hub-Signature-256",
	"X-GitHub-Hook-ID",
	"User-Agent",
}

// ErrInvalidSignature indicates a webhook delivery whose signature did not
// match the shared secret.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// healthChecker is the slice of the worker gateway the relay needs for its
// health report.
type healthChecker interface {
	Healthy(ctx context.Context) error
}

// Service relays GitHub webhook deliveries to the worker. The worker owns
// webhook processing; this side authenticates the delivery, forwards the raw
// payload, and hands the worker's response back with proxy metadata attached.
type Service struct {
	log    *logger.Logger
	tracer trace.Tracer

	verifier  *SignatureVerifier
	forwarder scanning.WebhookForwarder
	health    healthChecker
	mappings  scanning.WebhookMappingRepository
}

// NewService creates a new webhook relay service.
func NewService(
	log *logger.Logger,
	tracer trace.Tracer,
	verifier *SignatureVerifier,
	forwarder scanning.WebhookForwarder,
	health healthChecker,
	mappings scanning.WebhookMappingRepository,
) *Service {
	return &Service{
		log:       log,
		tracer:    tracer,
		verifier:  verifier,
		forwarder: forwarder,
		health:    health,
		mappings:  mappings,
	}
}

// Result is the relayed response: the worker's status code, verbatim, and a
// body combining the worker's fields with the proxy metadata block.
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

// proxyMetadata describes the relay hop appended to every forwarded response.
type proxyMetadata struct {
	Relay        string `json:"relay"`
	ReceivedAt   string `json:"received_at"`
	DurationMS   int64  `json:"duration_ms"`
	WorkerStatus int    `json:"worker_status"`
}

// Handle authenticates and forwards one webhook delivery.
//
// The body is forwarded byte-for-byte, never re-serialized, so the worker can
// re-verify the signature it receives. The worker's status code is preserved
// in the result even when it is an error code; GitHub uses it to decide
// whether to redeliver. Signature failures return ErrInvalidSignature;
// forward timeouts surface as scanning.ErrForwardTimeout and other transport
// failures as scanning.ErrWorkerUnavailable.
func (s *Service) Handle(ctx context.Context, body []byte, hdr http.Header) (Result, error) {
	ctx, span := otel.AddSpan(ctx, s.tracer, "relay.handle",
		attribute.String("github_event", hdr.Get("X-GitHub-Event")),
		attribute.String("github_delivery", hdr.Get("X-GitHub-Delivery")),
	)
	defer span.End()

	if !s.verifier.Verify(ctx, body, hdr.Get("X-Hub-Signature-256")) {
		s.log.Warn(ctx, "webhook delivery rejected",
			"github_delivery", hdr.Get("X-GitHub-Delivery"),
			"github_event", hdr.Get("X-GitHub-Event"))
		return Result{}, ErrInvalidSignature
	}

	headers := make(map[string]string, len(forwardedHeaders))
	for _, name := range forwardedHeaders {
		headers[name] = hdr.Get(name)
	}

	receivedAt := time.Now().UTC()
	forwarded, err := s.forwarder.ForwardWebhook(ctx, body, headers)
	if err != nil {
		s.log.Error(ctx, "webhook forward failed",
			"github_delivery", hdr.Get("X-GitHub-Delivery"), "error", err)
		return Result{}, err
	}

	meta := proxyMetadata{
		Relay:        relayIdentity,
		ReceivedAt:   receivedAt.Format(time.RFC3339),
		DurationMS:   time.Since(receivedAt).Milliseconds(),
		WorkerStatus: forwarded.StatusCode,
	}
	wrapped, err := wrapResponse(forwarded.Body, meta)
	if err != nil {
		return Result{}, fmt.Errorf("wrapping worker response: %w", err)
	}

	s.log.Info(ctx, "webhook relayed",
		"github_delivery", hdr.Get("X-GitHub-Delivery"),
		"github_event", hdr.Get("X-GitHub-Event"),
		"worker_status", forwarded.StatusCode,
		"duration_ms", meta.DurationMS)

	return Result{StatusCode: forwarded.StatusCode, Body: wrapped}, nil
}

// wrapResponse attaches the proxy metadata to the worker's response body. A
// worker body that is a JSON object keeps all its fields at the top level; a
// non-object body (empty, array, plain text) is carried under "response".
func wrapResponse(workerBody []byte, meta proxyMetadata) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage)
	if len(workerBody) > 0 {
		if err := json.Unmarshal(workerBody, &merged); err != nil {
			merged = make(map[string]json.RawMessage)
			raw, rawErr := json.Marshal(string(workerBody))
			if rawErr != nil {
				return nil, rawErr
			}
			merged["response"] = raw
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	merged["proxy"] = metaJSON

	return json.Marshal(merged)
}

// HealthStatus reports the relay's view of the pipeline: whether the worker
// answers within its health timeout and whether signature enforcement is on.
type HealthStatus struct {
	Status           string `json:"status"`
	WorkerReachable  bool   `json:"worker_reachable"`
	SecretConfigured bool   `json:"webhook_secret_configured"`
}

// Health probes the worker and reports the relay's operational state. The
// relay itself is healthy as long as it can answer; a dead worker degrades
// the report rather than erroring.
func (s *Service) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:           "ok",
		WorkerReachable:  true,
		SecretConfigured: s.verifier.Configured(),
	}
	if err := s.health.Healthy(ctx); err != nil {
		status.Status = "degraded"
		status.WorkerReachable = false
		s.log.Warn(ctx, "worker health probe failed", "error", err)
	}
	return status
}
