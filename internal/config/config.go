// Package config loads the environment-supplied settings the service runs
// with: listen address, database URL, worker endpoint, webhook secret, and
// outbound timeouts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig bounds every outbound call to the scan worker. The worker is
// an untrusted-availability dependency; no call may block unbounded.
type WorkerConfig struct {
	BaseURL        string
	SubmitTimeout  time.Duration
	PollTimeout    time.Duration
	CancelTimeout  time.Duration
	ForwardTimeout time.Duration
	HealthTimeout  time.Duration
}

// WebhookConfig configures the public webhook relay endpoint.
type WebhookConfig struct {
	// Secret is the pre-shared GitHub webhook secret. Empty means signature
	// verification is disabled (a reduced-trust state the relay logs).
	Secret string

	RateRPS   float64
	RateBurst int
}

// TelemetryConfig configures trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string
	Probability float64
}

// Config represents the top-level service configuration.
type Config struct {
	Env             string
	ListenAddr      string
	ShutdownTimeout time.Duration
	DatabaseURL     string
	Worker          WorkerConfig
	Webhook         WebhookConfig
	Telemetry       TelemetryConfig
}

// Load reads configuration from SCANHUB_-prefixed environment variables
// (e.g. SCANHUB_WORKER_BASE_URL) with sensible defaults for everything but
// the database URL and worker endpoint.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("scanhub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("shutdown_timeout", 20*time.Second)
	v.SetDefault("worker.submit_timeout", 10*time.Second)
	v.SetDefault("worker.poll_timeout", 10*time.Second)
	v.SetDefault("worker.cancel_timeout", 5*time.Second)
	v.SetDefault("worker.forward_timeout", 30*time.Second)
	v.SetDefault("worker.health_timeout", 5*time.Second)
	v.SetDefault("webhook.rate_rps", 25.0)
	v.SetDefault("webhook.rate_burst", 50)
	v.SetDefault("telemetry.probability", 0.05)

	cfg := Config{
		Env:             v.GetString("env"),
		ListenAddr:      v.GetString("listen_addr"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		DatabaseURL:     v.GetString("database_url"),
		Worker: WorkerConfig{
			BaseURL:        v.GetString("worker.base_url"),
			SubmitTimeout:  v.GetDuration("worker.submit_timeout"),
			PollTimeout:    v.GetDuration("worker.poll_timeout"),
			CancelTimeout:  v.GetDuration("worker.cancel_timeout"),
			ForwardTimeout: v.GetDuration("worker.forward_timeout"),
			HealthTimeout:  v.GetDuration("worker.health_timeout"),
		},
		Webhook: WebhookConfig{
			Secret:    v.GetString("webhook.secret"),
			RateRPS:   v.GetFloat64("webhook.rate_rps"),
			RateBurst: v.GetInt("webhook.rate_burst"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:    v.GetString("telemetry.endpoint"),
			Probability: v.GetFloat64("telemetry.probability"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("SCANHUB_DATABASE_URL is required")
	}
	if cfg.Worker.BaseURL == "" {
		return nil, fmt.Errorf("SCANHUB_WORKER_BASE_URL is required")
	}

	return &cfg, nil
}
