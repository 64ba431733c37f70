package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsForLocalDevelopment(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "dev")
	t.Setenv("MAILHOOK_CLIENT_STATE_SECRET", "")
	t.Setenv("MAILHOOK_PUBLIC_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Webhook.ClientStateSecret != "mailhook-local-dev" {
		t.Fatalf("expected local fallback secret, got %q", cfg.Webhook.ClientStateSecret)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.NotificationURL() != "http://localhost:8080/webhooks/graph" {
		t.Fatalf("unexpected notification URL: %s", cfg.NotificationURL())
	}
	if cfg.Graph.LeadTime != 55*time.Minute {
		t.Fatalf("expected default lead time 55m, got %s", cfg.Graph.LeadTime)
	}
}

func TestLoadRequiresClientStateSecretOutsideLocal(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "production")
	t.Setenv("MAILHOOK_CLIENT_STATE_SECRET", "")
	t.Setenv("MAILHOOK_PUBLIC_URL", "https://hooks.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing client-state secret in production")
	}
}

func TestLoadRefusesPlaceholderSecretOutsideLocal(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "production")
	t.Setenv("MAILHOOK_CLIENT_STATE_SECRET", "changeme")
	t.Setenv("MAILHOOK_PUBLIC_URL", "https://hooks.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for placeholder client-state secret in production")
	}
}

func TestLoadRequiresPublicURLOutsideLocal(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "production")
	t.Setenv("MAILHOOK_CLIENT_STATE_SECRET", "real-secret-value")
	t.Setenv("MAILHOOK_PUBLIC_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing public URL in production")
	}
}

func TestLoadClampsSubscriptionLeadToProviderCeiling(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "dev")
	t.Setenv("MAILHOOK_SUBSCRIPTION_LEAD_MINUTES", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Graph.LeadTime != 55*time.Minute {
		t.Fatalf("expected lead time clamped to 55m, got %s", cfg.Graph.LeadTime)
	}
}

func TestLoadTrimsTrailingSlashFromPublicURL(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "production")
	t.Setenv("MAILHOOK_CLIENT_STATE_SECRET", "real-secret-value")
	t.Setenv("MAILHOOK_PUBLIC_URL", "https://hooks.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NotificationURL() != "https://hooks.example.com/webhooks/graph" {
		t.Fatalf("unexpected notification URL: %s", cfg.NotificationURL())
	}
}

func TestLoadParsesOTLPHeadersAndMetricsConsole(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "dev")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer common,x-org=abc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_HEADERS", "x-trace=trace-only")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_HEADERS", "x-metric=metric-only")
	t.Setenv("MAILHOOK_OTEL_METRICS_CONSOLE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Observability.Enabled {
		t.Fatal("expected observability enabled when console metrics is true")
	}
	if cfg.Observability.OTLPTraceHeaders["authorization"] != "Bearer common" {
		t.Fatalf("expected common header in trace headers, got %#v", cfg.Observability.OTLPTraceHeaders)
	}
	if cfg.Observability.OTLPTraceHeaders["x-trace"] != "trace-only" {
		t.Fatalf("expected trace-specific header, got %#v", cfg.Observability.OTLPTraceHeaders)
	}
	if cfg.Observability.OTLPMetricHeaders["x-metric"] != "metric-only" {
		t.Fatalf("expected metric-specific header, got %#v", cfg.Observability.OTLPMetricHeaders)
	}
}

func TestLoadDisablesRenewalWhenRequested(t *testing.T) {
	t.Setenv("MAILHOOK_ENV", "dev")
	t.Setenv("MAILHOOK_RENEW_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Renewal.Enabled {
		t.Fatal("expected renewal disabled")
	}
	if cfg.Renewal.Interval != 5*time.Minute {
		t.Fatalf("unexpected renewal interval: %s", cfg.Renewal.Interval)
	}
	if cfg.Renewal.Window != 10*time.Minute {
		t.Fatalf("unexpected renewal window: %s", cfg.Renewal.Window)
	}
}
