package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit process configuration, built once at startup and
// passed by dependency injection. Nothing reads the environment after Load.
type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Webhook       WebhookConfig
	Graph         GraphConfig
	Draft         DraftConfig
	Admin         AdminConfig
	Renewal       RenewalConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

// WebhookConfig carries the public notification endpoint and the client-state
// signing secret. The secret is loaded once and never rotated at runtime:
// rotation would invalidate every outstanding subscription's client state.
type WebhookConfig struct {
	PublicURL         string
	ClientStateSecret string
}

type GraphConfig struct {
	BaseURL  string
	LeadTime time.Duration
}

// DraftConfig points at the draft-generation service. An incomplete DraftConfig
// is not fatal at startup; dispatch rejects batches with missing_configuration.
type DraftConfig struct {
	URL            string
	APIKey         string
	InternalSecret string
}

type AdminConfig struct {
	Token string
}

type RenewalConfig struct {
	Enabled         bool
	Interval        time.Duration
	Window          time.Duration
	TokenServiceURL string
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

// localDevSecret is only ever injected in local/dev environments and is
// refused everywhere else.
const localDevSecret = "mailhook-local-dev"

// Load reads and validates process configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("mailhook_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("mailhook_port", 8080)
	v.SetDefault("mailhook_db_path", "data/mailhook")
	v.SetDefault("mailhook_public_url", "")
	v.SetDefault("mailhook_client_state_secret", "")
	v.SetDefault("mailhook_graph_url", "")
	v.SetDefault("mailhook_subscription_lead_minutes", 55)
	v.SetDefault("mailhook_draft_url", "")
	v.SetDefault("mailhook_draft_apikey", "")
	v.SetDefault("mailhook_internal_secret", "")
	v.SetDefault("mailhook_admin_token", "")
	v.SetDefault("mailhook_renew_enabled", true)
	v.SetDefault("mailhook_renew_interval_seconds", 300)
	v.SetDefault("mailhook_renew_window_minutes", 10)
	v.SetDefault("mailhook_token_service_url", "")
	v.SetDefault("mailhook_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "mailhook")
	v.SetDefault("mailhook_version", "dev")
	v.SetDefault("mailhook_otel_sampling_ratio", 1.0)
	v.SetDefault("mailhook_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("mailhook_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid MAILHOOK_PORT: %d", port)
	}

	leadMinutes := v.GetInt("mailhook_subscription_lead_minutes")
	if leadMinutes <= 0 {
		leadMinutes = 55
	}
	// Graph caps mail subscription lifetime around 60 minutes.
	if leadMinutes > 55 {
		leadMinutes = 55
	}

	renewInterval := v.GetInt("mailhook_renew_interval_seconds")
	if renewInterval <= 0 {
		renewInterval = 300
	}
	renewWindow := v.GetInt("mailhook_renew_window_minutes")
	if renewWindow <= 0 {
		renewWindow = 10
	}

	samplingRatio := v.GetFloat64("mailhook_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("mailhook_otel_metrics_console")
	otelEnabled := v.GetBool("mailhook_otel_enabled") || otlpEndpoint != "" || metricsConsole

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("mailhook_db_path")),
		},
		Webhook: WebhookConfig{
			PublicURL:         strings.TrimRight(strings.TrimSpace(v.GetString("mailhook_public_url")), "/"),
			ClientStateSecret: strings.TrimSpace(v.GetString("mailhook_client_state_secret")),
		},
		Graph: GraphConfig{
			BaseURL:  strings.TrimSpace(v.GetString("mailhook_graph_url")),
			LeadTime: time.Duration(leadMinutes) * time.Minute,
		},
		Draft: DraftConfig{
			URL:            strings.TrimSpace(v.GetString("mailhook_draft_url")),
			APIKey:         strings.TrimSpace(v.GetString("mailhook_draft_apikey")),
			InternalSecret: strings.TrimSpace(v.GetString("mailhook_internal_secret")),
		},
		Admin: AdminConfig{
			Token: strings.TrimSpace(v.GetString("mailhook_admin_token")),
		},
		Renewal: RenewalConfig{
			Enabled:         v.GetBool("mailhook_renew_enabled"),
			Interval:        time.Duration(renewInterval) * time.Second,
			Window:          time.Duration(renewWindow) * time.Minute,
			TokenServiceURL: strings.TrimSpace(v.GetString("mailhook_token_service_url")),
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders),
			OTLPMetricHeaders: mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders),
			ServiceName:       serviceName(v),
			ServiceVer:        serviceVersion(v),
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/mailhook"
	}

	if cfg.IsLocalDevelopment() {
		if cfg.Webhook.ClientStateSecret == "" {
			cfg.Webhook.ClientStateSecret = localDevSecret
		}
		if cfg.Webhook.PublicURL == "" {
			cfg.Webhook.PublicURL = fmt.Sprintf("http://localhost:%d", port)
		}
		return cfg, nil
	}

	switch cfg.Webhook.ClientStateSecret {
	case "":
		return Config{}, fmt.Errorf("MAILHOOK_CLIENT_STATE_SECRET is required outside local/dev environments")
	case localDevSecret, "changeme", "change-me", "placeholder", "secret":
		return Config{}, fmt.Errorf("MAILHOOK_CLIENT_STATE_SECRET is a placeholder value, refuse to start")
	}
	if cfg.Webhook.PublicURL == "" {
		return Config{}, fmt.Errorf("MAILHOOK_PUBLIC_URL is required outside local/dev environments")
	}

	return cfg, nil
}

// NotificationURL is the public endpoint handed to the provider when creating
// subscriptions.
func (c Config) NotificationURL() string {
	return c.Webhook.PublicURL + "/webhooks/graph"
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func serviceName(v *viper.Viper) string {
	name := strings.TrimSpace(v.GetString("otel_service_name"))
	if name == "" {
		name = "mailhook"
	}
	return name
}

func serviceVersion(v *viper.Viper) string {
	version := strings.TrimSpace(v.GetString("mailhook_version"))
	if version == "" {
		version = "dev"
	}
	return version
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"mailhook_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
