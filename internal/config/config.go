package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Engine      EngineConfig    `yaml:"engine"`
	Limiter     LimiterConfig   `yaml:"limiter"`
	History     HistoryConfig   `yaml:"history"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EngineConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type LimiterConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	MaxConcurrent     int `yaml:"max_concurrent"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		ServiceName: "duet",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Engine: EngineConfig{
			BaseURL:   "https://generativelanguage.googleapis.com",
			Model:     "gemini-2.5-flash-preview-tts",
			TimeoutMS: 60000,
		},
		Limiter: LimiterConfig{
			RequestsPerMinute: 10,
			MaxConcurrent:     4,
		},
		History: HistoryConfig{
			Path:          "./data/duet-jobs.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxJobs:       10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "DUET_SERVICE_NAME")
	overrideString(&cfg.Environment, "DUET_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "DUET_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "DUET_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "DUET_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "DUET_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "DUET_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "DUET_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "DUET_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "DUET_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "DUET_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "DUET_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "DUET_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "DUET_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "DUET_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "DUET_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "DUET_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Engine.BaseURL, "DUET_ENGINE_BASE_URL")
	overrideString(&cfg.Engine.Model, "DUET_ENGINE_MODEL")
	overrideString(&cfg.Engine.APIKey, "DUET_ENGINE_API_KEY")
	overrideInt(&cfg.Engine.TimeoutMS, "DUET_ENGINE_TIMEOUT_MS")
	overrideInt(&cfg.Limiter.RequestsPerMinute, "DUET_LIMITER_REQUESTS_PER_MINUTE")
	overrideInt(&cfg.Limiter.MaxConcurrent, "DUET_LIMITER_MAX_CONCURRENT")
	overrideString(&cfg.History.Path, "DUET_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "DUET_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "DUET_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxJobs, "DUET_HISTORY_MAX_JOBS")
	overrideBool(&cfg.History.VacuumOnStart, "DUET_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Engine.BaseURL == "" {
		return errors.New("engine.base_url must not be empty")
	}
	if cfg.Engine.Model == "" {
		return errors.New("engine.model must not be empty")
	}
	if cfg.Engine.TimeoutMS <= 0 {
		return errors.New("engine.timeout_ms must be positive")
	}
	if cfg.Limiter.RequestsPerMinute <= 0 {
		return errors.New("limiter.requests_per_minute must be >= 1")
	}
	if cfg.Limiter.MaxConcurrent <= 0 {
		return errors.New("limiter.max_concurrent must be >= 1")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
