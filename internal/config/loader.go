package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "caremesh.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.ToolsPort, "CAREMESH_TOOLS_PORT")
	setString(&cfg.Server.CoordinatorPort, "CAREMESH_COORDINATOR_PORT")
	setString(&cfg.Server.RecordsPort, "CAREMESH_RECORDS_PORT")
	setString(&cfg.Server.TriagePort, "CAREMESH_TRIAGE_PORT")
	setString(&cfg.Server.InsurancePort, "CAREMESH_INSURANCE_PORT")
	setString(&cfg.Server.CORSOrigin, "CAREMESH_CORS_ORIGIN")
	setString(&cfg.Agents.CoordinatorURL, "CAREMESH_COORDINATOR_RPC")
	setString(&cfg.Agents.RecordsURL, "CAREMESH_RECORDS_RPC")
	setString(&cfg.Agents.TriageURL, "CAREMESH_TRIAGE_RPC")
	setString(&cfg.Agents.InsuranceURL, "CAREMESH_INSURANCE_RPC")
	setDuration(&cfg.Agents.Timeout, "CAREMESH_AGENT_TIMEOUT")
	setString(&cfg.Tools.Endpoint, "MCP_SERVER_URL")
	setDuration(&cfg.Tools.Timeout, "CAREMESH_TOOLS_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CAREMESH_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CAREMESH_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CAREMESH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CAREMESH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CAREMESH_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "CAREMESH_CACHE_SIZE_MB")
	setString(&cfg.Records.EncryptionKey, "CAREMESH_ENCRYPTION_KEY")
	setDuration(&cfg.Records.CacheTTL, "CAREMESH_RECORDS_CACHE_TTL")
	setDuration(&cfg.Tasks.TTL, "CAREMESH_TASK_TTL")
	setString(&cfg.Logging.Level, "CAREMESH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CAREMESH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CAREMESH_LOG_ASYNC")
	setInt(&cfg.Breaker.Threshold, "CAREMESH_BREAKER_THRESHOLD")
	setDuration(&cfg.Breaker.Cooldown, "CAREMESH_BREAKER_COOLDOWN")
	setBool(&cfg.Telemetry.Enabled, "CAREMESH_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "CAREMESH_OTEL_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	ports := []struct {
		name  string
		value string
	}{
		{"server.tools_port", cfg.Server.ToolsPort},
		{"server.coordinator_port", cfg.Server.CoordinatorPort},
		{"server.records_port", cfg.Server.RecordsPort},
		{"server.triage_port", cfg.Server.TriagePort},
		{"server.insurance_port", cfg.Server.InsurancePort},
	}
	for _, p := range ports {
		if p.value == "" {
			return fmt.Errorf("%s is required", p.name)
		}
	}
	if cfg.Agents.RecordsURL == "" || cfg.Agents.TriageURL == "" || cfg.Agents.InsuranceURL == "" {
		return errors.New("agents.records_url, agents.triage_url, and agents.insurance_url are required")
	}
	if cfg.Tools.Endpoint == "" {
		return errors.New("tools.endpoint is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	// nats.url stays unchecked: an empty URL runs the mesh without the
	// durable audit trail.
	if cfg.Records.EncryptionKey == "" {
		return errors.New("records.encryption_key is required")
	}
	if cfg.Breaker.Threshold < 1 {
		return errors.New("breaker.threshold must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
