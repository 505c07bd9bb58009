package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Ledger backend selectors for LEDGER_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string   `yaml:"service_name"`
	HTTPPort      string   `yaml:"http_port"`
	LedgerBackend string   `yaml:"ledger_backend"`
	PostgresDSN   string   `yaml:"postgres_dsn"`
	BadgerPath    string   `yaml:"badger_path"`
	KafkaBrokers  []string `yaml:"kafka_brokers"`

	// OwnerAddress receives swept residues; VaultAddress is the custody
	// account that holds funded pools.
	OwnerAddress string `yaml:"owner_address"`
	VaultAddress string `yaml:"vault_address"`

	OutboxBatchSize     int           `yaml:"outbox_batch_size"`
	OutboxPollInterval  time.Duration `yaml:"outbox_poll_interval"`
	DisableClaimedEvent bool          `yaml:"disable_claimed_event"`
}

// Load reads CONFIG_FILE (YAML) when set, then lets environment
// variables override individual values.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:        "merkledrop",
		HTTPPort:           "8080",
		LedgerBackend:      BackendMemory,
		BadgerPath:         "./data/ledger",
		OutboxBatchSize:    100,
		OutboxPollInterval: 2 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	envString(&cfg.ServiceName, "SERVICE_NAME")
	envString(&cfg.HTTPPort, "HTTP_PORT")
	envString(&cfg.LedgerBackend, "LEDGER_BACKEND")
	envString(&cfg.PostgresDSN, "POSTGRES_DSN")
	envString(&cfg.BadgerPath, "BADGER_PATH")
	envString(&cfg.OwnerAddress, "OWNER_ADDRESS")
	envString(&cfg.VaultAddress, "VAULT_ADDRESS")

	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	if raw := os.Getenv("OUTBOX_BATCH_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Config{}, fmt.Errorf("config: invalid OUTBOX_BATCH_SIZE %q", raw)
		}
		cfg.OutboxBatchSize = size
	}
	if raw := os.Getenv("OUTBOX_POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return Config{}, fmt.Errorf("config: invalid OUTBOX_POLL_INTERVAL %q", raw)
		}
		cfg.OutboxPollInterval = interval
	}
	cfg.DisableClaimedEvent = envBool("DISABLE_CLAIMED_EVENT", cfg.DisableClaimedEvent)

	switch cfg.LedgerBackend {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("config: POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	return cfg, nil
}

func envString(dst *string, name string) {
	if value := os.Getenv(name); value != "" {
		*dst = value
	}
}

func splitList(raw string) []string {
	var values []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
