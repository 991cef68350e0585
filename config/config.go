package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	cronlib "github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"rewards-backend/core/rewards"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver         string `yaml:"driver"` // memory, postgres or pebble
	PGDSN          string `yaml:"pg_dsn"`
	PebblePath     string `yaml:"pebble_path"`
	PebbleCompress bool   `yaml:"pebble_compress"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Config is the rewardsd configuration file.
type Config struct {
	HTTPAddr   string      `yaml:"http_addr"`
	Store      StoreConfig `yaml:"store"`
	AdminKeys  []string    `yaml:"admin_keys"`
	APIKeys    []string    `yaml:"api_keys"`
	TicketGate string      `yaml:"ticket_gate"`
	Log        LogConfig   `yaml:"log"`
	// EpochSchedule is a five-field cron expression; empty disables
	// scheduled snapshot builds.
	EpochSchedule string                   `yaml:"epoch_schedule"`
	Tasks         []rewards.TaskDefinition `yaml:"tasks"`

	Path string `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:   ":3001",
		Store:      StoreConfig{Driver: "memory"},
		TicketGate: string(rewards.TicketGateGlobal),
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path (which may be empty or missing), then
// applies REWARDS_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	cfg.Path = path
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if len(data) > 0 {
				if err := yaml.Unmarshal(data, &cfg); err != nil {
					return cfg, fmt.Errorf("parse %s: %w", path, err)
				}
			}
		case os.IsNotExist(err):
		default:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("REWARDS_HTTP_ADDR"); raw != "" {
		cfg.HTTPAddr = raw
	}
	if raw := os.Getenv("REWARDS_STORE_DRIVER"); raw != "" {
		cfg.Store.Driver = raw
	}
	if raw := os.Getenv("REWARDS_PG_DSN"); raw != "" {
		cfg.Store.PGDSN = raw
	}
	if raw := os.Getenv("REWARDS_PEBBLE_PATH"); raw != "" {
		cfg.Store.PebblePath = raw
	}
	if raw := os.Getenv("REWARDS_PEBBLE_COMPRESS"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Store.PebbleCompress = v
		}
	}
	if raw := os.Getenv("REWARDS_ADMIN_KEYS"); raw != "" {
		cfg.AdminKeys = splitList(raw)
	}
	if raw := os.Getenv("REWARDS_API_KEYS"); raw != "" {
		cfg.APIKeys = splitList(raw)
	}
	if raw := os.Getenv("REWARDS_TICKET_GATE"); raw != "" {
		cfg.TicketGate = raw
	}
	if raw := os.Getenv("REWARDS_LOG_LEVEL"); raw != "" {
		cfg.Log.Level = raw
	}
	if raw := os.Getenv("REWARDS_LOG_FORMAT"); raw != "" {
		cfg.Log.Format = raw
	}
	if raw, ok := os.LookupEnv("REWARDS_EPOCH_SCHEDULE"); ok {
		cfg.EpochSchedule = raw
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalize(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3001"
	}
	cfg.TicketGate = strings.ToLower(strings.TrimSpace(cfg.TicketGate))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.EpochSchedule = strings.TrimSpace(cfg.EpochSchedule)
}

func validate(cfg Config) error {
	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.PGDSN == "" {
			return fmt.Errorf("store.pg_dsn is required for the postgres driver")
		}
	case "pebble":
		if cfg.Store.PebblePath == "" {
			return fmt.Errorf("store.pebble_path is required for the pebble driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if _, ok := rewards.ParseTicketGate(cfg.TicketGate); !ok {
		return fmt.Errorf("unknown ticket_gate %q", cfg.TicketGate)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("unknown log.format %q", cfg.Log.Format)
	}
	if cfg.EpochSchedule != "" {
		if _, err := ParseSchedule(cfg.EpochSchedule); err != nil {
			return fmt.Errorf("epoch_schedule: %w", err)
		}
	}
	for i, def := range cfg.Tasks {
		if strings.TrimSpace(def.TaskID) == "" {
			return fmt.Errorf("tasks[%d]: taskid is required", i)
		}
	}
	return nil
}

// Gate returns the validated ticket gate.
func (c Config) Gate() rewards.TicketGate {
	g, _ := rewards.ParseTicketGate(c.TicketGate)
	return g
}

// ParseSchedule parses a five-field cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)
	return parser.Parse(expr)
}
