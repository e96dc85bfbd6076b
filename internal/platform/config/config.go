// Package config loads the daemon configuration from a YAML file with
// environment overrides, then validates it as a whole. Defaults mirror the
// appliance layout under /mnt/nvme/blackbox.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root daemon configuration.
type Config struct {
	Listen   Listen   `yaml:"listen"`
	Vault    Vault    `yaml:"vault"`
	Catalog  Catalog  `yaml:"catalog"`
	Resolver Resolver `yaml:"resolver"`
	LLM      LLM      `yaml:"llm"`
	Turn     Turn     `yaml:"turn"`
	Log      Log      `yaml:"log"`
}

// Listen holds the loopback listener addresses.
type Listen struct {
	WS     string `yaml:"ws" validate:"required,hostname_port"`
	Status string `yaml:"status" validate:"required,hostname_port"`
}

// Vault configures the encrypted store and the session lock policy.
type Vault struct {
	Path        string `yaml:"path" validate:"required"`
	IdleSeconds int    `yaml:"idle_timeout_seconds" validate:"gt=0"`
	KDF         KDF    `yaml:"kdf"`
}

// KDF cost parameters are fixed at vault creation time and persisted in the
// vault header; this section only applies when initializing a new vault.
type KDF struct {
	TimeCost    uint32 `yaml:"time_cost" validate:"gt=0"`
	MemoryKiB   uint32 `yaml:"memory_kib" validate:"gte=8192"`
	Parallelism uint8  `yaml:"parallelism" validate:"gt=0"`
}

// Catalog points at the persisted site catalog.
type Catalog struct {
	Path string `yaml:"path" validate:"required"`
}

// Resolver holds the tier thresholds and the scoring blend weights.
// Thresholds are data, not control flow: they feed the ordered tier table.
type Resolver struct {
	AcceptThreshold  float64 `yaml:"accept_threshold" validate:"gt=0,lte=1"`
	LLMThreshold     float64 `yaml:"llm_threshold" validate:"gt=0,lte=1"`
	ConfirmThreshold float64 `yaml:"confirm_threshold" validate:"gt=0,lte=1"`
	LiteralWeight    float64 `yaml:"literal_weight" validate:"gte=0,lte=1"`
	PhoneticWeight   float64 `yaml:"phonetic_weight" validate:"gte=0,lte=1"`
	TopK             int     `yaml:"top_k" validate:"gt=0"`
	HeuristicMS      int     `yaml:"heuristic_budget_ms" validate:"gt=0"`
}

// LLM configures the optional local disambiguation model. Disabled by
// default; the resolution engine degrades to the confirmation tier without it.
type LLM struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Model     string `yaml:"model" validate:"required_if=Enabled true"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"gt=0"`
}

// Turn bounds one voice interaction end to end.
type Turn struct {
	DeadlineMS int `yaml:"deadline_ms" validate:"gt=0"`
}

// Log selects the slog level.
type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen: Listen{WS: "127.0.0.1:8871", Status: "127.0.0.1:8872"},
		Vault: Vault{
			Path:        "/mnt/nvme/blackbox/db/vault.db",
			IdleSeconds: 300,
			KDF:         KDF{TimeCost: 3, MemoryKiB: 64 * 1024, Parallelism: 4},
		},
		Catalog: Catalog{Path: "/mnt/nvme/blackbox/catalog/sites.json"},
		Resolver: Resolver{
			AcceptThreshold:  0.88,
			LLMThreshold:     0.82,
			ConfirmThreshold: 0.75,
			LiteralWeight:    0.2,
			PhoneticWeight:   0.8,
			TopK:             3,
			HeuristicMS:      200,
		},
		LLM:  LLM{Enabled: false, BaseURL: "http://127.0.0.1:8080/v1", Model: "qwen2.5-0.5b-instruct", TimeoutMS: 1000},
		Turn: Turn{DeadlineMS: 4000},
		Log:  Log{Level: "info"},
	}
}

// FromFile loads the YAML file at path over the defaults. A missing file is
// not an error; the defaults stand. BLACKBOX_* environment variables override
// the file for the settings operators most often flip.
func FromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fresh install before provisioning writes a config.
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BLACKBOX_VAULT_PATH"); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv("BLACKBOX_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("BLACKBOX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BLACKBOX_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if os.Getenv("BLACKBOX_LLM_ENABLED") == "true" {
		cfg.LLM.Enabled = true
	}
}

// Validate checks field constraints and the cross-field threshold ordering
// the tier cascade depends on.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	r := c.Resolver
	if !(r.AcceptThreshold > r.LLMThreshold && r.LLMThreshold > r.ConfirmThreshold) {
		return fmt.Errorf("config validation: resolver thresholds must be ordered accept > llm > confirm (got %.2f, %.2f, %.2f)",
			r.AcceptThreshold, r.LLMThreshold, r.ConfirmThreshold)
	}
	if r.LiteralWeight+r.PhoneticWeight == 0 {
		return fmt.Errorf("config validation: resolver weights must not both be zero")
	}
	return nil
}

// IdleTimeout returns the session idle deadline as a duration.
func (v Vault) IdleTimeout() time.Duration {
	return time.Duration(v.IdleSeconds) * time.Second
}

// Timeout returns the LLM call budget as a duration.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutMS) * time.Millisecond
}

// Deadline returns the soft end-to-end turn budget as a duration.
func (t Turn) Deadline() time.Duration {
	return time.Duration(t.DeadlineMS) * time.Millisecond
}

// HeuristicBudget returns the heuristic scoring budget as a duration.
func (r Resolver) HeuristicBudget() time.Duration {
	return time.Duration(r.HeuristicMS) * time.Millisecond
}
