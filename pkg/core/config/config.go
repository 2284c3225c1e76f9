// Package config assembles the runtime configuration from an optional YAML
// file overridden by environment variables. The .env file is loaded by the
// command entrypoints before this package reads the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/realonep/dart-openapi/pkg/core/store"
)

// Config is the full runtime configuration of a sync run.
type Config struct {
	DartAPIKey string `yaml:"dart_api_key"`

	// PersistMode is file, db or dual.
	PersistMode string `yaml:"persist_mode"`
	DataDir     string `yaml:"data_dir"`
	DBPath      string `yaml:"db_path"`

	// ForceRefresh re-runs the unstructured stage even when the persisted
	// logic version is current.
	ForceRefresh bool `yaml:"force_refresh"`

	CorpConcurrency        int `yaml:"corp_concurrency"`
	TreasuryLookbackMonths int `yaml:"treasury_lookback_months"`

	LLMProvider string `yaml:"llm_provider"`
	LLMModel    string `yaml:"llm_model"`

	// TargetCorps is the fallback company list when the store has no
	// registered sync targets.
	TargetCorps []string `yaml:"target_corps"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		PersistMode:            store.ModeFile,
		DataDir:                "data",
		DBPath:                 "data/dart.db",
		CorpConcurrency:        2,
		TreasuryLookbackMonths: 18,
		LLMProvider:            "gemini",
	}
}

// Load builds the configuration: defaults, then the YAML file at path if it
// exists, then environment overrides. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.CorpConcurrency < 1 {
		cfg.CorpConcurrency = 1
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENDART_API_KEY"); v != "" {
		c.DartAPIKey = v
	}
	// WRITE_TO_DB switches to dual mode, DB_ONLY to db mode. DB_ONLY wins
	// when both are set.
	if envBool("WRITE_TO_DB") {
		c.PersistMode = store.ModeDual
	}
	if envBool("DB_ONLY") {
		c.PersistMode = store.ModeDB
	}
	if v := os.Getenv("PERSIST_MODE"); v != "" {
		c.PersistMode = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if envBool("FORCE_REFRESH") {
		c.ForceRefresh = true
	}
	if v, err := strconv.Atoi(os.Getenv("SYNC_CORP_CONCURRENCY")); err == nil && v > 0 {
		c.CorpConcurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("TREASURY_LOOKBACK_MONTHS")); err == nil && v > 0 {
		c.TreasuryLookbackMonths = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLMProvider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
}

// Validate checks the fields every sync needs.
func (c *Config) Validate() error {
	if c.DartAPIKey == "" {
		return fmt.Errorf("OPENDART_API_KEY is not set")
	}
	switch c.PersistMode {
	case store.ModeFile, store.ModeDB, store.ModeDual:
	default:
		return fmt.Errorf("unknown persistence mode %q", c.PersistMode)
	}
	return nil
}

var truthyRe = regexp.MustCompile(`^(1|true|yes|y)$`)

func envBool(name string) bool {
	return truthyRe.MatchString(strings.ToLower(strings.TrimSpace(os.Getenv(name))))
}
