// Package config implements the agent core's ambient configuration surface,
// grounded on the teacher's YAML-tagged, nested-struct-with-defaults
// convention (internal/config/config.go and its config_*.go siblings).
// Loading is scoped to parsing an io.Reader; locating/watching a config file
// on disk is explicitly out of scope (spec.md §1).
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/shellmind/agentcore/internal/backoff"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document for cmd/agentcore.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
	Context   ContextConfig   `yaml:"context"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LLMConfig selects and configures the LLMCapability adapter.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "anthropic" | "openai"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// SessionConfig configures the top-level session loop (spec §4.1).
type SessionConfig struct {
	MaxSteps    int           `yaml:"max_steps"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	Scratchpad  ScratchpadConfig `yaml:"scratchpad"`
}

// ScratchpadConfig configures the scratchpad store (spec §3, §5).
type ScratchpadConfig struct {
	SoftSizeWarn int    `yaml:"soft_size_warn"`
	HardSizeWarn int    `yaml:"hard_size_warn"`
	PurgeCron    string `yaml:"purge_cron"` // e.g. "@every 1m"; empty disables timer purge
}

// ContextConfig configures the context manager's pruning/archive behavior
// (spec §4.4).
type ContextConfig struct {
	MaxTokens           int      `yaml:"max_tokens"`
	PruneThreshold      float64  `yaml:"prune_threshold"`
	TargetFraction      float64  `yaml:"target_fraction"`
	KeepFirst           int      `yaml:"keep_first"`
	KeepLast            int      `yaml:"keep_last"`
	PreservePatterns    []string `yaml:"preserve_patterns"`
	AutoExtractMemories bool     `yaml:"auto_extract_memories"`
	MaxArchiveSize      int      `yaml:"max_archive_size"`
}

// RuntimeConfig configures the dispatcher and its capability wrappers
// (spec §4.3, §6).
type RuntimeConfig struct {
	MaxConcurrentTools   int64         `yaml:"max_concurrent_tools"`
	MaxConcurrentWorkers int64         `yaml:"max_concurrent_workers"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts"`
	RetryInitialDelay    time.Duration `yaml:"retry_initial_delay"`
	RetryMaxDelay        time.Duration `yaml:"retry_max_delay"`
	RetryFactor          float64       `yaml:"retry_factor"`
	// StalledJobSweepInterval is how often the session loop invokes
	// jobs.Store.SweepStalled; zero disables the periodic sweep.
	StalledJobSweepInterval time.Duration `yaml:"stalled_job_sweep_interval"`
	// StalledJobThreshold is how long a running job may go without a
	// heartbeat before SweepStalled marks it Stalled.
	StalledJobThreshold time.Duration `yaml:"stalled_job_threshold"`
}

// ApprovalConfig configures the default approval policy (spec §4.3's gating
// rules, mirrored from the teacher's ApprovalPolicy shape).
type ApprovalConfig struct {
	RequireFor []string `yaml:"require_for"` // tool-name patterns, e.g. "fs:write", "mcp:*"
	AutoApprove []string `yaml:"auto_approve"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "text"
}

// TelemetryConfig configures the prometheus metrics recorder.
type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the configuration used when no file is supplied,
// mirroring the teacher's Default*Config constructors scattered across its
// config_*.go files.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
		Session: SessionConfig{
			MaxSteps:    64,
			TurnTimeout: 2 * time.Minute,
			Scratchpad:  ScratchpadConfig{SoftSizeWarn: 200, HardSizeWarn: 500},
		},
		Context: ContextConfig{
			MaxTokens:        8000,
			PruneThreshold:   0.80,
			TargetFraction:   0.60,
			KeepFirst:        2,
			KeepLast:         4,
			PreservePatterns: []string{"remember", "important", "critical"},
			MaxArchiveSize:   10,
		},
		Runtime: defaultRuntimeConfig(),
		Approval: ApprovalConfig{RequireFor: []string{"fs:write", "shell:*", "mcp:*"}},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{Enabled: true, ListenAddr: ":9090"},
	}
}

// defaultRuntimeConfig seeds retry timing from the dispatcher's own
// backoff.ForToolRetries preset rather than restating its numbers here.
func defaultRuntimeConfig() RuntimeConfig {
	retry := backoff.ForToolRetries()
	return RuntimeConfig{
		MaxConcurrentTools:      4,
		MaxConcurrentWorkers:    3,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       time.Duration(retry.InitialMs) * time.Millisecond,
		RetryMaxDelay:           time.Duration(retry.MaxMs) * time.Millisecond,
		RetryFactor:             retry.Factor,
		StalledJobSweepInterval: 30 * time.Second,
		StalledJobThreshold:     2 * time.Minute,
	}
}

// LoadConfig parses a YAML document from r over top of DefaultConfig's
// values, so a partial file only overrides what it sets.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}
