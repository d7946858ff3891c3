package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/MBemera/Radsim-sub001/policy"
	"gopkg.in/yaml.v3"
)

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// ShellCommands is the user-editable command policy block. It is re-read on
// every validation call so live edits take effect without a restart.
type ShellCommands struct {
	Mode              string   `yaml:"mode"` // "whitelist" or "blocklist"
	Whitelist         []string `yaml:"whitelist"`
	Blocklist         []string `yaml:"blocklist"`
	CustomDestructive []string `yaml:"custom_destructive"`
}

// Limits mirrors the guard package's knobs. Zero token budgets mean
// unlimited.
type Limits struct {
	MaxCallsPerTurn    int `yaml:"max_calls_per_turn"`
	MaxFailuresPerTurn int `yaml:"max_failures_per_turn"`
	CooldownMS         int `yaml:"cooldown_ms"`
	BreakerThreshold   int `yaml:"breaker_threshold"`
	MaxInputTokens     int `yaml:"max_session_input_tokens"`
	MaxOutputTokens    int `yaml:"max_session_output_tokens"`
}

// ModelPricing is per-million-token cost for one model.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Routing configures the model router's fallback behavior.
type Routing struct {
	// FallbackModels maps each provider to its priority-ordered model list.
	FallbackModels map[string][]string `yaml:"fallback_models"`
	// FallbackProvider is the universal low-cost tail appended to every chain.
	FallbackProvider string `yaml:"fallback_provider"`
	// Pricing maps model id to cost per 1M tokens.
	Pricing map[string]ModelPricing `yaml:"pricing"`
	// ContextWindows maps model id to its context window in tokens.
	ContextWindows map[string]int `yaml:"context_windows"`
}

type Config struct {
	LLMClient            string           `yaml:"llm"`
	Model                string           `yaml:"model"`
	Toolsets             []Toolset        `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer      `yaml:"additional_mcp_servers"`
	ShellCommands        ShellCommands    `yaml:"shell_commands"`
	Limits               Limits           `yaml:"limits"`
	Routing              Routing          `yaml:"routing"`
	FilesystemAccess     FilesystemAccess `yaml:"filesystem_access"`
	AutoConfirm          bool             `yaml:"auto_confirm"`
}

// DefaultContextWindow is assumed for models missing from the config table.
const DefaultContextWindow = 100000

// ContextWindowFor returns the configured context window for a model.
func (c *Config) ContextWindowFor(model string) int {
	if w, ok := c.Routing.ContextWindows[model]; ok && w > 0 {
		return w
	}
	return DefaultContextWindow
}

// Load reads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func Load() (*Config, error) {
	cfg := &Config{}

	// The agent's own state directory is always hidden from tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".pilot", ".pilot/**")
	cfg.ShellCommands.Mode = string(policy.ModeBlocklist)

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".pilot", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".pilot", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, giving a simple merge
	// where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		// No configured toolsets at all: expose every registered tool.
		return &Toolset{Name: "default"}, nil
	}
	return c.GetToolset("default")
}

// GuardLimits converts the YAML limits into guard-package units.
func (c *Config) GuardLimits() (maxCalls, maxFailures int, cooldown time.Duration, breakerThreshold, maxIn, maxOut int) {
	return c.Limits.MaxCallsPerTurn,
		c.Limits.MaxFailuresPerTurn,
		time.Duration(c.Limits.CooldownMS) * time.Millisecond,
		c.Limits.BreakerThreshold,
		c.Limits.MaxInputTokens,
		c.Limits.MaxOutputTokens
}

// Store re-reads configuration on demand so that hot-reloadable consumers
// (the command policy engine, the guard display) always see live edits. It
// remembers the last good snapshot and falls back to it when a re-read fails
// mid-edit.
type Store struct {
	last *Config
}

// NewStore creates a store seeded with an initial snapshot.
func NewStore(initial *Config) *Store {
	return &Store{last: initial}
}

// Current re-reads the config files; a failed read returns the last good
// snapshot.
func (s *Store) Current() *Config {
	cfg, err := Load()
	if err != nil {
		return s.last
	}
	s.last = cfg
	return cfg
}

// CommandPolicy implements policy.Source with a fresh read per call.
func (s *Store) CommandPolicy() policy.Config {
	cfg := s.Current()
	mode := policy.Mode(cfg.ShellCommands.Mode)
	if mode != policy.ModeWhitelist {
		mode = policy.ModeBlocklist
	}
	return policy.Config{
		Mode:              mode,
		Whitelist:         cfg.ShellCommands.Whitelist,
		Blocklist:         cfg.ShellCommands.Blocklist,
		CustomDestructive: cfg.ShellCommands.CustomDestructive,
	}
}
