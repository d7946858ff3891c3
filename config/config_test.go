package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MBemera/Radsim-sub001/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pilot"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pilot", "config.yaml"), []byte(content), 0644))
}

func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(project))
	t.Cleanup(func() { os.Chdir(wd) })
	return home, project
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, string(policy.ModeBlocklist), cfg.ShellCommands.Mode)
	assert.Contains(t, cfg.FilesystemAccess.Hidden, ".pilot")
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	home, project := isolate(t)

	writeConfig(t, home, "llm: anthropic\nmodel: user-model\n")
	writeConfig(t, project, "model: project-model\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLMClient)
	assert.Equal(t, "project-model", cfg.Model)
}

func TestLoad_FullBlock(t *testing.T) {
	_, project := isolate(t)

	writeConfig(t, project, `
llm: openai
model: gpt-test
shell_commands:
  mode: whitelist
  whitelist:
    - git status
    - ls
limits:
  max_calls_per_turn: 7
  cooldown_ms: 25
routing:
  fallback_provider: gemini
  fallback_models:
    openai:
      - gpt-test
      - gpt-mini
  pricing:
    gpt-test:
      input: 1.5
      output: 6.0
  context_windows:
    gpt-test: 42000
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "whitelist", cfg.ShellCommands.Mode)
	assert.Equal(t, []string{"git status", "ls"}, cfg.ShellCommands.Whitelist)

	maxCalls, _, cooldown, _, _, _ := cfg.GuardLimits()
	assert.Equal(t, 7, maxCalls)
	assert.Equal(t, 25*time.Millisecond, cooldown)

	assert.Equal(t, "gemini", cfg.Routing.FallbackProvider)
	assert.Equal(t, []string{"gpt-test", "gpt-mini"}, cfg.Routing.FallbackModels["openai"])
	assert.Equal(t, 1.5, cfg.Routing.Pricing["gpt-test"].Input)
	assert.Equal(t, 42000, cfg.ContextWindowFor("gpt-test"))
	assert.Equal(t, DefaultContextWindow, cfg.ContextWindowFor("unknown-model"))
}

func TestGetToolset(t *testing.T) {
	cfg := &Config{Toolsets: []Toolset{
		{Name: "default", Tools: []string{"read_file"}},
		{Name: "full", Tools: []string{"read_file", "write_file"}},
	}}

	ts, err := cfg.GetToolset("full")
	require.NoError(t, err)
	assert.Equal(t, "full", ts.Name)

	ts, err = cfg.GetToolset("")
	require.NoError(t, err)
	assert.Equal(t, "default", ts.Name)

	// Unknown toolsets fall back to default.
	ts, err = cfg.GetToolset("nope")
	require.NoError(t, err)
	assert.Equal(t, "default", ts.Name)
}

func TestGetToolset_NoToolsetsConfigured(t *testing.T) {
	cfg := &Config{}
	ts, err := cfg.GetToolset("")
	require.NoError(t, err)
	assert.Equal(t, "default", ts.Name)
	assert.Empty(t, ts.Tools)
}

func TestStore_LiveReload(t *testing.T) {
	_, project := isolate(t)

	writeConfig(t, project, "shell_commands:\n  mode: blocklist\n")
	cfg, err := Load()
	require.NoError(t, err)
	store := NewStore(cfg)

	pol := store.CommandPolicy()
	assert.Equal(t, policy.ModeBlocklist, pol.Mode)

	// Edit the file; the next query sees the change without a restart.
	writeConfig(t, project, "shell_commands:\n  mode: whitelist\n  whitelist:\n    - git status\n")
	pol = store.CommandPolicy()
	assert.Equal(t, policy.ModeWhitelist, pol.Mode)
	assert.Equal(t, []string{"git status"}, pol.Whitelist)
}

func TestStore_InvalidModeFallsBackToBlocklist(t *testing.T) {
	_, project := isolate(t)
	writeConfig(t, project, "shell_commands:\n  mode: bogus\n")

	cfg, err := Load()
	require.NoError(t, err)
	store := NewStore(cfg)
	assert.Equal(t, policy.ModeBlocklist, store.CommandPolicy().Mode)
}
