// Package policy enforces user-configurable allow/deny rules on shell
// commands, layered on top of the safety validator. Catastrophic commands are
// blocked at every configuration level; that set cannot be configured away.
package policy

import (
	"strings"

	"github.com/MBemera/Radsim-sub001/safety"
)

// Mode selects how the configured lists are interpreted.
type Mode string

const (
	ModeWhitelist Mode = "whitelist"
	ModeBlocklist Mode = "blocklist"
)

// Config is one snapshot of the live-editable command policy.
type Config struct {
	Mode              Mode
	Whitelist         []string
	Blocklist         []string
	CustomDestructive []string
}

// Source supplies the current policy configuration. Implementations are
// expected to reflect live edits: the engine queries the source on every
// validation call.
type Source interface {
	CommandPolicy() Config
}

// Commands blocked regardless of mode. Exact matches, lowercased.
var alwaysBlockedCommands = map[string]struct{}{
	"rm -rf /":          {},
	"rm -rf /*":         {},
	"rm -rf ~":          {},
	"rm -rf ~/*":        {},
	"mkfs":              {},
	"mkfs.ext4":         {},
	"mkfs.xfs":          {},
	"dd if=/dev/zero":   {},
	"dd if=/dev/random": {},
	":(){ :|:& };:":     {},
	"chmod -r 777 /":    {},
	"chown -r":          {},
	"> /dev/sda":        {},
	"mv / /dev/null":    {},
}

// Substring patterns that catch variations of the catastrophic set.
var alwaysBlockedPatterns = []string{
	"rm -rf /",
	"mkfs.",
	":(){ :|:& };:",
	"dd if=/dev/zero of=/dev/",
	"dd if=/dev/random of=/dev/",
	"chmod -r 777 /",
	"> /dev/sda",
	"> /dev/nvme",
}

// Engine applies the configured policy. The zero value is unusable; construct
// with New.
type Engine struct {
	source Source
}

// New creates a policy engine backed by the given live config source.
func New(source Source) *Engine {
	return &Engine{source: source}
}

// IsAllowed checks a command against the current policy. The reason is empty
// when the command is allowed and names the matching rule when it is not.
func (e *Engine) IsAllowed(command string) (allowed bool, reason string) {
	if strings.TrimSpace(command) == "" {
		return false, "Empty command"
	}

	if blocked, why := checkAlwaysBlocked(command); blocked {
		return false, why
	}

	cfg := e.source.CommandPolicy()
	if cfg.Mode == ModeWhitelist {
		return checkWhitelist(command, cfg.Whitelist)
	}
	return checkBlocklist(command, cfg.Blocklist, cfg.CustomDestructive)
}

func checkAlwaysBlocked(command string) (blocked bool, reason string) {
	normalized := strings.ToLower(strings.TrimSpace(command))

	if _, ok := alwaysBlockedCommands[normalized]; ok {
		return true, "BLOCKED: '" + command + "' is a catastrophic command blocked at all security levels"
	}
	for _, pattern := range alwaysBlockedPatterns {
		if strings.Contains(normalized, strings.ToLower(pattern)) {
			return true, "BLOCKED: Command matches catastrophic pattern '" + pattern + "'"
		}
	}
	return false, ""
}

// Whitelist mode admits only commands that equal, or extend by whole tokens,
// one of the configured prefixes: "git status" admits "git status --short"
// but not "git status--short".
func checkWhitelist(command string, whitelist []string) (bool, string) {
	if len(whitelist) == 0 {
		return false, "Whitelist mode active but no commands are whitelisted. Use /settings to configure."
	}

	normalized := strings.TrimSpace(command)
	for _, allowed := range whitelist {
		if normalized == allowed || strings.HasPrefix(normalized, allowed+" ") {
			return true, ""
		}
	}

	base := normalized
	if tokens, err := safety.SplitWords(normalized); err == nil && len(tokens) > 0 {
		base = tokens[0]
	} else if fields := strings.Fields(normalized); len(fields) > 0 {
		base = fields[0]
	}
	return false, "BLOCKED: '" + base + "' is not in the whitelist"
}

func checkBlocklist(command string, blocklist, customDestructive []string) (bool, string) {
	normalized := strings.ToLower(strings.TrimSpace(command))

	for _, pattern := range blocklist {
		if pattern != "" && strings.Contains(normalized, strings.ToLower(pattern)) {
			return false, "BLOCKED: Command matches blocked pattern '" + pattern + "'"
		}
	}
	for _, pattern := range customDestructive {
		if pattern != "" && strings.Contains(normalized, strings.ToLower(pattern)) {
			return false, "BLOCKED: Command matches custom destructive pattern '" + pattern + "'"
		}
	}
	return true, ""
}

// Static wraps a fixed Config as a Source, mainly for tests and defaults.
type Static struct {
	Config Config
}

func (s Static) CommandPolicy() Config { return s.Config }
