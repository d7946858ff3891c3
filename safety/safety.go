// Package safety rejects shell command strings that could enable injection.
// The checks run over the raw string before any shell-aware parsing, so
// metacharacters inside quoted segments are caught too. This is an
// allow-nothing-clever policy: chaining, substitution, redirection and
// background execution are categorically forbidden, not enumerated.
package safety

import "strings"

// DestructiveCommands lists command prefixes that always require explicit
// user confirmation even when a blanket auto-confirm is active.
var DestructiveCommands = []string{
	"rm", "rmdir", "del", "unlink", "shred",
	"sudo", "su", "chown", "chmod",
	"mv",
	"git push", "git reset", "git rebase",
	"npm publish", "pip upload",
	"docker rm", "docker rmi",
	"kubectl delete",
}

// IsDestructiveCommand reports whether the command starts with a known
// destructive prefix (whole-token match).
func IsDestructiveCommand(command string) bool {
	normalized := strings.TrimSpace(command)
	for _, prefix := range DestructiveCommands {
		if normalized == prefix || strings.HasPrefix(normalized, prefix+" ") {
			return true
		}
	}
	return false
}

type check struct {
	bad    string
	reason string
}

// Ordered raw-string checks. "&&" and "||" are listed before the single-char
// forms only for reason accuracy; a plain "&" or "|" check would catch the
// doubled forms as well.
var rawChecks = []check{
	{"\x00", "Null bytes are forbidden in commands"},
	{"\n", "Newlines are forbidden in commands"},
	{"\r", "Newlines are forbidden in commands"},
	{";", "Semicolons are forbidden in commands (command chaining)"},
	{"`", "Backticks are forbidden in commands (command substitution)"},
	{"$", "Dollar signs are forbidden in commands (variable/command substitution)"},
	{"&&", "Conditional chaining (&&) is forbidden in commands"},
	{"||", "Conditional chaining (||) is forbidden in commands"},
	{"|", "Pipes are forbidden in commands (output redirection)"},
	{"&", "Background execution (&) is forbidden in commands"},
}

// Validate checks a shell command for injection constructs. It never fails
// with an error; a rejected command yields ok=false and a human-readable
// reason naming the offending construct.
//
// A command that passes contains no shell metacharacters and no traversal
// sequences: a single literal command with literal arguments.
func Validate(command string) (ok bool, reason string) {
	if strings.TrimSpace(command) == "" {
		return false, "Command cannot be empty"
	}

	for _, c := range rawChecks {
		if strings.Contains(command, c.bad) {
			return false, c.reason
		}
	}

	tokens, err := SplitWords(command)
	if err != nil {
		return false, "Invalid command format"
	}
	if len(tokens) == 0 {
		return false, "Command cannot be empty"
	}

	// Path traversal is rejected in every token, command name included.
	for _, tok := range tokens {
		if strings.Contains(tok, "..") {
			return false, "Path traversal ('..') is forbidden in command"
		}
	}

	return true, ""
}

// SplitWords performs POSIX-style shell word splitting with single and
// double quote handling. It returns an error on unterminated quotes.
// Backslash escaping is honored outside single quotes.
func SplitWords(command string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inWord  bool
		quote   rune // 0, '\'' or '"'
	)

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				if i+1 < len(runes) {
					i++
					current.WriteRune(runes[i])
				} else {
					return nil, errUnterminated
				}
			default:
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\':
			if i+1 >= len(runes) {
				return nil, errUnterminated
			}
			i++
			current.WriteRune(runes[i])
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, errUnterminated
	}
	if inWord {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

type splitError string

func (e splitError) Error() string { return string(e) }

const errUnterminated = splitError("unterminated quote or escape")
