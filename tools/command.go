package tools

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/MBemera/Radsim-sub001/safety"
)

// DefaultCommandTimeout bounds a single command execution.
const DefaultCommandTimeout = 120 * time.Second

// ExecuteCommandTool runs a single literal OS command. Shell metacharacters
// are rejected before tokenization, so the command is always executed directly
// without a shell.
type ExecuteCommandTool struct {
	// Timeout overrides DefaultCommandTimeout when positive.
	Timeout time.Duration
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	return "Executes a single shell command without pipes, chaining or redirection. Args: command (string)."
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := args["command"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'command' argument")
	}

	if ok, reason := safety.Validate(command); !ok {
		return "", errors.NewKind(errors.KindValidation, "unsafe command rejected: %s", reason)
	}

	words, err := safety.SplitWords(command)
	if err != nil {
		return "", errors.NewKind(errors.KindValidation, "could not parse command: %v", err)
	}
	if len(words) == 0 {
		return "", errors.New("empty command")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.New("command '%s' timed out after %s. Output:\n%s", words[0], timeout, string(output))
	}
	if err != nil {
		return "", errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
	}

	return fmt.Sprintf("Command executed successfully. Output:\n%s", string(output)), nil
}
