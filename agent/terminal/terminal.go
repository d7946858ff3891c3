package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MBemera/Radsim-sub001/agent"
	"github.com/MBemera/Radsim-sub001/result"
	"github.com/MBemera/Radsim-sub001/session"
)

// Terminal handles the terminal/CLI interaction mode for the agent
type Terminal struct {
	agent *agent.Agent

	// TurnContext supplies a fresh context per turn so an interrupt can
	// cancel the in-flight turn without ending the REPL. Defaults to the
	// run context.
	TurnContext func() (context.Context, context.CancelFunc)
}

// New creates a new Terminal instance
func New(a *agent.Agent) *Terminal {
	return &Terminal{
		agent: a,
	}
}

// Run starts the interactive terminal session
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	// If there's an initial prompt from the command line, use it first
	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}

		if strings.HasPrefix(userInput, "/") {
			if t.handleSlashCommand(userInput) {
				break
			}
			continue
		}

		if err := t.processTurn(ctx, userInput); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// handleSlashCommand runs a control command. It returns true when the REPL
// should exit.
func (t *Terminal) handleSlashCommand(input string) (exit bool) {
	switch input {
	case "/quit", "/exit":
		return true
	case "/status":
		fmt.Printf("Limits: %s\n", t.agent.Protection.Status())
		cfg := t.agent.Config.Current()
		window := cfg.ContextWindowFor(cfg.Model)
		fmt.Printf("Context: %.0f%% of %d tokens used\n", t.agent.Session.ContextUsage(window), window)
	case "/reset limits":
		t.agent.Protection.ResetAll()
		fmt.Println("Limits reset.")
	default:
		fmt.Printf("Unknown command '%s'. Available: /quit, /status, /reset limits\n", input)
	}
	return false
}

// processTurn handles a single user input turn
func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	if t.TurnContext != nil {
		turnCtx, cancel := t.TurnContext()
		defer cancel()
		ctx = turnCtx
	}

	// Create callbacks for terminal-specific behavior
	callbacks := agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			fmt.Printf("Pilot: %s\n", message)
		},
		OnToolCall: func(toolCall session.ToolCall) {
			// Display tool call information based on verbosity
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Printf("Pilot wants to call tool `%s` with args: %v\n", toolCall.Name, toolCall.Args)
			} else if t.agent.Verbosity == agent.ToolVerbosityInfo {
				fmt.Printf("Pilot wants to call tool `%s`\n", toolCall.Name)
			}
		},
		OnToolResult: func(toolCall session.ToolCall, res result.Result) {
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Printf("Tool `%s` output: %s\n", toolCall.Name, res.String())
			}
		},
		ShouldExecuteTool: func(toolCall session.ToolCall) bool {
			fmt.Printf("Pilot wants to run `%s`. Allow? (y/n): ", toolCall.Name)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			return strings.TrimSpace(strings.ToLower(answer)) == "y"
		},
		OnWarning: func(warning string) {
			fmt.Printf("Warning: %s\n", warning)
		},
	}

	return t.agent.ProcessUserInput(ctx, userInput, callbacks)
}
