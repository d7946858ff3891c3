// Package agent implements the turn-taking conversation loop at the heart of
// pilot.
//
// The agent drives a single state machine per user turn: append the input,
// prune the history if it is close to the model's context window, consult the
// rate/budget guard, call the model through the router (which retries across
// the fallback chain), and execute any tool calls the model requested before
// sending the updated transcript back. The turn ends when the model answers
// with plain text or a guard denies further calls.
//
// # Collaborators
//
// Every collaborator is wired explicitly through the Deps struct:
//
//   - config.Store: live-reloadable configuration
//   - session.Session: the append-only conversation transcript
//   - llm.Registry + router.Router: provider selection, failover and calls
//   - guard.Protection: per-turn call caps, budgets and the circuit breaker
//   - hooks.Manager: lifecycle extension points (pre/post tool, API, message)
//   - policy.Engine + safety: gating for shell-classed tool calls
//   - audit.Logger: the JSONL event trail
//   - tools.Registry: the concrete tools the model may invoke
//
// # Usage
//
// To create and use an agent:
//
//	agent, err := agent.New(deps, toolset, mode, verbosity)
//	if err != nil {
//	    // handle error
//	}
//
//	callbacks := agent.ProcessCallbacks{
//	    OnAssistantMessage: func(message string) {
//	        // Handle assistant responses
//	    },
//	    ShouldExecuteTool: func(toolCall session.ToolCall) bool {
//	        // Confirm or reject a pending tool execution
//	        return true
//	    },
//	    OnWarning: func(warning string) {
//	        // Handle non-fatal warnings
//	    },
//	}
//
//	err = agent.ProcessUserInput(ctx, "user message", callbacks)
//
// # Modes
//
// The agent supports two operation modes:
//
//   - ModeAuto: tools run without confirmation
//   - ModePrompt: write/delete-classed tools require confirmation via the
//     ShouldExecuteTool callback
//
// Independent of mode, a static category table classifies each tool as
// read-only (never confirmed), always-confirm (write/delete and shell
// execution) or light (skippable with the blanket auto_confirm config flag).
// A shell command matching the known-destructive set forces a confirmation
// prompt regardless of category.
//
// # Error handling
//
// Anything recoverable inside a turn is absorbed into a failed tool result
// that stays visible to the model: validation and policy denials, single tool
// failures, hook errors. Only resource exhaustion (call cap, token budget,
// open breaker) or a fully exhausted provider chain ends the turn early, and
// both surface a reason to the user.
//
// # Subpackages
//
// agent/terminal provides the interactive command-line front end with
// confirmation prompts, slash commands and configurable verbosity.
package agent
