// Package terminal implements the command-line interface (CLI) mode for the
// pilot agent.
//
// This package provides an interactive terminal-based user interface where
// users converse with the agent through text prompts and receive responses
// directly in the terminal. It handles user input, displays agent responses,
// manages tool execution confirmations, and provides verbosity levels for
// tool execution output.
//
// # Usage
//
// Create an agent instance and pass it to the terminal:
//
//	agent, err := agent.New(deps, toolset, mode, verbosity)
//	if err != nil {
//	    // handle error
//	}
//
//	term := terminal.New(agent)
//	err = term.Run(ctx, initialPrompt)
//
// # Features
//
//   - Interactive prompt-based conversation with the agent
//   - Support for initial prompts from command-line arguments
//   - Tool execution confirmation prompts
//   - Configurable verbosity levels for tool execution output
//   - Slash commands: /quit (and /exit), /status, /reset limits
//
// # Verbosity Levels
//
// The terminal supports different verbosity levels for tool execution:
//
//   - None: No tool execution information is displayed
//   - Info: Tool names are displayed when called
//   - All: Tool names, arguments, and results are displayed
package terminal
