package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MBemera/Radsim-sub001/agent"
	"github.com/MBemera/Radsim-sub001/agent/terminal"
	"github.com/MBemera/Radsim-sub001/audit"
	"github.com/MBemera/Radsim-sub001/config"
	"github.com/MBemera/Radsim-sub001/guard"
	"github.com/MBemera/Radsim-sub001/hooks"
	"github.com/MBemera/Radsim-sub001/llm"
	"github.com/MBemera/Radsim-sub001/policy"
	"github.com/MBemera/Radsim-sub001/router"
	"github.com/MBemera/Radsim-sub001/session"
	"github.com/MBemera/Radsim-sub001/tools"
)

func main() {
	// Define flags
	modeFlag := flag.String("m", "", "Execution mode: 'auto' or 'prompt'")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	toolVerbosityFlag := flag.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all'")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	store := config.NewStore(cfg)

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		// Resume session
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
		// Apply session flags if not explicitly overridden by user
		if *modeFlag == "" && sess.Mode != "" {
			*modeFlag = sess.Mode
		}
		if *toolsetFlag == "" && sess.Toolset != "" {
			*toolsetFlag = sess.Toolset
		}
		if *toolVerbosityFlag == "" && sess.ToolVerbosity != "" {
			*toolVerbosityFlag = sess.ToolVerbosity
		}

	} else {
		// Start new session
		if sessionName == "" {
			sessionName = session.DefaultName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	if *modeFlag == "" {
		*modeFlag = "prompt"
	}
	if *toolsetFlag == "" {
		*toolsetFlag = "default"
	}
	if *toolVerbosityFlag == "" {
		*toolVerbosityFlag = "none"
	}

	// Update session with current flag values and save
	sess.Mode = *modeFlag
	sess.Toolset = *toolsetFlag
	sess.ToolVerbosity = *toolVerbosityFlag
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	// Validate mode
	var opMode agent.Mode
	switch *modeFlag {
	case "auto":
		opMode = agent.ModeAuto
	case "prompt":
		opMode = agent.ModePrompt
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", *modeFlag)
		os.Exit(1)
	}

	// Validate tool verbosity
	var verbosity agent.ToolVerbosity
	switch *toolVerbosityFlag {
	case "none":
		verbosity = agent.ToolVerbosityNone
	case "info":
		verbosity = agent.ToolVerbosityInfo
	case "all":
		verbosity = agent.ToolVerbosityAll
	default:
		fmt.Fprintf(os.Stderr, "Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.\n", *toolVerbosityFlag)
		os.Exit(1)
	}

	auditLogger := openAuditLogger(sess.ID)
	defer auditLogger.Close()

	registry := tools.NewRegistry(cfg)
	defer registry.Close()

	deps := agent.Deps{
		Config:     store,
		Session:    sess,
		Clients:    llm.NewRegistry(),
		Router:     router.New(cfg.LLMClient, cfg.Model, routingTables(cfg)),
		Protection: guard.NewProtection(guardLimits(cfg)),
		Hooks:      hooks.Default(),
		Policy:     policy.New(store),
		Audit:      auditLogger,
		Tools:      registry,
	}

	// Create the agent
	pilotAgent, err := agent.New(deps, *toolsetFlag, opMode, verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}

	// Get initial prompt from remaining arguments
	initialPrompt := strings.Join(flag.Args(), " ")

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	term := terminal.New(pilotAgent)
	term.TurnContext = installInterruptHandler(runCtx)

	fmt.Println("Pilot is ready. Type your prompt.")
	if err := term.Run(runCtx, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

// installInterruptHandler wires SIGINT escalation: the first interrupt cancels
// the in-flight turn so the loop unwinds at its next checkpoint; a second
// interrupt within two seconds exits immediately.
func installInterruptHandler(runCtx context.Context) func() (context.Context, context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	turnCancel := make(chan context.CancelFunc, 1)

	go func() {
		var lastInterrupt time.Time
		for range sigCh {
			now := time.Now()
			if now.Sub(lastInterrupt) < 2*time.Second {
				fmt.Fprintln(os.Stderr, "\nForced exit.")
				os.Exit(130)
			}
			lastInterrupt = now

			select {
			case cancel := <-turnCancel:
				fmt.Fprintln(os.Stderr, "\nInterrupted. Press Ctrl+C again within 2s to force exit.")
				cancel()
			default:
				fmt.Fprintln(os.Stderr, "\nPress Ctrl+C again within 2s to force exit.")
			}
		}
	}()

	return func() (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(runCtx)
		// Expose the current turn's cancel to the signal goroutine, dropping
		// any stale one.
		select {
		case <-turnCancel:
		default:
		}
		turnCancel <- cancel
		return ctx, cancel
	}
}

// guardLimits applies configured ceilings over the stock defaults. Zero
// values in the config keep the default; budgets stay zero (unlimited) unless
// set.
func guardLimits(cfg *config.Config) guard.Limits {
	limits := guard.DefaultLimits()
	maxCalls, maxFailures, cooldown, threshold, maxIn, maxOut := cfg.GuardLimits()
	if maxCalls > 0 {
		limits.MaxCallsPerTurn = maxCalls
	}
	if maxFailures > 0 {
		limits.MaxFailuresPerTurn = maxFailures
	}
	if cooldown > 0 {
		limits.Cooldown = cooldown
	}
	if threshold > 0 {
		limits.BreakerThreshold = threshold
	}
	limits.MaxInputTokens = maxIn
	limits.MaxOutputTokens = maxOut
	return limits
}

// routingTables converts the YAML routing block into router tables.
func routingTables(cfg *config.Config) router.Tables {
	tables := router.Tables{
		FallbackModels:   cfg.Routing.FallbackModels,
		FallbackProvider: cfg.Routing.FallbackProvider,
		Pricing:          make(map[string]router.Pricing, len(cfg.Routing.Pricing)),
	}
	if tables.FallbackModels == nil {
		tables.FallbackModels = map[string][]string{}
	}
	// The configured primary pair always belongs to its provider's chain.
	if cfg.LLMClient != "" && cfg.Model != "" {
		found := false
		for _, m := range tables.FallbackModels[cfg.LLMClient] {
			if m == cfg.Model {
				found = true
				break
			}
		}
		if !found {
			models := append([]string{cfg.Model}, tables.FallbackModels[cfg.LLMClient]...)
			tables.FallbackModels[cfg.LLMClient] = models
		}
	}
	for model, price := range cfg.Routing.Pricing {
		tables.Pricing[model] = router.Pricing{
			InputPer1M:  price.Input,
			OutputPer1M: price.Output,
		}
	}
	return tables
}

// openAuditLogger opens the per-session JSONL log, degrading to a no-op
// logger when the log directory is unavailable.
func openAuditLogger(sessionID string) *audit.Logger {
	home, err := os.UserHomeDir()
	if err != nil {
		return audit.Nop()
	}
	logger, err := audit.New(sessionID, filepath.Join(home, ".pilot", "logs"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit log unavailable: %v\n", err)
		return audit.Nop()
	}
	return logger
}
