package agent

import (
	"context"
	"strings"
	"time"

	"github.com/MBemera/Radsim-sub001/audit"
	"github.com/MBemera/Radsim-sub001/config"
	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/MBemera/Radsim-sub001/guard"
	"github.com/MBemera/Radsim-sub001/hooks"
	"github.com/MBemera/Radsim-sub001/llm"
	"github.com/MBemera/Radsim-sub001/policy"
	"github.com/MBemera/Radsim-sub001/result"
	"github.com/MBemera/Radsim-sub001/router"
	"github.com/MBemera/Radsim-sub001/safety"
	"github.com/MBemera/Radsim-sub001/session"
	"github.com/MBemera/Radsim-sub001/tools"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// confirmCategory classifies how much ceremony a tool needs before dispatch.
// The loop consults this table, never the tools themselves.
type confirmCategory int

const (
	// categoryLight prompts in prompt mode but is skippable with the blanket
	// auto-confirm flag. Unknown tools (MCP included) land here.
	categoryLight confirmCategory = iota
	// categoryReadOnly never prompts.
	categoryReadOnly
	// categoryAlways prompts for write/delete-classed tools; the blanket
	// auto-confirm flag does not skip it, only auto mode does.
	categoryAlways
)

var readOnlyTools = map[string]bool{
	"read_file":      true,
	"list_directory": true,
}

var alwaysConfirmTools = map[string]bool{
	"write_file":      true,
	"delete_file":     true,
	"execute_command": true,
}

func categoryOf(toolName string) confirmCategory {
	switch {
	case readOnlyTools[toolName]:
		return categoryReadOnly
	case alwaysConfirmTools[toolName]:
		return categoryAlways
	default:
		return categoryLight
	}
}

const stoppedSkipped = "STOPPED: User cancelled a previous action this turn. All remaining tool calls skipped."
const stoppedRejected = "STOPPED: User rejected action. Do NOT retry."

// contextPruneThreshold is the usage percentage past which the history is
// pruned before an API call.
const contextPruneThreshold = 80.0

// ProcessCallbacks let the front end observe and steer a turn without the
// loop knowing anything about terminals.
type ProcessCallbacks struct {
	OnAssistantMessage func(message string)
	OnToolCall         func(toolCall session.ToolCall)
	OnToolResult       func(toolCall session.ToolCall, res result.Result)
	// ShouldExecuteTool is the yes/no confirmation collaborator. A nil
	// callback confirms everything.
	ShouldExecuteTool func(toolCall session.ToolCall) bool
	OnWarning         func(warning string)
}

func (c ProcessCallbacks) warn(msg string) {
	if c.OnWarning != nil {
		c.OnWarning(msg)
	}
}

// Deps are the explicitly wired collaborators of an Agent. Everything is
// constructed in main and passed down; the agent owns no globals.
type Deps struct {
	Config     *config.Store
	Session    *session.Session
	Clients    *llm.Registry
	Router     *router.Router
	Protection *guard.Protection
	Hooks      *hooks.Manager
	Policy     *policy.Engine
	Audit      *audit.Logger
	Tools      *tools.Registry
}

// Agent drives the turn-taking conversation loop.
type Agent struct {
	Deps

	AvailableTools []tools.Tool
	Mode           Mode
	Verbosity      ToolVerbosity
}

// New builds an agent for the given toolset. Missing optional collaborators
// are defaulted so tests can wire only what they exercise.
func New(deps Deps, toolset string, mode Mode, verbosity ToolVerbosity) (*Agent, error) {
	if deps.Hooks == nil {
		deps.Hooks = hooks.Default()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop()
	}

	cfg := deps.Config.Current()
	ts, err := cfg.GetToolset(toolset)
	if err != nil {
		return nil, err
	}
	active, err := deps.Tools.ActiveTools(ts)
	if err != nil {
		return nil, err
	}

	return &Agent{
		Deps:           deps,
		AvailableTools: active,
		Mode:           mode,
		Verbosity:      verbosity,
	}, nil
}

// ProcessUserInput runs one full user turn: send the input, execute any tool
// calls the model requests, and keep calling the model until it answers with
// plain text or a guard denies further calls. Guard denials end the turn as a
// normal path with the reason surfaced through the warning callback; only
// exhausted provider chains and cancellation return an error.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	a.Protection.OnUserInput()

	hctx := hooks.NewContext(hooks.PreMessage)
	hctx.Message = userInput
	a.Hooks.Execute(hooks.PreMessage, hctx)
	if !hctx.ShouldProceed {
		callbacks.warn("Input cancelled by a registered hook.")
		return nil
	}
	if hctx.ModifiedMessage != "" {
		userInput = hctx.ModifiedMessage
	}

	a.Session.AddMessage(session.Message{Role: "user", Content: userInput})
	a.Audit.Message("user", userInput)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cfg := a.Config.Current()
		window := cfg.ContextWindowFor(cfg.Model)
		if pruned := a.Session.CheckAndPrune(window, contextPruneThreshold); pruned > 0 {
			callbacks.warn(errors.New("Pruned %d old messages to stay within the context window", pruned).Error())
		}

		warning, err := a.Protection.CheckBeforeCall()
		if warning != "" {
			callbacks.warn(warning)
		}
		if err != nil {
			a.Audit.Error(errors.KindOf(err), err.Error(), nil)
			callbacks.warn(err.Error())
			break
		}

		assistant, usage, err := a.callModel(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.recordTurnError(err)
			return err
		}

		if warning, budgetErr := a.Protection.RecordSuccess(usage.InputTokens, usage.OutputTokens); warning != "" || budgetErr != nil {
			if warning != "" {
				callbacks.warn(warning)
			}
			if budgetErr != nil {
				callbacks.warn(budgetErr.Error())
			}
		}

		a.Session.AddMessage(*assistant)
		if assistant.Content != "" {
			a.Audit.Message("assistant", assistant.Content)
			if callbacks.OnAssistantMessage != nil {
				callbacks.OnAssistantMessage(assistant.Content)
			}
		}

		if len(assistant.ToolCalls) == 0 {
			break
		}

		a.dispatchToolCalls(ctx, assistant.ToolCalls, callbacks)
	}

	post := hooks.NewContext(hooks.PostMessage)
	if n := len(a.Session.Messages); n > 0 {
		post.Message = a.Session.Messages[n-1].Content
	}
	a.Hooks.Execute(hooks.PostMessage, post)

	if err := a.Session.Save(); err != nil {
		callbacks.warn(errors.Wrapf(err, "failed to save session").Error())
	}
	return nil
}

// callModel performs one routed API call with pre/post hooks and auditing.
func (a *Agent) callModel(ctx context.Context, cfg *config.Config) (*session.Message, llm.Usage, error) {
	pre := hooks.NewContext(hooks.PreAPI)
	a.Hooks.Execute(hooks.PreAPI, pre)
	if !pre.ShouldProceed {
		return nil, llm.Usage{}, errors.NewKind(errors.KindHook, "API call cancelled by a registered hook")
	}

	type outcome struct {
		msg   *session.Message
		usage llm.Usage
	}

	call := func(ctx context.Context, provider, model string) (outcome, error) {
		client, err := a.Clients.Client(ctx, provider, model)
		if err != nil {
			return outcome{}, err
		}
		start := time.Now()
		msg, usage, err := client.Chat(ctx, a.Session.Messages, a.AvailableTools)
		if err != nil {
			return outcome{}, err
		}
		a.Audit.APICall(provider, model, usage.InputTokens, usage.OutputTokens, time.Since(start))
		return outcome{msg: msg, usage: usage}, nil
	}

	out, err := router.RouteWithFallback(ctx, a.Router, call, cfg.LLMClient, cfg.Model)
	if err != nil {
		return nil, llm.Usage{}, err
	}

	post := hooks.NewContext(hooks.PostAPI)
	post.Message = out.msg.Content
	a.Hooks.Execute(hooks.PostAPI, post)

	return out.msg, out.usage, nil
}

// dispatchToolCalls executes the model's tool requests strictly in the given
// order. Once the user rejects one tool, every remaining call that turn is
// answered with a stopped result instead of executing.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []session.ToolCall, callbacks ProcessCallbacks) {
	userRejected := false

	for _, tc := range calls {
		if ctx.Err() != nil {
			userRejected = true
		}
		if userRejected {
			a.appendToolResult(tc, result.Fail(stoppedSkipped, nil), callbacks)
			continue
		}

		res, rejected := a.runToolCall(ctx, tc, callbacks)
		if rejected {
			userRejected = true
		}
		a.appendToolResult(tc, res, callbacks)
	}
}

// runToolCall takes one tool request through hooks, safety, policy,
// confirmation and execution. The returned flag reports a user rejection.
func (a *Agent) runToolCall(ctx context.Context, tc session.ToolCall, callbacks ProcessCallbacks) (result.Result, bool) {
	args := tc.Args
	if args == nil {
		args = map[string]any{}
	}

	pre := hooks.NewContext(hooks.PreTool)
	pre.ToolName = tc.Name
	pre.ToolInput = args
	a.Hooks.Execute(hooks.PreTool, pre)
	if !pre.ShouldProceed {
		return result.Fail("Tool call cancelled by a registered hook", nil), false
	}
	if pre.ModifiedInput != nil {
		args = pre.ModifiedInput
	}

	if callbacks.OnToolCall != nil {
		callbacks.OnToolCall(tc)
	}

	forceConfirm := false
	if tc.Name == "execute_command" {
		command, _ := args["command"].(string)
		if ok, reason := safety.Validate(command); !ok {
			err := errors.NewKind(errors.KindValidation, "unsafe command rejected: %s", reason)
			a.Audit.Error(errors.KindValidation, err.Error(), map[string]any{"command": command})
			return result.Fail(err.Error(), nil), false
		}
		if ok, reason := a.Policy.IsAllowed(command); !ok {
			err := errors.NewKind(errors.KindPolicy, "command blocked by policy: %s", reason)
			a.Audit.Error(errors.KindPolicy, err.Error(), map[string]any{"command": command})
			return result.Fail(err.Error(), nil), false
		}
		forceConfirm = safety.IsDestructiveCommand(command)
	}

	if a.needsConfirmation(tc.Name, forceConfirm) && callbacks.ShouldExecuteTool != nil {
		if !callbacks.ShouldExecuteTool(tc) {
			return result.Fail(stoppedRejected, nil), true
		}
	}

	tool, ok := a.Tools.Get(tc.Name)
	if !ok {
		return result.Fail(errors.NewKind(errors.KindTool, "unknown tool '%s'", tc.Name).Error(), nil), false
	}

	res := result.Wrap(tc.Name, tool.Execute)(ctx, args)

	post := hooks.NewContext(hooks.PostTool)
	post.ToolName = tc.Name
	post.ToolInput = args
	post.ToolResult = &res
	a.Hooks.Execute(hooks.PostTool, post)

	a.Audit.ToolExecution(tc.Name, args, res.String(), res.Duration)

	rejected := !res.Success && strings.Contains(res.Error, "STOPPED")
	return res, rejected
}

// needsConfirmation applies the static category table plus the per-command
// force flag for destructive shell commands.
func (a *Agent) needsConfirmation(toolName string, forceConfirm bool) bool {
	if forceConfirm {
		return true
	}
	switch categoryOf(toolName) {
	case categoryReadOnly:
		return false
	case categoryAlways:
		return a.Mode != ModeAuto
	default:
		if a.Mode == ModeAuto {
			return false
		}
		return !a.Config.Current().AutoConfirm
	}
}

// appendToolResult records the envelope in the transcript as a tool message
// keyed to the originating call.
func (a *Agent) appendToolResult(tc session.ToolCall, res result.Result, callbacks ProcessCallbacks) {
	if callbacks.OnToolResult != nil {
		callbacks.OnToolResult(tc, res)
	}
	a.Session.AddMessage(session.Message{
		Role:    "tool",
		Content: res.String(),
		ToolCalls: []session.ToolCall{{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
		}},
	})
}

// recordTurnError routes a turn-ending failure through the guard, the error
// hooks and the audit log.
func (a *Agent) recordTurnError(err error) {
	if recordErr := a.Protection.RecordError("api_error"); recordErr != nil {
		err = recordErr
	}

	hctx := hooks.NewContext(hooks.OnError)
	hctx.Err = err
	a.Hooks.Execute(hooks.OnError, hctx)

	a.Audit.Error(errors.KindOf(err), err.Error(), nil)
}
