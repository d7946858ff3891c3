package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MBemera/Radsim-sub001/audit"
	"github.com/MBemera/Radsim-sub001/config"
	"github.com/MBemera/Radsim-sub001/guard"
	"github.com/MBemera/Radsim-sub001/hooks"
	"github.com/MBemera/Radsim-sub001/llm"
	"github.com/MBemera/Radsim-sub001/policy"
	"github.com/MBemera/Radsim-sub001/router"
	"github.com/MBemera/Radsim-sub001/session"
	"github.com/MBemera/Radsim-sub001/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in a fresh working directory and home so session and
// config files never leak between tests.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func writeProjectConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(".pilot", 0755))
	require.NoError(t, os.WriteFile(filepath.Join(".pilot", "config.yaml"), []byte(content), 0644))
}

type fixture struct {
	agent *Agent
	mock  *llm.MockClient
	sess  *session.Session
}

func newFixture(t *testing.T, mock *llm.MockClient, limits guard.Limits) *fixture {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	store := config.NewStore(cfg)

	sess, err := session.New("test")
	require.NoError(t, err)

	clients := llm.NewRegistry()
	clients.RegisterProvider("mock", func(ctx context.Context, model string) (llm.Client, error) {
		return mock, nil
	})

	deps := Deps{
		Config:  store,
		Session: sess,
		Clients: clients,
		Router: router.New("mock", "mock-model", router.Tables{
			FallbackModels: map[string][]string{"mock": {"mock-model"}},
		}),
		Protection: guard.NewProtection(limits),
		Hooks:      hooks.NewManager(),
		Policy:     policy.New(store),
		Audit:      audit.Nop(),
		Tools:      tools.NewRegistry(cfg),
	}

	a, err := New(deps, "", ModePrompt, ToolVerbosityNone)
	require.NoError(t, err)
	return &fixture{agent: a, mock: mock, sess: sess}
}

func testLimits() guard.Limits {
	limits := guard.DefaultLimits()
	limits.Cooldown = time.Millisecond
	return limits
}

func toolCallMessage(name string, args map[string]any) *session.Message {
	return &session.Message{
		Role: "assistant",
		ToolCalls: []session.ToolCall{{
			ToolCallID: "call_1",
			Name:       name,
			Args:       args,
		}},
	}
}

func toolResults(t *testing.T, sess *session.Session) []map[string]any {
	t.Helper()
	var results []map[string]any
	for _, msg := range sess.Messages {
		if msg.Role != "tool" {
			continue
		}
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Content), &decoded))
		results = append(results, decoded)
	}
	return results
}

func TestProcessUserInput_PlainAnswer(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		{Role: "assistant", Content: "All done."},
	}}
	f := newFixture(t, mock, testLimits())

	var said []string
	err := f.agent.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{
		OnAssistantMessage: func(m string) { said = append(said, m) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"All done."}, said)
	assert.Equal(t, 1, mock.Calls)

	require.Len(t, f.sess.Messages, 2)
	assert.Equal(t, "user", f.sess.Messages[0].Role)
	assert.Equal(t, "assistant", f.sess.Messages[1].Role)
}

func TestProcessUserInput_ConfirmationDeniedContinues(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("write_file", map[string]any{"path": "out.txt", "content": "hi"}),
		{Role: "assistant", Content: "Understood, not writing."},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "write the file", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool { return false },
	})
	require.NoError(t, err)

	// The denial became a failed tool result and the model saw it on the
	// next call.
	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, false, results[0]["success"])
	assert.Contains(t, results[0]["error"], "STOPPED")
	assert.Equal(t, 2, mock.Calls)
	assert.NoFileExists(t, "out.txt")
}

func TestProcessUserInput_ConfirmedToolExecutes(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("write_file", map[string]any{"path": "out.txt", "content": "hi"}),
		{Role: "assistant", Content: "Written."},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "write the file", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool { return true },
	})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0]["success"])
	assert.FileExists(t, "out.txt")
}

func TestProcessUserInput_RejectionSkipsRemainingTools(t *testing.T) {
	isolate(t)
	first := toolCallMessage("write_file", map[string]any{"path": "a.txt", "content": "1"})
	first.ToolCalls = append(first.ToolCalls, session.ToolCall{
		ToolCallID: "call_2",
		Name:       "write_file",
		Args:       map[string]any{"path": "b.txt", "content": "2"},
	})
	mock := &llm.MockClient{Responses: []*session.Message{
		first,
		{Role: "assistant", Content: "Stopping."},
	}}
	f := newFixture(t, mock, testLimits())

	asked := 0
	err := f.agent.ProcessUserInput(context.Background(), "write both", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool { asked++; return false },
	})
	require.NoError(t, err)

	// Only the first tool prompted; the second was skipped outright.
	assert.Equal(t, 1, asked)
	results := toolResults(t, f.sess)
	require.Len(t, results, 2)
	assert.Contains(t, results[0]["error"], "STOPPED: User rejected")
	assert.Contains(t, results[1]["error"], "All remaining tool calls skipped")
	assert.NoFileExists(t, "a.txt")
	assert.NoFileExists(t, "b.txt")
}

func TestProcessUserInput_ReadOnlyToolNeedsNoConfirmation(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("data.txt", []byte("contents"), 0644))
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("read_file", map[string]any{"path": "data.txt"}),
		{Role: "assistant", Content: "Read it."},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "read the file", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool {
			t.Fatal("read-only tools must not prompt")
			return false
		},
	})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0]["success"])
}

func TestProcessUserInput_UnsafeCommandRejected(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("execute_command", map[string]any{"command": "echo hi; rm -rf /tmp/x"}),
		{Role: "assistant", Content: "Noted."},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "run it", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool {
			t.Fatal("a rejected command must never reach confirmation")
			return false
		},
	})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, false, results[0]["success"])
	assert.Contains(t, results[0]["error"], "Semicolons")
}

func TestProcessUserInput_PolicyDenialSurfacesRule(t *testing.T) {
	isolate(t)
	writeProjectConfig(t, "shell_commands:\n  mode: whitelist\n  whitelist:\n    - echo\n")
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("execute_command", map[string]any{"command": "git push origin main"}),
		{Role: "assistant", Content: "Noted."},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "push", ProcessCallbacks{})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, false, results[0]["success"])
	assert.Contains(t, results[0]["error"], "not in the whitelist")
}

func TestProcessUserInput_GuardDeniesWithoutRouterCall(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{}
	limits := testLimits()
	limits.MaxCallsPerTurn = 1
	f := newFixture(t, mock, limits)

	var warnings []string
	err := f.agent.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{
		OnWarning: func(w string) { warnings = append(warnings, w) },
	})
	require.NoError(t, err)

	assert.Equal(t, 0, mock.Calls, "a guard denial must not reach the router")
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "Rate limit exceeded")
}

func TestProcessUserInput_ToolLoopBoundedByCap(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("data.txt", []byte("x"), 0644))
	// The model asks for the same tool forever.
	mock := &llm.MockClient{}
	for i := 0; i < 20; i++ {
		mock.Responses = append(mock.Responses, toolCallMessage("read_file", map[string]any{"path": "data.txt"}))
	}
	limits := testLimits()
	limits.MaxCallsPerTurn = 4
	f := newFixture(t, mock, limits)

	var warnings []string
	err := f.agent.ProcessUserInput(context.Background(), "loop", ProcessCallbacks{
		OnWarning: func(w string) { warnings = append(warnings, w) },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, mock.Calls)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "Rate limit exceeded")
}

func TestProcessUserInput_PreMessageHookCancels(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{}
	f := newFixture(t, mock, testLimits())

	f.agent.Hooks.Register(hooks.PreMessage, func(hctx *hooks.Context) error {
		hctx.ShouldProceed = false
		return nil
	})

	err := f.agent.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 0, mock.Calls)
	assert.Empty(t, f.sess.Messages)
}

func TestProcessUserInput_PreMessageHookRewrites(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		{Role: "assistant", Content: "ok"},
	}}
	f := newFixture(t, mock, testLimits())

	f.agent.Hooks.Register(hooks.PreMessage, func(hctx *hooks.Context) error {
		hctx.ModifiedMessage = hctx.Message + " [redacted]"
		return nil
	})

	err := f.agent.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, "hello [redacted]", f.sess.Messages[0].Content)
}

func TestProcessUserInput_PreToolHookCancelsOneCall(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("read_file", map[string]any{"path": "data.txt"}),
		{Role: "assistant", Content: "ok"},
	}}
	f := newFixture(t, mock, testLimits())

	f.agent.Hooks.Register(hooks.PreTool, func(hctx *hooks.Context) error {
		hctx.ShouldProceed = false
		return nil
	})

	err := f.agent.ProcessUserInput(context.Background(), "read", ProcessCallbacks{})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Equal(t, false, results[0]["success"])
	assert.Contains(t, results[0]["error"], "cancelled by a registered hook")
	// A hook cancellation is not a user rejection; the loop continued.
	assert.Equal(t, 2, mock.Calls)
}

func TestProcessUserInput_ProviderChainExhausted(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Err: context.DeadlineExceeded}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestProcessUserInput_UnknownTool(t *testing.T) {
	isolate(t)
	mock := &llm.MockClient{Responses: []*session.Message{
		toolCallMessage("summon_demon", map[string]any{}),
		{Role: "assistant", Content: "ok"},
	}}
	f := newFixture(t, mock, testLimits())

	err := f.agent.ProcessUserInput(context.Background(), "do it", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool { return true },
	})
	require.NoError(t, err)

	results := toolResults(t, f.sess)
	require.Len(t, results, 1)
	assert.Contains(t, results[0]["error"], "unknown tool")
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, categoryReadOnly, categoryOf("read_file"))
	assert.Equal(t, categoryReadOnly, categoryOf("list_directory"))
	assert.Equal(t, categoryAlways, categoryOf("write_file"))
	assert.Equal(t, categoryAlways, categoryOf("delete_file"))
	assert.Equal(t, categoryAlways, categoryOf("execute_command"))
	assert.Equal(t, categoryLight, categoryOf("some_mcp_tool"))
}
