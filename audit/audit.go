// Package audit emits the structured event trail for the agent: tool
// executions, API calls, messages and errors. Storage is a JSONL stream via
// log/slog; anything smarter than a file belongs to an external consumer.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/google/uuid"
)

// Keys whose values must never reach the log, matched case-insensitively.
var sensitivePattern = regexp.MustCompile(
	`(?i)(access_code|api_key|apikey|password|secret|token|credential|private_key)(["'\s:=]+)[^\s",}\]]+`)

// Sanitize redacts secret-looking values from a string before logging.
func Sanitize(data string) string {
	if data == "" {
		return data
	}
	return sensitivePattern.ReplaceAllString(data, "${1}${2}[REDACTED]")
}

// Logger writes one JSONL audit stream per session.
type Logger struct {
	log       *slog.Logger
	sessionID string
	closer    io.Closer
}

// New opens (or creates) the audit stream for a session under dir. An empty
// dir defaults to ~/.pilot/logs.
func New(sessionID, dir string) (*Logger, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve home directory for audit logs")
		}
		dir = filepath.Join(home, ".pilot", "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create audit log directory")
	}

	path := filepath.Join(dir, "session_"+sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open audit log")
	}

	return NewWithWriter(sessionID, f), nil
}

// NewWithWriter builds a logger over an arbitrary writer, mainly for tests.
func NewWithWriter(sessionID string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	l := &Logger{
		log:       slog.New(handler).With("session_id", sessionID),
		sessionID: sessionID,
	}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("", io.Discard)
}

// SessionID reports the session this logger writes for.
func (l *Logger) SessionID() string { return l.sessionID }

// Close releases the underlying stream, if it owns one.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Sanitize(string(b))
}

// ToolExecution records one tool invocation with its input and output.
func (l *Logger) ToolExecution(toolName string, input map[string]any, output string, duration time.Duration) {
	l.log.Info("tool_execution",
		"tool_name", toolName,
		"tool_input", compactJSON(input),
		"tool_output", Sanitize(output),
		"duration_ms", duration.Milliseconds(),
	)
}

// APICall records one model request with its provider, model and token usage.
func (l *Logger) APICall(provider, model string, tokensIn, tokensOut int, duration time.Duration) {
	l.log.Info("api_call",
		"api_provider", provider,
		"api_model", model,
		"input_tokens", tokensIn,
		"output_tokens", tokensOut,
		"duration_ms", duration.Milliseconds(),
	)
}

// Message records a conversation message by role.
func (l *Logger) Message(role, content string) {
	l.log.Info("message",
		"message_role", role,
		"message_content", Sanitize(content),
	)
}

// Error records a classified failure with free-form metadata.
func (l *Logger) Error(kind errors.Kind, message string, metadata map[string]any) {
	attrs := []any{
		"error_type", string(kind),
		"error_message", Sanitize(message),
	}
	if len(metadata) > 0 {
		attrs = append(attrs, "metadata", compactJSON(metadata))
	}
	l.log.Error("error", attrs...)
}
