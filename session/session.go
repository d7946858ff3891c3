package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ToolCall is a structured request from the model to invoke a named tool.
type ToolCall struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
}

type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant", "tool"
	Content string `json:"content"`
	// ToolCalls carries the model's tool requests on assistant messages and
	// identifies the answered call on tool messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`

	Mode          string `json:"mode,omitempty"`
	Toolset       string `json:"toolset,omitempty"`
	ToolVerbosity string `json:"tool_verbosity,omitempty"`

	path string
}

// New creates a new session.
func New(name string) (*Session, error) {
	path, err := sessionPath(name)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Messages: []Message{},
		path:     path,
	}, nil
}

// Load loads an existing session from disk.
func Load(name string) (*Session, error) {
	path, err := sessionPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read session file %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not parse session file %s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.path = path
	return &s, nil
}

// Save writes the current session state to disk.
func (s *Session) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// AddMessage appends a message to the session history. History is
// append-only; pruning is the only sanctioned removal.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Reset drops the conversation history while keeping session identity.
func (s *Session) Reset() {
	s.Messages = s.Messages[:0]
}

// EstimateTokens approximates the token cost of the current history at
// roughly four characters per token, plus per-message overhead.
func (s *Session) EstimateTokens() int {
	total := 0
	for _, msg := range s.Messages {
		total += len(msg.Content)/4 + 4
		for _, tc := range msg.ToolCalls {
			total += len(tc.Name) / 4
			if b, err := json.Marshal(tc.Args); err == nil {
				total += len(b) / 4
			}
		}
	}
	return total
}

// ContextUsage reports the estimated fraction (0-100) of a model context
// window the history occupies.
func (s *Session) ContextUsage(contextWindow int) float64 {
	if contextWindow <= 0 {
		return 0
	}
	return float64(s.EstimateTokens()) / float64(contextWindow) * 100
}

// PruneToTarget removes the oldest message pairs until estimated usage is at
// or below targetPct of the context window. The system prompt (a leading
// system message) and the most recent exchange are never pruned. Returns the
// number of messages removed.
func (s *Session) PruneToTarget(contextWindow int, targetPct float64) int {
	if s.ContextUsage(contextWindow) <= targetPct {
		return 0
	}

	// Index of the first prunable message: skip a leading system prompt.
	start := 0
	if len(s.Messages) > 0 && s.Messages[0].Role == "system" {
		start = 1
	}

	pruned := 0
	// Remove pairs so an assistant tool call and its tool reply leave the
	// history together. Keep at least the most recent exchange.
	for s.ContextUsage(contextWindow) > targetPct && len(s.Messages) > start+3 {
		s.Messages = append(s.Messages[:start], s.Messages[start+2:]...)
		pruned += 2
	}
	return pruned
}

// CheckAndPrune prunes down to 70% when usage crosses the threshold
// percentage. Called before each API call to prevent context overflow.
func (s *Session) CheckAndPrune(contextWindow int, threshold float64) int {
	if s.ContextUsage(contextWindow) > threshold {
		return s.PruneToTarget(contextWindow, 70)
	}
	return 0
}

func sessionPath(name string) (string, error) {
	sessionDir := filepath.Join(".pilot", "sessions")
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return "", fmt.Errorf("could not create session directory: %w", err)
	}
	return filepath.Join(sessionDir, fmt.Sprintf("%s.json", name)), nil
}

// DefaultName derives a session name from the working directory and clock,
// matching the naming used for fresh CLI sessions.
func DefaultName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "pilot"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), time.Now().Format("2006-01-02_15-04-05"))
}
