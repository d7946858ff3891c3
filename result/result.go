// Package result defines the uniform envelope every tool invocation returns.
// The conversation loop and the audit logger depend on this shape and nothing
// else about a tool's output.
package result

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Result is the universal outcome of one tool execution.
type Result struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Duration time.Duration  `json:"-"`
}

// OK creates a successful result.
func OK(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Data: data}
}

// Fail creates a failed result. data may be nil.
func Fail(errMsg string, data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: false, Error: errMsg, Data: data}
}

// FromLegacy coerces an ad hoc success/error map into a Result. The
// "success" and "error" keys are lifted into the envelope; everything else
// lands in Data.
func FromLegacy(legacy map[string]any) Result {
	success, _ := legacy["success"].(bool)
	errMsg, _ := legacy["error"].(string)

	data := make(map[string]any, len(legacy))
	for k, v := range legacy {
		if k == "success" || k == "error" {
			continue
		}
		data[k] = v
	}
	return Result{Success: success, Error: errMsg, Data: data}
}

// String renders the envelope as JSON for the model's tool-result message.
func (r Result) String() string {
	out := map[string]any{
		"success": r.Success,
		"data":    r.Data,
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"unserializable result: %v"}`, err)
	}
	return string(b)
}

// ToolFunc is the signature concrete tools expose to the loop.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Wrap adapts a tool function into a total function that always produces a
// Result: it measures duration and converts returned errors and panics into a
// failed envelope. Tools never propagate raw failures to the loop.
func Wrap(toolName string, fn ToolFunc) func(ctx context.Context, args map[string]any) Result {
	return func(ctx context.Context, args map[string]any) (res Result) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				res = Fail(fmt.Sprintf("tool panicked: %v", rec), nil)
			}
			res.ToolName = toolName
			res.Duration = time.Since(start)
		}()

		output, err := fn(ctx, args)
		if err != nil {
			return Fail(err.Error(), nil)
		}
		return OK(map[string]any{"output": output})
	}
}
