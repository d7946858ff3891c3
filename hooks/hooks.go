// Package hooks provides ordered, cancellable lifecycle extension points.
// Subsystems register functions against a hook kind; the agent executes the
// chain at the matching point and honors cancellation or input rewriting.
package hooks

import (
	"fmt"
	"sync"

	"github.com/MBemera/Radsim-sub001/result"
)

// Kind names a lifecycle point.
type Kind string

const (
	PreTool     Kind = "pre_tool"
	PostTool    Kind = "post_tool"
	PreAPI      Kind = "pre_api"
	PostAPI     Kind = "post_api"
	OnError     Kind = "on_error"
	PreMessage  Kind = "pre_message"
	PostMessage Kind = "post_message"
)

// Kinds lists every hook kind, in a stable order.
var Kinds = []Kind{PreTool, PostTool, PreAPI, PostAPI, OnError, PreMessage, PostMessage}

// Context is the mutable record threaded through one hook chain. It lives for
// a single event and is discarded afterwards.
type Context struct {
	Kind       Kind
	ToolName   string
	ToolInput  map[string]any
	ToolResult *result.Result
	Message    string
	Err        error
	Metadata   map[string]any

	// Control surface. A hook may cancel the pending operation or substitute
	// replacement input/message for the next stage.
	ShouldProceed   bool
	ModifiedInput   map[string]any
	ModifiedMessage string
}

// NewContext creates a context for one event with proceed defaulted to true.
func NewContext(kind Kind) *Context {
	return &Context{
		Kind:          kind,
		Metadata:      map[string]any{},
		ShouldProceed: true,
	}
}

// Func is a registered hook. Returning an error records it in the context's
// metadata without aborting the chain or the primary operation.
type Func func(*Context) error

// Registration identifies one registered hook so it can be removed later.
type Registration struct {
	kind Kind
	id   uint64
}

type entry struct {
	id uint64
	fn Func
}

// Manager holds registered hooks per kind and executes them in registration
// order. Methods are safe for concurrent use, though the agent only ever
// calls them from its single control goroutine.
type Manager struct {
	mu     sync.Mutex
	nextID uint64
	hooks  map[Kind][]entry
}

// NewManager creates an empty hooks manager.
func NewManager() *Manager {
	return &Manager{hooks: make(map[Kind][]entry)}
}

// Register appends fn to the chain for kind and returns a handle that
// Unregister accepts.
func (m *Manager) Register(kind Kind, fn Func) Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.hooks[kind] = append(m.hooks[kind], entry{id: m.nextID, fn: fn})
	return Registration{kind: kind, id: m.nextID}
}

// Unregister removes the hook identified by reg. It reports whether the hook
// was still registered; removing twice is harmless.
func (m *Manager) Unregister(reg Registration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.hooks[reg.kind]
	for i, e := range chain {
		if e.id == reg.id {
			m.hooks[reg.kind] = append(chain[:i], chain[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all hooks for kind; with an empty kind it removes everything.
func (m *Manager) Clear(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == "" {
		m.hooks = make(map[Kind][]entry)
		return
	}
	delete(m.hooks, kind)
}

// Execute runs every hook registered for kind, threading ctx through each.
// A hook that sets ShouldProceed=false short-circuits the remainder of the
// chain. A hook that fails (error or panic) has the failure recorded under
// Metadata["hook_error"] and the chain continues: hook failures never abort
// the primary operation.
func (m *Manager) Execute(kind Kind, ctx *Context) *Context {
	m.mu.Lock()
	chain := make([]entry, len(m.hooks[kind]))
	copy(chain, m.hooks[kind])
	m.mu.Unlock()

	for _, e := range chain {
		runHook(e.fn, ctx)
		if !ctx.ShouldProceed {
			break
		}
	}
	return ctx
}

func runHook(fn Func, ctx *Context) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx.Metadata["hook_error"] = fmt.Sprintf("hook panicked: %v", rec)
		}
	}()
	if err := fn(ctx); err != nil {
		ctx.Metadata["hook_error"] = err.Error()
	}
}

// Process-wide manager for subsystems that register hooks without access to
// the explicitly wired instance. Guarded for concurrent first access.
var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the shared manager, constructing it at most once even
// under concurrent first access.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}
