package hooks

import (
	"testing"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/stretchr/testify/assert"
)

func TestExecute_RunsInRegistrationOrder(t *testing.T) {
	m := NewManager()
	var order []int
	m.Register(PreTool, func(ctx *Context) error { order = append(order, 1); return nil })
	m.Register(PreTool, func(ctx *Context) error { order = append(order, 2); return nil })
	m.Register(PreTool, func(ctx *Context) error { order = append(order, 3); return nil })

	m.Execute(PreTool, NewContext(PreTool))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestExecute_CancellationShortCircuits(t *testing.T) {
	m := NewManager()
	var secondRan bool
	m.Register(PreTool, func(ctx *Context) error {
		ctx.ShouldProceed = false
		return nil
	})
	m.Register(PreTool, func(ctx *Context) error {
		secondRan = true
		return nil
	})

	ctx := m.Execute(PreTool, NewContext(PreTool))
	assert.False(t, ctx.ShouldProceed)
	assert.False(t, secondRan, "hooks after a cancellation must not run")
}

func TestExecute_ErrorIsolated(t *testing.T) {
	m := NewManager()
	var laterRan bool
	m.Register(PostTool, func(ctx *Context) error {
		return errors.New("hook exploded")
	})
	m.Register(PostTool, func(ctx *Context) error {
		laterRan = true
		return nil
	})

	ctx := m.Execute(PostTool, NewContext(PostTool))
	assert.True(t, laterRan, "a failing hook must not stop the chain")
	assert.Contains(t, ctx.Metadata["hook_error"], "hook exploded")
	assert.True(t, ctx.ShouldProceed)
}

func TestExecute_PanicIsolated(t *testing.T) {
	m := NewManager()
	var laterRan bool
	m.Register(OnError, func(ctx *Context) error {
		panic("kaboom")
	})
	m.Register(OnError, func(ctx *Context) error {
		laterRan = true
		return nil
	})

	ctx := m.Execute(OnError, NewContext(OnError))
	assert.True(t, laterRan)
	assert.Contains(t, ctx.Metadata["hook_error"], "kaboom")
}

func TestExecute_ModifiedMessageThreads(t *testing.T) {
	m := NewManager()
	m.Register(PreMessage, func(ctx *Context) error {
		ctx.ModifiedMessage = ctx.Message + " [annotated]"
		return nil
	})
	m.Register(PreMessage, func(ctx *Context) error {
		// The second hook observes the first hook's mutation.
		assert.Contains(t, ctx.ModifiedMessage, "[annotated]")
		return nil
	})

	ctx := NewContext(PreMessage)
	ctx.Message = "hello"
	m.Execute(PreMessage, ctx)
	assert.Equal(t, "hello [annotated]", ctx.ModifiedMessage)
}

func TestExecute_NoHooksRegistered(t *testing.T) {
	m := NewManager()
	ctx := m.Execute(PreAPI, NewContext(PreAPI))
	assert.True(t, ctx.ShouldProceed)
}

func TestUnregister(t *testing.T) {
	m := NewManager()
	var order []int
	m.Register(PreTool, func(ctx *Context) error { order = append(order, 1); return nil })
	reg := m.Register(PreTool, func(ctx *Context) error { order = append(order, 2); return nil })
	m.Register(PreTool, func(ctx *Context) error { order = append(order, 3); return nil })

	assert.True(t, m.Unregister(reg))
	m.Execute(PreTool, NewContext(PreTool))
	assert.Equal(t, []int{1, 3}, order)

	// A second removal of the same handle is a no-op.
	assert.False(t, m.Unregister(reg))
}

func TestClear(t *testing.T) {
	m := NewManager()
	var ran bool
	m.Register(PreTool, func(ctx *Context) error { ran = true; return nil })
	m.Register(PostAPI, func(ctx *Context) error { ran = true; return nil })

	m.Clear(PreTool)
	m.Execute(PreTool, NewContext(PreTool))
	assert.False(t, ran)

	m.Clear("")
	m.Execute(PostAPI, NewContext(PostAPI))
	assert.False(t, ran)
}

func TestDefault_SingleInstance(t *testing.T) {
	assert.Same(t, Default(), Default())
}
