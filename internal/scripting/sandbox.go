// Package scripting runs zone Lua hooks in a locked-down GopherLua VM. It
// knows nothing about the game; callers reach the world through the
// callbacks on Manager.
package scripting

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit bounds one hook call when the zone sets no budget.
const DefaultInstructionLimit = 100_000

// unsafeGlobals are base-library functions that reach the filesystem or
// load arbitrary code.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"}

// opBudget cancels itself once Done has been polled n times. The GopherLua
// main loop polls Done before every opcode when a context is attached, so n
// is an opcode count.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left--; b.left <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// NewSandboxedState returns a VM with only the base, table, string and math
// libraries, and without unsafeGlobals. The caller closes it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(L)
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// RunLimited runs fn with L capped at limit opcodes, or
// DefaultInstructionLimit when limit <= 0. Each call gets a fresh budget.
// L must not be shared with another goroutine during the call.
func RunLimited(L *lua.LState, limit int, fn func() error) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	L.SetContext(&opBudget{Context: ctx, cancel: cancel, left: int64(limit)})
	defer L.RemoveContext()
	return fn()
}
