package cwrap

import (
	"context"
	"fmt"
	"strings"
)

// Library is a loaded foreign library from which symbols can be looked up.
// The library is shared by every prototype declared against it and is never
// owned by them.
type Library interface {
	Name() string
	Lookup(name string) (Symbol, error)
}

// Symbol is a function exported by a Library.
type Symbol interface {
	Name() string

	// Prepare fixes the calling convention of the symbol and returns the
	// Invoker used for every subsequent call.
	Prepare(conv CallConv) (Invoker, error)
}

// Invoker performs one native call. Arguments in the frame are already in the
// canonical Go type of their NativeKind, and the result must be in the
// canonical Go type of the return kind (nil for void).
type Invoker interface {
	Invoke(ctx context.Context, frame *CallFrame) (any, error)
}

// CallConv is the calling convention of a resolved prototype.
type CallConv struct {
	Args   []NativeKind
	Return NativeKind
}

func (cc CallConv) String() string {
	args := make([]string, len(cc.Args))
	for i := range cc.Args {
		args[i] = cc.Args[i].String()
	}
	return fmt.Sprintf("%s(%s)", cc.Return, strings.Join(args, ", "))
}

// CallFrame holds the converted arguments of one call. Marshal types use it to
// keep Go memory referenced by a pointer argument alive until the call ends.
type CallFrame struct {
	Args []any

	keepAlive  []any
	hostMemory bool
	done       []func()
}

// KeepAlive pins v for the duration of the call.
func (cf *CallFrame) KeepAlive(v any) {
	cf.keepAlive = append(cf.keepAlive, v)
}

// MarkHostMemory records that a pointer argument refers to Go memory. Backends
// that run in a separate address space reject such frames.
func (cf *CallFrame) MarkHostMemory() {
	cf.hostMemory = true
}

// HostMemory reports whether any pointer argument refers to Go memory.
func (cf *CallFrame) HostMemory() bool {
	return cf.hostMemory
}

// Pinned returns the values kept alive for this call.
func (cf *CallFrame) Pinned() []any {
	return cf.keepAlive
}

// OnDone registers fn to run once the call and the conversion of its result
// have finished.
func (cf *CallFrame) OnDone(fn func()) {
	cf.done = append(cf.done, fn)
}

func (cf *CallFrame) finish() {
	for i := len(cf.done) - 1; i >= 0; i-- {
		cf.done[i]()
	}
	cf.done = nil
}
