package cwrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is the resolution state of a Prototype.
type State int

const (
	StateUnresolved State = iota
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	}
	return "unresolved"
}

type resolution interface {
	state() State
}

type unresolved struct{}

func (unresolved) state() State { return StateUnresolved }

type resolved struct {
	conv       CallConv
	invoker    Invoker
	argTypes   []*TypeDescriptor
	returnType *TypeDescriptor
	hook       ResultHook
}

func (*resolved) state() State { return StateResolved }

type failed struct {
	cause error

	// err is returned again by Resolve, nil for soft failures.
	err error
}

func (*failed) state() State { return StateFailed }

// Callable is anything that can be invoked with Go arguments.
type Callable interface {
	Call(ctx context.Context, args ...any) (any, error)
}

// Prototype is one C function declared by its textual signature against a
// Library. It resolves lazily on first use, at most once.
type Prototype struct {
	registry           *Registry
	lib                Library
	text               string
	signature          *Signature
	bind               bool
	allowMissingSymbol bool

	mu         sync.Mutex
	resolution resolution
}

type PrototypeOption func(p *Prototype)

// Bind makes the prototype a method: the owning object is passed as the
// first argument.
func Bind() PrototypeOption {
	return func(p *Prototype) {
		p.bind = true
	}
}

// AllowMissingSymbol degrades a missing native symbol into a failed
// resolution instead of an error. Calling the prototype still fails.
func AllowMissingSymbol() PrototypeOption {
	return func(p *Prototype) {
		p.allowMissingSymbol = true
	}
}

// NewPrototype parses text and declares it against lib. A nil registry means
// the Default registry.
func NewPrototype(registry *Registry, lib Library, text string, opts ...PrototypeOption) (*Prototype, error) {
	if registry == nil {
		registry = Default()
	}
	if lib == nil {
		return nil, fmt.Errorf("could not declare %q: no library", text)
	}

	signature, err := ParseSignature(text)
	if err != nil {
		return nil, err
	}

	p := &Prototype{
		registry:   registry,
		lib:        lib,
		text:       text,
		signature:  signature,
		resolution: unresolved{},
	}
	for i := range opts {
		opts[i](p)
	}

	registry.addPrototype(p)

	return p, nil
}

// MustPrototype is NewPrototype that panics on a malformed signature.
func MustPrototype(registry *Registry, lib Library, text string, opts ...PrototypeOption) *Prototype {
	p, err := NewPrototype(registry, lib, text, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prototype) Name() string {
	return p.signature.Name
}

func (p *Prototype) Signature() *Signature {
	return p.signature
}

func (p *Prototype) Library() Library {
	return p.lib
}

func (p *Prototype) IsBound() bool {
	return p.bind
}

// State returns the current resolution state without resolving.
func (p *Prototype) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolution.state()
}

func (p *Prototype) String() string {
	bound := ""
	if p.bind {
		bound = ", bind=true"
	}
	return fmt.Sprintf("Prototype(%q%s)", p.text, bound)
}

// Resolve binds the prototype to its native symbol. It runs at most once;
// later calls return the state reached by the first one.
func (p *Prototype) Resolve() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r := p.resolution.(type) {
	case *resolved:
		return StateResolved, nil
	case *failed:
		return StateFailed, r.err
	}

	p.resolution = p.resolve()
	if f, ok := p.resolution.(*failed); ok {
		return StateFailed, f.err
	}
	return StateResolved, nil
}

func (p *Prototype) hardFailure(err error) *failed {
	return &failed{cause: err, err: err}
}

func (p *Prototype) resolve() resolution {
	logger := p.registry.logger.With(zap.String("prototype", p.text))
	sig := p.signature

	symbol, err := p.lib.Lookup(sig.Name)
	if err != nil {
		if !errors.Is(err, ErrSymbolNotFound) {
			err = fmt.Errorf("%w: %w", ErrSymbolNotFound, err)
		}
		err = fmt.Errorf("can not find function: %s in library: %s: %w", sig.Name, p.lib.Name(), err)
		if p.allowMissingSymbol {
			logger.Debug("native symbol missing, prototype left unresolved", zap.String("library", p.lib.Name()))
			return &failed{cause: err}
		}
		return p.hardFailure(err)
	}

	returnType, err := p.registry.Lookup(sig.ReturnType)
	if err != nil || !returnType.IsReturnType {
		fields := []zap.Field{zap.String("return_type", sig.ReturnType)}
		if returnType != nil {
			if _, ok := returnType.Type.(*classMarshalType); ok {
				fields = append(fields, zap.String("hint", fmt.Sprintf("correct type may be: %s_ref or %s_obj", sig.ReturnType, sig.ReturnType)))
			}
		}
		logger.Warn("the type used as return type is not registered as a return type", fields...)

		cause := fmt.Errorf("the type used as return type: %s is not registered as a return type", sig.ReturnType)
		if err != nil {
			cause = fmt.Errorf("%s: %w", cause, err)
		}
		return &failed{cause: cause}
	}

	params := sig.Params
	if len(params) == 1 && params[0] == "void" {
		params = nil
	}

	argTypes := make([]*TypeDescriptor, len(params))
	conv := CallConv{
		Args:   make([]NativeKind, len(params)),
		Return: returnType.returnKind(),
	}
	for i := range params {
		argType, err := p.registry.Lookup(params[i])
		if err != nil {
			return p.hardFailure(fmt.Errorf("could not resolve parameter %d of %s: %w", i, sig.Name, err))
		}
		if argType.Type.NativeKind() == KindVoid {
			return p.hardFailure(fmt.Errorf("could not resolve parameter %d of %s: %w: void can only be the sole parameter", i, sig.Name, ErrUnknownType))
		}
		argTypes[i] = argType
		conv.Args[i] = argType.Type.NativeKind()
	}

	invoker, err := symbol.Prepare(conv)
	if err != nil {
		return p.hardFailure(fmt.Errorf("could not prepare %s with calling convention %s: %w", sig.Name, conv, err))
	}

	logger.Debug("resolved prototype", zap.Stringer("conv", conv))

	return &resolved{
		conv:       conv,
		invoker:    invoker,
		argTypes:   argTypes,
		returnType: returnType,
		hook:       returnType.resultHook(),
	}
}

func (p *Prototype) resolvedOrErr() (*resolved, error) {
	// Errors from Resolve are captured in the failed state.
	_, _ = p.Resolve()

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r := p.resolution.(type) {
	case *resolved:
		return r, nil
	case *failed:
		if p.allowMissingSymbol {
			return nil, fmt.Errorf("%w: function %s has not been properly resolved: %w", ErrUnresolvedOperation, p.signature.Name, r.cause)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnresolvedOperation, r.cause)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnresolvedOperation, p.text)
}

// Call invokes the native function with args.
func (p *Prototype) Call(ctx context.Context, args ...any) (any, error) {
	r, err := p.resolvedOrErr()
	if err != nil {
		return nil, err
	}

	if err := p.registry.ReleasePending(ctx); err != nil {
		p.registry.logger.Warn("could not release unreachable handles", zap.Error(err))
	}

	return p.invoke(ctx, r, args)
}

// CallMethod invokes the native function with self as the first argument.
func (p *Prototype) CallMethod(ctx context.Context, self any, args ...any) (any, error) {
	return p.Call(ctx, append([]any{self}, args...)...)
}

// Get returns the prototype as seen from owner: a method bound to owner when
// the prototype was declared with Bind, the prototype itself otherwise.
func (p *Prototype) Get(owner any) Callable {
	// Errors from Resolve surface on the first call.
	_, _ = p.Resolve()

	if p.bind && owner != nil {
		return &boundMethod{prototype: p, self: owner}
	}
	return p
}

type boundMethod struct {
	prototype *Prototype
	self      any
}

func (bm *boundMethod) Call(ctx context.Context, args ...any) (any, error) {
	return bm.prototype.CallMethod(ctx, bm.self, args...)
}

func (bm *boundMethod) String() string {
	return fmt.Sprintf("bound method %s of %T", bm.prototype, bm.self)
}
