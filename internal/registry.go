package cwrap

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps type names used in prototype declarations to their
// TypeDescriptor. Registration is expected to happen during single threaded
// initialization; entries are never removed.
type Registry struct {
	config *Config
	logger *zap.Logger

	mu         sync.RWMutex
	types      map[string]*TypeDescriptor
	classes    map[reflect.Type]*ClassType
	enums      map[string]*EnumType
	values     map[string]*ValueType
	prototypes []*Prototype
	objects    *objectTable

	pendingMu sync.Mutex
	pending   []Handle
}

// NewRegistry creates a registry that holds all built-in type keys.
func NewRegistry(config *Config) *Registry {
	if config == nil {
		config = NewConfig()
	}

	r := &Registry{
		config:  config,
		logger:  config.getLogger(),
		types:   map[string]*TypeDescriptor{},
		classes: map[reflect.Type]*ClassType{},
		enums:   map[string]*EnumType{},
		values:  map[string]*ValueType{},
		objects: newObjectTable(),
	}

	for _, t := range r.builtinTypes() {
		if err := r.Register(&TypeDescriptor{Name: t.Name(), Type: t, IsReturnType: true}); err != nil {
			panic(fmt.Errorf("could not register built-in type: %w", err))
		}
	}

	return r
}

func (r *Registry) builtinTypes() []MarshalType {
	scalar := func(name string, kind NativeKind) *baseType {
		return &baseType{name: name, kind: kind}
	}
	ptr := func(name string, elem NativeKind) MarshalType {
		return &pointerType{baseType: baseType{name: name, kind: KindPointer}, elem: elem}
	}

	return []MarshalType{
		&voidType{baseType: *scalar("void", KindVoid)},
		ptr("void*", KindVoid),
		&intType{baseType: *scalar("uint", KindUint32), bits: 32},
		ptr("uint*", KindUint32),
		&intType{baseType: *scalar("int", KindInt32), bits: 32, signed: true},
		ptr("int*", KindInt32),
		&intType{baseType: *scalar("int64", KindInt64), bits: 64, signed: true},
		ptr("int64*", KindInt64),
		&intType{baseType: *scalar("size_t", KindSizeT), bits: 64},
		ptr("size_t*", KindSizeT),
		&boolType{baseType: *scalar("bool", KindBool)},
		ptr("bool*", KindBool),
		&intType{baseType: *scalar("long", KindLong), bits: 64, signed: true},
		ptr("long*", KindLong),
		&intType{baseType: *scalar("char", KindChar), bits: 8, signed: true},
		&cStringType{baseType: *scalar("char*", KindCString), config: r.config},
		&stringArrayType{baseType: *scalar("char**", KindPointer), config: r.config},
		&floatType{baseType: *scalar("float", KindFloat32)},
		ptr("float*", KindFloat32),
		&floatType{baseType: *scalar("double", KindFloat64)},
		ptr("double*", KindFloat64),
		&objectType{baseType: *scalar("py_object", KindPointer), objects: r.objects},
	}
}

// Register adds desc under desc.Name.
func (r *Registry) Register(desc *TypeDescriptor) error {
	if desc == nil || desc.Type == nil {
		return fmt.Errorf("could not register type: descriptor has no marshal type")
	}
	if desc.Name == "" {
		return fmt.Errorf("could not register type: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[desc.Name]; ok {
		return fmt.Errorf("%w: cannot register type '%s' twice", ErrDuplicateKey, desc.Name)
	}

	r.types[desc.Name] = desc
	r.logger.Debug("registered type",
		zap.String("name", desc.Name),
		zap.Stringer("kind", desc.returnKind()),
		zap.Bool("return_type", desc.IsReturnType))

	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: type '%s' is not registered", ErrUnknownType, name)
	}

	return desc, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Types returns all registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Prototypes returns every prototype declared against this registry in
// declaration order.
func (r *Registry) Prototypes() []*Prototype {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prototypes := make([]*Prototype, len(r.prototypes))
	copy(prototypes, r.prototypes)
	return prototypes
}

func (r *Registry) addPrototype(p *Prototype) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prototypes = append(r.prototypes, p)
}

// RetainObject keeps value alive as a py_object beyond a single call, for
// native code that stores it. It returns the id native code sees. Every
// retain needs a matching ReleaseObject.
func (r *Registry) RetainObject(value any) uintptr {
	return r.objects.toHandle(value)
}

// ReleaseObject drops one reference taken with RetainObject.
func (r *Registry) ReleaseObject(value any) error {
	return r.objects.release(value)
}

func (r *Registry) enqueueRelease(h Handle) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending = append(r.pending, h)
}

// PendingReleases returns the number of unreachable owning handles that wait
// for their destructor.
func (r *Registry) PendingReleases() int {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return len(r.pending)
}

// ReleasePending runs the destructor of every owning handle the garbage
// collector found unreachable. Every prototype call of this registry does this
// first, so destructors only run on goroutines that call into the library.
func (r *Registry) ReleasePending(ctx context.Context) error {
	r.pendingMu.Lock()
	pending := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	var errs []error
	for i := range pending {
		if err := pending[i].Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Logger returns the logger of this registry.
func (r *Registry) Logger() *zap.Logger {
	return r.logger
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(NewConfig())
	})
	return defaultRegistry
}
