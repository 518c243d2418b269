package cwrap

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// SupportsReferenceConstruction is implemented by classes that embed
// ReferenceConstructible. Such classes get a "<name>_ref" return type.
type SupportsReferenceConstruction interface {
	supportsReferenceConstruction()
}

// SupportsFactoryConstruction is implemented by classes that embed
// FactoryConstructible. Such classes get a "<name>_obj" return type.
type SupportsFactoryConstruction interface {
	supportsFactoryConstruction()
}

type ReferenceConstructible struct{}

func (ReferenceConstructible) supportsReferenceConstruction() {}

type FactoryConstructible struct{}

func (FactoryConstructible) supportsFactoryConstruction() {}

// ClassType is a Go struct type registered as a wrapped native type.
type ClassType struct {
	registry   *Registry
	name       string
	goType     reflect.Type
	destructor *Prototype
	operations []*Prototype
	finalizers bool
}

type ClassOption func(ct *ClassType)

// ClassName overrides the registered type name, which defaults to the snake
// case name of the Go struct.
func ClassName(name string) ClassOption {
	return func(ct *ClassType) {
		ct.name = name
	}
}

// WithDestructor sets the prototype that frees the native object of owning
// handles. It is called with the raw pointer.
func WithDestructor(destructor *Prototype) ClassOption {
	return func(ct *ClassType) {
		ct.destructor = destructor
	}
}

// WithOperations declares the prototypes that belong to the class. They are
// resolved when the class is registered.
func WithOperations(operations ...*Prototype) ClassOption {
	return func(ct *ClassType) {
		ct.operations = append(ct.operations, operations...)
	}
}

// WithoutFinalizer disables releasing unreachable owning handles.
func WithoutFinalizer() ClassOption {
	return func(ct *ClassType) {
		ct.finalizers = false
	}
}

var (
	snakeCaseFirst  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	snakeCaseSecond = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

func snakeCase(name string) string {
	s := snakeCaseFirst.ReplaceAllString(name, "${1}_${2}")
	return strings.ToLower(snakeCaseSecond.ReplaceAllString(s, "${1}_${2}"))
}

// RegisterClass registers class, a pointer to a struct that embeds CClass,
// under its type name. It also registers "<name>_ref" and "<name>_obj" when
// the class supports reference or factory construction, and resolves the
// prototypes given with WithOperations.
func (r *Registry) RegisterClass(class any, opts ...ClassOption) (*ClassType, error) {
	if _, ok := class.(Handle); !ok {
		return nil, fmt.Errorf("could not register class with type %T, it does not embed cwrap.CClass", class)
	}

	reflectClassType := reflect.TypeOf(class)
	if reflectClassType.Kind() != reflect.Pointer || reflectClassType.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("could not register class with type %T, given value should be a pointer to a struct", class)
	}

	field, ok := reflectClassType.Elem().FieldByName("CClass")
	if !ok || !field.Anonymous || field.Type != reflect.TypeOf(CClass{}) {
		return nil, fmt.Errorf("could not register class with type %T, it does not embed cwrap.CClass by value", class)
	}

	ct := &ClassType{
		registry:   r,
		name:       snakeCase(reflectClassType.Elem().Name()),
		goType:     reflectClassType.Elem(),
		finalizers: r.config.finalizers,
	}
	for i := range opts {
		opts[i](ct)
	}

	r.mu.RLock()
	existing, ok := r.classes[reflectClassType]
	r.mu.RUnlock()
	if ok {
		return nil, fmt.Errorf("%w: could not register class %s, %T is already registered as %s", ErrDuplicateKey, ct.name, class, existing.name)
	}

	descriptors := []*TypeDescriptor{{
		Name:    ct.name,
		Type:    &classMarshalType{baseType: baseType{name: ct.name, kind: KindPointer}, class: ct},
		Storage: KindPointer,
	}}
	if _, ok := class.(SupportsReferenceConstruction); ok {
		name := ct.name + "_ref"
		descriptors = append(descriptors, &TypeDescriptor{
			Name:         name,
			Type:         &classMarshalType{baseType: baseType{name: name, kind: KindPointer}, class: ct, ownership: Referencing, factory: true},
			IsReturnType: true,
			Storage:      KindPointer,
		})
	}
	if _, ok := class.(SupportsFactoryConstruction); ok {
		name := ct.name + "_obj"
		descriptors = append(descriptors, &TypeDescriptor{
			Name:         name,
			Type:         &classMarshalType{baseType: baseType{name: name, kind: KindPointer}, class: ct, ownership: Owning, factory: true},
			IsReturnType: true,
			Storage:      KindPointer,
		})
	}

	for i := range descriptors {
		if err := r.Register(descriptors[i]); err != nil {
			return nil, fmt.Errorf("could not register class %s: %w", ct.name, err)
		}
	}

	r.mu.Lock()
	r.classes[reflectClassType] = ct
	r.mu.Unlock()

	var errs []error
	if ct.destructor != nil {
		if _, err := ct.destructor.Resolve(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, operation := range ct.operations {
		if _, err := operation.Resolve(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ct, fmt.Errorf("could not resolve operations of class %s: %w", ct.name, errors.Join(errs...))
	}

	return ct, nil
}

// ClassOf returns the registered class of a handle type.
func (r *Registry) ClassOf(class any) (*ClassType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.classes[reflect.TypeOf(class)]
	return ct, ok
}

func (ct *ClassType) Name() string {
	return ct.name
}

func (ct *ClassType) GoType() reflect.Type {
	return reflect.PointerTo(ct.goType)
}

func (ct *ClassType) Operations() []*Prototype {
	return ct.operations
}

// New wraps ptr in an owning handle. The native object is freed when the
// handle is released.
func (ct *ClassType) New(ptr uintptr) (Handle, error) {
	return ct.newInstance(ptr, Owning, nil)
}

// NewReference wraps ptr in a referencing handle that keeps parent alive.
func (ct *ClassType) NewReference(ptr uintptr, parent any) (Handle, error) {
	return ct.newInstance(ptr, Referencing, parent)
}

// Init initializes a handle created by user code, for example in a
// constructor function.
func (ct *ClassType) Init(h Handle, ptr uintptr, opts ...HandleOption) error {
	if reflect.TypeOf(h) != ct.GoType() {
		return fmt.Errorf("could not initialize %T as class %s", h, ct.name)
	}
	if err := InitCClass(h, ptr, opts...); err != nil {
		return err
	}
	h.cClass().class = ct
	ct.setFinalizer(h)
	return nil
}

func (ct *ClassType) newInstance(ptr uintptr, ownership Ownership, parent any) (Handle, error) {
	if ptr == 0 {
		return nil, fmt.Errorf("%w: can not create %s from a null pointer", ErrInvalidHandle, ct.name)
	}

	newElem := reflect.New(ct.goType)
	c := newElem.Elem().FieldByName("CClass").Addr().Interface().(*CClass)
	c.ptr = ptr
	c.ownership = ownership
	c.parent = parent
	c.class = ct
	c.initialized = true

	h := newElem.Interface().(Handle)
	ct.setFinalizer(h)

	return h, nil
}

// setFinalizer queues unreachable owning handles for release. The destructor
// itself runs later on a caller goroutine, see Registry.ReleasePending.
func (ct *ClassType) setFinalizer(h Handle) {
	if !ct.finalizers || ct.destructor == nil || h.IsReference() {
		return
	}

	registry := ct.registry
	runtime.SetFinalizer(h, func(h Handle) {
		registry.enqueueRelease(h)
	})
}

// Wrap wraps ptr in an owning handle of type T.
func Wrap[T Handle](ct *ClassType, ptr uintptr) (T, error) {
	var zero T
	h, err := ct.New(ptr)
	if err != nil {
		return zero, err
	}
	typed, ok := h.(T)
	if !ok {
		return zero, fmt.Errorf("class %s creates %T, not %T", ct.name, h, zero)
	}
	return typed, nil
}

// WrapReference wraps ptr in a referencing handle of type T.
func WrapReference[T Handle](ct *ClassType, ptr uintptr, parent any) (T, error) {
	var zero T
	h, err := ct.NewReference(ptr, parent)
	if err != nil {
		return zero, err
	}
	typed, ok := h.(T)
	if !ok {
		return zero, fmt.Errorf("class %s creates %T, not %T", ct.name, h, zero)
	}
	return typed, nil
}

// classMarshalType passes handles of a class as their raw pointer. The _ref
// and _obj variants also build handles from returned pointers.
type classMarshalType struct {
	baseType
	class     *ClassType
	ownership Ownership
	factory   bool
}

func (cmt *classMarshalType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	switch v := o.(type) {
	case nil:
		return uintptr(0), nil
	case uintptr:
		return v, nil
	case Handle:
		if isNilHandle(v) {
			return uintptr(0), nil
		}
		if reflect.TypeOf(v) != cmt.class.GoType() {
			return nil, fmt.Errorf("value must be of type %s, is %T", cmt.class.GoType(), o)
		}
		return v.Pointer()
	}

	return nil, fmt.Errorf("value must be of type %s, is %T", cmt.class.GoType(), o)
}

func (cmt *classMarshalType) FromNative(ctx context.Context, raw any) (any, error) {
	if !cmt.factory {
		return nil, fmt.Errorf("%s can not be used as a return type", cmt.name)
	}

	ptr, err := CanonicalValue(KindPointer, raw)
	if err != nil {
		return nil, err
	}
	if ptr.(uintptr) == 0 {
		return nil, nil
	}

	return cmt.class.newInstance(ptr.(uintptr), cmt.ownership, nil)
}

func (cmt *classMarshalType) GoType() string {
	return cmt.class.GoType().String()
}
