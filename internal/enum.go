package cwrap

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EnumType is a registered C enum. Enums are passed as a C int.
type EnumType struct {
	baseType
	intHelper intType

	mu           sync.RWMutex
	valuesByName map[string]*EnumValue
	values       []*EnumValue
}

// EnumValue is one value of an EnumType. Values that native code returns
// without a registered name are unnamed.
type EnumValue struct {
	enum  *EnumType
	name  string
	value int64
	named bool
}

func (ev *EnumValue) Name() string {
	return ev.name
}

func (ev *EnumValue) Value() int64 {
	return ev.value
}

func (ev *EnumValue) Enum() *EnumType {
	return ev.enum
}

func (ev *EnumValue) IsNamed() bool {
	return ev.named
}

func (ev *EnumValue) String() string {
	return ev.name
}

// RegisterEnum registers an enum under name with the given named values.
func (r *Registry) RegisterEnum(name string, values map[string]int64) (*EnumType, error) {
	et := &EnumType{
		baseType:     baseType{name: name, kind: KindInt32},
		intHelper:    intType{baseType: baseType{name: name, kind: KindInt32}, bits: 32, signed: true},
		valuesByName: map[string]*EnumValue{},
	}

	names := make([]string, 0, len(values))
	for valueName := range values {
		names = append(names, valueName)
	}
	sort.Strings(names)

	for _, valueName := range names {
		if _, err := et.Add(valueName, values[valueName]); err != nil {
			return nil, fmt.Errorf("could not register enum %s: %w", name, err)
		}
	}

	if err := r.Register(&TypeDescriptor{Name: name, Type: et, IsReturnType: true}); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.enums[name] = et
	r.mu.Unlock()

	return et, nil
}

// Enum returns a registered enum.
func (r *Registry) Enum(name string) (*EnumType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.enums[name]
	if !ok {
		return nil, fmt.Errorf("%w: enum '%s' is not registered", ErrUnknownType, name)
	}
	return et, nil
}

// Add adds a named value to the enum.
func (et *EnumType) Add(name string, value int64) (*EnumValue, error) {
	if _, err := et.intHelper.ToNative(context.Background(), nil, value); err != nil {
		return nil, fmt.Errorf("value of %s: %w", name, err)
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	if _, ok := et.valuesByName[name]; ok {
		return nil, fmt.Errorf("enum %s already has a value named %s", et.name, name)
	}

	ev := &EnumValue{enum: et, name: name, value: value, named: true}
	et.valuesByName[name] = ev
	et.values = append(et.values, ev)
	sort.SliceStable(et.values, func(i, j int) bool {
		return et.values[i].value < et.values[j].value
	})

	return ev, nil
}

// Values returns the named values sorted by value.
func (et *EnumType) Values() []*EnumValue {
	et.mu.RLock()
	defer et.mu.RUnlock()

	values := make([]*EnumValue, len(et.values))
	copy(values, et.values)
	return values
}

// Get returns the value called name.
func (et *EnumType) Get(name string) (*EnumValue, error) {
	et.mu.RLock()
	defer et.mu.RUnlock()

	ev, ok := et.valuesByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no value named %s", ErrUnknownEnumValue, et.name, name)
	}
	return ev, nil
}

// MustGet is Get that panics on unknown names.
func (et *EnumType) MustGet(name string) *EnumValue {
	ev, err := et.Get(name)
	if err != nil {
		panic(err)
	}
	return ev
}

// FromValue returns the named value with the given value.
func (et *EnumType) FromValue(value int64) (*EnumValue, error) {
	if ev := et.resolve(value); ev != nil {
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEnumValue, value)
}

func (et *EnumType) resolve(value int64) *EnumValue {
	et.mu.RLock()
	defer et.mu.RUnlock()

	for _, ev := range et.values {
		if ev.value == value {
			return ev
		}
	}
	return nil
}

func (et *EnumType) resolveOrCreate(value int64) *EnumValue {
	if ev := et.resolve(value); ev != nil {
		return ev
	}
	return &EnumValue{
		enum:  et,
		name:  fmt.Sprintf("Unnamed '%s' enum with value: %d", et.name, value),
		value: value,
	}
}

func (et *EnumType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	ev, ok := o.(*EnumValue)
	if !ok || ev == nil {
		return nil, fmt.Errorf("value must be a value of enum %s, is %T", et.name, o)
	}
	if ev.enum != et {
		return nil, fmt.Errorf("value must be a value of enum %s, is a value of enum %s", et.name, ev.enum.name)
	}

	return et.intHelper.ToNative(ctx, frame, ev.value)
}

func (et *EnumType) FromNative(ctx context.Context, raw any) (any, error) {
	val, err := CanonicalValue(KindInt32, raw)
	if err != nil {
		return nil, err
	}

	return et.resolveOrCreate(int64(val.(int32))), nil
}

func (et *EnumType) GoType() string {
	return "*cwrap.EnumValue"
}
