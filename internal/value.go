package cwrap

import (
	"context"
	"fmt"
	"reflect"
)

// ValueType is a named wrapper around one scalar C type, for example a
// "sqrt_double" holding a C double.
type ValueType struct {
	baseType
}

// CValue is one value of a ValueType. Assigned values are truncated to the C
// width of the type.
type CValue struct {
	vt    *ValueType
	value any
}

// RegisterValueType registers a value type under name that holds values of
// kind.
func (r *Registry) RegisterValueType(name string, kind NativeKind) (*ValueType, error) {
	if !kind.IsScalar() {
		return nil, fmt.Errorf("%w: value type %s must hold a scalar kind, not %s", ErrInvalidValue, name, kind)
	}

	vt := &ValueType{baseType: baseType{name: name, kind: kind}}
	if err := r.Register(&TypeDescriptor{Name: name, Type: vt, IsReturnType: true}); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.values[name] = vt
	r.mu.Unlock()

	return vt, nil
}

func (vt *ValueType) convert(o any) (any, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: %s can not hold nil", ErrInvalidValue, vt.name)
	}

	switch reflect.ValueOf(o).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return CanonicalValue(vt.kind, o)
	}

	return nil, fmt.Errorf("%w: %s can not hold a %T", ErrInvalidValue, vt.name, o)
}

// New creates a value holding v.
func (vt *ValueType) New(v any) (*CValue, error) {
	value, err := vt.convert(v)
	if err != nil {
		return nil, err
	}
	return &CValue{vt: vt, value: value}, nil
}

func (vt *ValueType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	if cv, ok := o.(*CValue); ok && cv != nil {
		if cv.vt != vt {
			return nil, fmt.Errorf("value must be a %s, is a %s", vt.name, cv.vt.name)
		}
		return cv.value, nil
	}
	return vt.convert(o)
}

func (vt *ValueType) FromNative(ctx context.Context, raw any) (any, error) {
	value, err := CanonicalValue(vt.kind, raw)
	if err != nil {
		return nil, err
	}
	return &CValue{vt: vt, value: value}, nil
}

func (vt *ValueType) GoType() string {
	return "*cwrap.CValue"
}

// Value returns the held value in the canonical Go type of the C type.
func (cv *CValue) Value() any {
	return cv.value
}

// SetValue replaces the held value, truncating it to the C width.
func (cv *CValue) SetValue(v any) error {
	value, err := cv.vt.convert(v)
	if err != nil {
		return err
	}
	cv.value = value
	return nil
}

// Type returns the C type held by the value.
func (cv *CValue) Type() NativeKind {
	return cv.vt.kind
}

func (cv *CValue) ValueType() *ValueType {
	return cv.vt
}

func (cv *CValue) String() string {
	return fmt.Sprintf("%s(%v)", cv.vt.name, cv.value)
}
