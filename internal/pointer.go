package cwrap

import (
	"context"
	"fmt"
	"reflect"
	"unsafe"
)

// pointerType is the marshal type of every "T*" key. Go pointers and slices
// are passed by address and pinned for the duration of the call.
type pointerType struct {
	baseType
	elem NativeKind
}

func (pt *pointerType) accepts(t reflect.Type) bool {
	if pt.elem == KindVoid {
		return true
	}
	want := pt.elem.GoType()
	if want == nil {
		return false
	}
	return t.Kind() == want.Kind() && t.Size() == want.Size()
}

func (pt *pointerType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	switch v := o.(type) {
	case nil:
		return uintptr(0), nil
	case uintptr:
		return v, nil
	case unsafe.Pointer:
		frame.KeepAlive(v)
		frame.MarkHostMemory()
		return uintptr(v), nil
	case Handle:
		if isNilHandle(v) {
			return uintptr(0), nil
		}
		return v.Pointer()
	}

	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return uintptr(0), nil
		}
		if !pt.accepts(rv.Type().Elem()) {
			return nil, fmt.Errorf("value must be a pointer to %s, is %T", pt.elem, o)
		}
		frame.KeepAlive(o)
		frame.MarkHostMemory()
		return uintptr(rv.UnsafePointer()), nil
	case reflect.Slice:
		if rv.Len() == 0 {
			return uintptr(0), nil
		}
		if !pt.accepts(rv.Type().Elem()) {
			return nil, fmt.Errorf("value must be a slice of %s, is %T", pt.elem, o)
		}
		frame.KeepAlive(o)
		frame.MarkHostMemory()
		return uintptr(rv.Index(0).Addr().UnsafePointer()), nil
	}

	return nil, fmt.Errorf("value must be a pointer, is %T", o)
}

func (pt *pointerType) FromNative(ctx context.Context, raw any) (any, error) {
	return CanonicalValue(KindPointer, raw)
}

func (pt *pointerType) GoType() string {
	if pt.elem == KindVoid {
		return "uintptr"
	}
	if t := pt.elem.GoType(); t != nil {
		return "*" + t.String()
	}
	return "uintptr"
}

// stringArrayType is the "char**" key: a NULL terminated array of C strings.
type stringArrayType struct {
	baseType
	config *Config
}

func (st *stringArrayType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	switch v := o.(type) {
	case nil:
		return uintptr(0), nil
	case uintptr:
		return v, nil
	case []string:
		ptrs := make([]uintptr, len(v)+1)
		for i := range v {
			encoded, err := encodeCString(st.config.textEncoding, v[i])
			if err != nil {
				return nil, fmt.Errorf("could not encode string %d: %w", i, err)
			}
			encoded = append(encoded, 0)
			frame.KeepAlive(encoded)
			ptrs[i] = uintptr(unsafe.Pointer(&encoded[0]))
		}
		frame.KeepAlive(ptrs)
		frame.MarkHostMemory()
		return uintptr(unsafe.Pointer(&ptrs[0])), nil
	}

	return nil, fmt.Errorf("value must be of type []string, is %T", o)
}

func (st *stringArrayType) FromNative(ctx context.Context, raw any) (any, error) {
	return CanonicalValue(KindPointer, raw)
}

func (st *stringArrayType) GoType() string {
	return "[]string"
}
