package cwrap

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"
)

// NativeKind is the calling-convention level representation of a value that
// crosses the foreign boundary.
type NativeKind int

const (
	KindNone NativeKind = iota
	KindVoid
	KindBool
	KindChar
	KindUint8
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindLong
	KindSizeT
	KindFloat32
	KindFloat64
	KindPointer
	KindCString
)

var kindNames = map[NativeKind]string{
	KindNone:    "none",
	KindVoid:    "void",
	KindBool:    "bool",
	KindChar:    "char",
	KindUint8:   "uint8",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindLong:    "long",
	KindSizeT:   "size_t",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindPointer: "pointer",
	KindCString: "cstring",
}

func (k NativeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// GoType returns the canonical Go type used for values of this kind inside a
// CallFrame and for raw results returned by an Invoker. C long is treated as
// 64 bit (LP64).
func (k NativeKind) GoType() reflect.Type {
	switch k {
	case KindBool:
		return reflect.TypeOf(false)
	case KindChar:
		return reflect.TypeOf(int8(0))
	case KindUint8:
		return reflect.TypeOf(uint8(0))
	case KindInt32:
		return reflect.TypeOf(int32(0))
	case KindUint32:
		return reflect.TypeOf(uint32(0))
	case KindInt64, KindLong:
		return reflect.TypeOf(int64(0))
	case KindUint64, KindSizeT:
		return reflect.TypeOf(uint64(0))
	case KindFloat32:
		return reflect.TypeOf(float32(0))
	case KindFloat64:
		return reflect.TypeOf(float64(0))
	case KindPointer:
		return reflect.TypeOf(uintptr(0))
	case KindCString:
		return reflect.TypeOf([]byte(nil))
	}
	return nil
}

// ValueType returns the preferred WebAssembly value type for this kind on a
// wasm32 target.
func (k NativeKind) ValueType() api.ValueType {
	switch k {
	case KindInt64, KindUint64:
		return api.ValueTypeI64
	case KindFloat32:
		return api.ValueTypeF32
	case KindFloat64:
		return api.ValueTypeF64
	}
	return api.ValueTypeI32
}

// IsScalar reports whether the kind holds a number or a bool.
func (k NativeKind) IsScalar() bool {
	switch k {
	case KindBool, KindChar, KindUint8, KindInt32, KindUint32, KindInt64, KindUint64, KindLong, KindSizeT, KindFloat32, KindFloat64:
		return true
	}
	return false
}

// ResultHook post-processes the raw result of a native call.
type ResultHook func(ctx context.Context, raw any) (any, error)

// MarshalType converts Go values into the canonical native value of its kind
// and raw results back into Go values. For wrapped-object types FromNative is
// the factory that builds the object from a raw pointer.
type MarshalType interface {
	Name() string
	NativeKind() NativeKind
	GoType() string
	ToNative(ctx context.Context, frame *CallFrame, o any) (any, error)
	FromNative(ctx context.Context, raw any) (any, error)
}

// TypeDescriptor is what the Registry stores under a type name.
type TypeDescriptor struct {
	Name         string
	Type         MarshalType
	IsReturnType bool

	// Storage overrides the raw return representation, KindNone when unset.
	Storage NativeKind

	ResultHook ResultHook
}

// returnKind is the kind a native call with this return type actually produces.
func (td *TypeDescriptor) returnKind() NativeKind {
	if td.Storage != KindNone {
		return td.Storage
	}
	return td.Type.NativeKind()
}

func (td *TypeDescriptor) resultHook() ResultHook {
	if td.ResultHook != nil {
		return td.ResultHook
	}
	return td.Type.FromNative
}

type baseType struct {
	name string
	kind NativeKind
}

func (bt *baseType) Name() string {
	return bt.name
}

func (bt *baseType) NativeKind() NativeKind {
	return bt.kind
}

func (bt *baseType) GoType() string {
	if t := bt.kind.GoType(); t != nil {
		return t.String()
	}
	return ""
}
