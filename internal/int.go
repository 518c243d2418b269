package cwrap

import (
	"context"
	"fmt"
	"math"
	"reflect"
)

type intType struct {
	baseType
	bits   int
	signed bool
}

func (it *intType) minSigned() int64 {
	return int64(-1) << (it.bits - 1)
}

func (it *intType) maxSigned() uint64 {
	return uint64(1)<<(it.bits-1) - 1
}

func (it *intType) maxUnsigned() uint64 {
	if it.bits == 64 {
		return math.MaxUint64
	}
	return uint64(1)<<it.bits - 1
}

func (it *intType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	if o == nil {
		return nil, fmt.Errorf("value must be an integer, is nil")
	}

	v := reflect.ValueOf(o)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if it.signed {
			if i < it.minSigned() || (i > 0 && uint64(i) > it.maxSigned()) {
				return nil, fmt.Errorf("value %d out of range for %d bit signed integer", i, it.bits)
			}
			return CanonicalValue(it.kind, i)
		}
		if i < 0 {
			return nil, fmt.Errorf("value %d out of range for %d bit unsigned integer", i, it.bits)
		}
		if uint64(i) > it.maxUnsigned() {
			return nil, fmt.Errorf("value %d out of range for %d bit unsigned integer", i, it.bits)
		}
		return CanonicalValue(it.kind, i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if it.signed && u > it.maxSigned() {
			return nil, fmt.Errorf("value %d out of range for %d bit signed integer", u, it.bits)
		}
		if !it.signed && u > it.maxUnsigned() {
			return nil, fmt.Errorf("value %d out of range for %d bit unsigned integer", u, it.bits)
		}
		return CanonicalValue(it.kind, u)
	}

	return nil, fmt.Errorf("value must be an integer, is %T", o)
}

func (it *intType) FromNative(ctx context.Context, raw any) (any, error) {
	return CanonicalValue(it.kind, raw)
}

// CanonicalValue converts a Go number to the canonical Go type of kind.
// Integers are truncated to the C width of the kind the way a C cast does.
func CanonicalValue(kind NativeKind, o any) (any, error) {
	if o == nil {
		return nil, fmt.Errorf("can not convert nil to %s", kind)
	}

	var (
		i       int64
		f       float64
		isFloat bool
	)

	v := reflect.ValueOf(o)
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			i = 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i = int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		f = v.Float()
		i = int64(f)
		isFloat = true
	default:
		return nil, fmt.Errorf("can not convert %T to %s", o, kind)
	}

	if !isFloat {
		f = float64(i)
		if v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr {
			f = float64(v.Uint())
		}
	}

	switch kind {
	case KindBool:
		return i != 0 || (isFloat && f != 0), nil
	case KindChar:
		return int8(i), nil
	case KindUint8:
		return uint8(i), nil
	case KindInt32:
		return int32(i), nil
	case KindUint32:
		return uint32(i), nil
	case KindInt64, KindLong:
		return i, nil
	case KindUint64, KindSizeT:
		return uint64(i), nil
	case KindFloat32:
		return float32(f), nil
	case KindFloat64:
		return f, nil
	case KindPointer:
		return uintptr(i), nil
	}

	return nil, fmt.Errorf("%s is not a scalar kind", kind)
}
