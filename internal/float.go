package cwrap

import (
	"context"
	"fmt"
	"reflect"
)

type floatType struct {
	baseType
}

func (ft *floatType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	if o == nil {
		return nil, fmt.Errorf("value must be a number, is nil")
	}

	switch reflect.ValueOf(o).Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return CanonicalValue(ft.kind, o)
	}

	return nil, fmt.Errorf("value must be a number, is %T", o)
}

func (ft *floatType) FromNative(ctx context.Context, raw any) (any, error) {
	return CanonicalValue(ft.kind, raw)
}
