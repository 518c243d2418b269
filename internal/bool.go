package cwrap

import (
	"context"
	"fmt"
	"reflect"
)

type boolType struct {
	baseType
}

func (bt *boolType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	if o == nil {
		return nil, fmt.Errorf("value must be of type bool, is nil")
	}

	switch reflect.ValueOf(o).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return CanonicalValue(KindBool, o)
	}

	return nil, fmt.Errorf("value must be of type bool, is %T", o)
}

func (bt *boolType) FromNative(ctx context.Context, raw any) (any, error) {
	// Some ABIs hand back an integer in place of a bool.
	return CanonicalValue(KindBool, raw)
}
