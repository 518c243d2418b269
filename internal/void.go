package cwrap

import (
	"context"
	"fmt"
)

type voidType struct {
	baseType
}

func (vt *voidType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	return nil, fmt.Errorf("void can not be used as an argument type")
}

func (vt *voidType) FromNative(ctx context.Context, raw any) (any, error) {
	return nil, nil
}

func (vt *voidType) GoType() string {
	return ""
}
