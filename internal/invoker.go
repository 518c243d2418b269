package cwrap

import (
	"context"
	"fmt"
	"reflect"
)

func (p *Prototype) invoke(ctx context.Context, r *resolved, arguments []any) (any, error) {
	if len(arguments) != len(r.argTypes) {
		return nil, fmt.Errorf("%w: function %s called with %d argument(s), expected %d arg(s)", ErrArgumentCount, p.signature.Name, len(arguments), len(r.argTypes))
	}

	frame := &CallFrame{
		Args: make([]any, len(arguments)),
	}
	defer frame.finish()

	for i := range arguments {
		if h, ok := arguments[i].(Handle); ok && !isNilHandle(h) && !h.IsValid() {
			_, err := h.Pointer()
			return nil, fmt.Errorf("argument %d of %s: %w", i, p.signature.Name, err)
		}

		native, err := r.argTypes[i].Type.ToNative(ctx, frame, arguments[i])
		if err != nil {
			return nil, newArgumentTypeError(i, r.argTypes[i], arguments[i], err)
		}
		frame.Args[i] = native
	}

	raw, err := r.invoker.Invoke(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("could not call %s: %w", p.signature.Name, err)
	}

	if r.conv.Return == KindVoid {
		return nil, nil
	}

	result, err := r.hook(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("could not convert result of %s to %s: %w", p.signature.Name, r.returnType.Name, err)
	}

	return result, nil
}

// isNilHandle reports whether h is a typed nil pointer, which is passed as
// NULL rather than treated as a released handle.
func isNilHandle(h Handle) bool {
	v := reflect.ValueOf(h)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
