package cwrap

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/text/encoding"
)

// cStringType is the "char*" key. Arguments are encoded with the configured
// text encoding, results are decoded back into a Go string. The backend adds
// and strips the NUL terminator.
type cStringType struct {
	baseType
	config *Config
}

func encodeCString(enc encoding.Encoding, s string) ([]byte, error) {
	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(encoded, 0) != -1 {
		return nil, fmt.Errorf("string contains a NUL byte")
	}
	return encoded, nil
}

func (cst *cStringType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	switch v := o.(type) {
	case nil:
		return []byte(nil), nil
	case string:
		encoded, err := encodeCString(cst.config.textEncoding, v)
		if err != nil {
			return nil, err
		}
		// A non-nil empty slice is the empty string, nil is NULL.
		if encoded == nil {
			encoded = []byte{}
		}
		return encoded, nil
	case []byte:
		if v == nil {
			return []byte(nil), nil
		}
		if bytes.IndexByte(v, 0) != -1 {
			return nil, fmt.Errorf("byte slice contains a NUL byte")
		}
		return v, nil
	}

	return nil, fmt.Errorf("value must be of type string, is %T", o)
}

func (cst *cStringType) FromNative(ctx context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("could not read string from %T", raw)
	}
	if data == nil {
		return nil, nil
	}

	decoded, err := cst.config.textEncoding.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode string: %w", err)
	}

	return string(decoded), nil
}

func (cst *cStringType) GoType() string {
	return "string"
}
