package cwrap

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedSignature  = errors.New("illegal prototype definition")
	ErrDuplicateKey        = errors.New("type already registered")
	ErrUnknownType         = errors.New("unknown type")
	ErrSymbolNotFound      = errors.New("can not find function")
	ErrUnresolvedOperation = errors.New("prototype has not been properly resolved")
	ErrArgumentType        = errors.New("invalid argument")
	ErrArgumentCount       = errors.New("wrong number of arguments")
	ErrInvalidHandle       = errors.New("invalid null pointer")
	ErrUseAfterRelease     = errors.New("use of invalidated handle")
	ErrUnknownEnumValue    = errors.New("unknown enum value")
	ErrInvalidValue        = errors.New("invalid value")
)

// ArgumentTypeError is returned when a call-site argument can not be converted
// into the representation of its parameter slot. It carries the backend's
// message only as text.
type ArgumentTypeError struct {
	Index     int
	Expected  string
	Value     any
	ValueType string
	Detail    string
}

func (e *ArgumentTypeError) Error() string {
	msg := fmt.Sprintf("argument %d: cannot create a %s from the given value %#v (%s)", e.Index, e.Expected, e.Value, e.ValueType)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is makes errors.Is(err, ErrArgumentType) match.
func (e *ArgumentTypeError) Is(target error) bool {
	return target == ErrArgumentType
}

func newArgumentTypeError(index int, expected *TypeDescriptor, value any, cause error) *ArgumentTypeError {
	expectedName := expected.Name
	if goType := expected.Type.GoType(); goType != "" && goType != expectedName {
		expectedName = fmt.Sprintf("%s (%s)", expectedName, goType)
	}

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}

	return &ArgumentTypeError{
		Index:     index,
		Expected:  expectedName,
		Value:     value,
		ValueType: fmt.Sprintf("%T", value),
		Detail:    detail,
	}
}
