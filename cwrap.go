// Package cwrap binds C functions declared by short textual prototypes such
// as "int abs(int)" to a loaded library, and wraps native objects, enums and
// scalar values as Go types.
package cwrap

import (
	internal "github.com/jerbob92/go-cwrap/internal"

	"go.uber.org/zap"
)

type (
	Registry       = internal.Registry
	Config         = internal.Config
	TypeDescriptor = internal.TypeDescriptor
	MarshalType    = internal.MarshalType
	ResultHook     = internal.ResultHook
	NativeKind     = internal.NativeKind

	Signature       = internal.Signature
	Prototype       = internal.Prototype
	PrototypeOption = internal.PrototypeOption
	State           = internal.State
	Callable        = internal.Callable

	Library   = internal.Library
	Symbol    = internal.Symbol
	Invoker   = internal.Invoker
	CallConv  = internal.CallConv
	CallFrame = internal.CallFrame

	CClass       = internal.CClass
	Handle       = internal.Handle
	HandleOption = internal.HandleOption
	Ownership    = internal.Ownership
	ClassType    = internal.ClassType
	ClassOption  = internal.ClassOption

	SupportsReferenceConstruction = internal.SupportsReferenceConstruction
	SupportsFactoryConstruction   = internal.SupportsFactoryConstruction
	ReferenceConstructible        = internal.ReferenceConstructible
	FactoryConstructible          = internal.FactoryConstructible

	EnumType  = internal.EnumType
	EnumValue = internal.EnumValue
	ValueType = internal.ValueType
	CValue    = internal.CValue

	ArgumentTypeError = internal.ArgumentTypeError
)

const (
	KindVoid    = internal.KindVoid
	KindBool    = internal.KindBool
	KindChar    = internal.KindChar
	KindUint8   = internal.KindUint8
	KindInt32   = internal.KindInt32
	KindUint32  = internal.KindUint32
	KindInt64   = internal.KindInt64
	KindUint64  = internal.KindUint64
	KindLong    = internal.KindLong
	KindSizeT   = internal.KindSizeT
	KindFloat32 = internal.KindFloat32
	KindFloat64 = internal.KindFloat64
	KindPointer = internal.KindPointer
	KindCString = internal.KindCString

	StateUnresolved = internal.StateUnresolved
	StateResolved   = internal.StateResolved
	StateFailed     = internal.StateFailed

	Owning      = internal.Owning
	Referencing = internal.Referencing
)

var (
	ErrMalformedSignature  = internal.ErrMalformedSignature
	ErrDuplicateKey        = internal.ErrDuplicateKey
	ErrUnknownType         = internal.ErrUnknownType
	ErrSymbolNotFound      = internal.ErrSymbolNotFound
	ErrUnresolvedOperation = internal.ErrUnresolvedOperation
	ErrArgumentType        = internal.ErrArgumentType
	ErrArgumentCount       = internal.ErrArgumentCount
	ErrInvalidHandle       = internal.ErrInvalidHandle
	ErrUseAfterRelease     = internal.ErrUseAfterRelease
	ErrUnknownEnumValue    = internal.ErrUnknownEnumValue
	ErrInvalidValue        = internal.ErrInvalidValue
)

func NewConfig() *Config {
	return internal.NewConfig()
}

func NewRegistry(config *Config) *Registry {
	return internal.NewRegistry(config)
}

// Default returns the process wide registry.
func Default() *Registry {
	return internal.Default()
}

func ParseSignature(text string) (*Signature, error) {
	return internal.ParseSignature(text)
}

// NewPrototype declares text against lib. The signature is parsed
// immediately, the symbol is resolved on first use.
func NewPrototype(registry *Registry, lib Library, text string, opts ...PrototypeOption) (*Prototype, error) {
	return internal.NewPrototype(registry, lib, text, opts...)
}

func MustPrototype(registry *Registry, lib Library, text string, opts ...PrototypeOption) *Prototype {
	return internal.MustPrototype(registry, lib, text, opts...)
}

func Bind() PrototypeOption {
	return internal.Bind()
}

func AllowMissingSymbol() PrototypeOption {
	return internal.AllowMissingSymbol()
}

func InitCClass(h Handle, ptr uintptr, opts ...HandleOption) error {
	return internal.InitCClass(h, ptr, opts...)
}

func AsReference(parent any) HandleOption {
	return internal.AsReference(parent)
}

func ClassName(name string) ClassOption {
	return internal.ClassName(name)
}

func WithDestructor(destructor *Prototype) ClassOption {
	return internal.WithDestructor(destructor)
}

func WithOperations(operations ...*Prototype) ClassOption {
	return internal.WithOperations(operations...)
}

func WithoutFinalizer() ClassOption {
	return internal.WithoutFinalizer()
}

// Wrap wraps ptr in an owning handle of type T.
func Wrap[T Handle](ct *ClassType, ptr uintptr) (T, error) {
	return internal.Wrap[T](ct, ptr)
}

// WrapReference wraps ptr in a referencing handle of type T.
func WrapReference[T Handle](ct *ClassType, ptr uintptr, parent any) (T, error) {
	return internal.WrapReference[T](ct, ptr, parent)
}

func Logger() *zap.Logger {
	return internal.Logger()
}

func SetLogger(l *zap.Logger) {
	internal.SetLogger(l)
}
