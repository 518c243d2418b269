//go:build darwin || freebsd || linux || netbsd

package cwrap

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"unsafe"

	internal "github.com/jerbob92/go-cwrap/internal"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// NativeLibrary is a shared library loaded into the process.
type NativeLibrary struct {
	path   string
	handle uintptr
}

// Open loads the shared library at path.
func Open(path string) (*NativeLibrary, error) {
	h, err := purego.Dlopen(path, purego.RTLD_GLOBAL|purego.RTLD_LAZY)
	if err != nil {
		return nil, fmt.Errorf("could not open library %s: %w", path, err)
	}

	internal.Logger().Debug("opened native library", zap.String("path", path))

	return &NativeLibrary{path: path, handle: h}, nil
}

func (nl *NativeLibrary) Name() string {
	return nl.path
}

func (nl *NativeLibrary) Lookup(name string) (internal.Symbol, error) {
	addr, err := purego.Dlsym(nl.handle, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, name, err)
	}
	if addr == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return &nativeSymbol{name: name, addr: addr}, nil
}

// Close releases the library. Prototypes resolved against it must not be
// called afterwards.
func (nl *NativeLibrary) Close() error {
	return purego.Dlclose(nl.handle)
}

type nativeSymbol struct {
	name string
	addr uintptr
}

func (ns *nativeSymbol) Name() string {
	return ns.name
}

func nativeGoType(kind internal.NativeKind) (reflect.Type, error) {
	switch kind {
	case internal.KindCString, internal.KindPointer:
		return reflect.TypeOf(uintptr(0)), nil
	case internal.KindVoid, internal.KindNone:
		return nil, fmt.Errorf("%s has no native representation", kind)
	}
	return kind.GoType(), nil
}

// registerFunc registers the given function at the address. purego panics on
// signatures it can not call.
func registerFunc(fnPtr any, addr uintptr) (err error) {
	defer func() {
		if recoverErr := recover(); recoverErr != nil {
			err = fmt.Errorf("could not register native function: %v", recoverErr)
		}
	}()
	purego.RegisterFunc(fnPtr, addr)
	return nil
}

func (ns *nativeSymbol) Prepare(conv internal.CallConv) (internal.Invoker, error) {
	in := make([]reflect.Type, len(conv.Args))
	for i := range conv.Args {
		t, err := nativeGoType(conv.Args[i])
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		in[i] = t
	}

	var out []reflect.Type
	if conv.Return != internal.KindVoid {
		t, err := nativeGoType(conv.Return)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		out = []reflect.Type{t}
	}

	fnPtr := reflect.New(reflect.FuncOf(in, out, false))
	if err := registerFunc(fnPtr.Interface(), ns.addr); err != nil {
		return nil, fmt.Errorf("%s: %w", ns.name, err)
	}

	return &nativeInvoker{
		symbol: ns,
		conv:   conv,
		in:     in,
		fn:     fnPtr.Elem(),
	}, nil
}

type nativeInvoker struct {
	symbol *nativeSymbol
	conv   internal.CallConv
	in     []reflect.Type
	fn     reflect.Value
}

// goBytes copies the NUL terminated string at ptr.
func goBytes(ptr uintptr) []byte {
	if ptr == 0 {
		return nil
	}
	p := unsafe.Pointer(ptr)
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return append([]byte{}, unsafe.Slice((*byte)(p), n)...)
}

// Invoke calls the native function. Cancellation of ctx is not observed once
// the call started.
func (ni *nativeInvoker) Invoke(ctx context.Context, frame *internal.CallFrame) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := make([]reflect.Value, len(frame.Args))
	for i := range frame.Args {
		if ni.conv.Args[i] == internal.KindCString {
			data, _ := frame.Args[i].([]byte)
			if data == nil {
				args[i] = reflect.ValueOf(uintptr(0))
				continue
			}
			buf := make([]byte, len(data)+1)
			copy(buf, data)
			frame.KeepAlive(buf)
			args[i] = reflect.ValueOf(uintptr(unsafe.Pointer(&buf[0])))
			continue
		}

		v := reflect.ValueOf(frame.Args[i])
		if !v.IsValid() || !v.Type().ConvertibleTo(ni.in[i]) {
			return nil, fmt.Errorf("argument %d: can not pass %T as %s", i, frame.Args[i], ni.in[i])
		}
		args[i] = v.Convert(ni.in[i])
	}

	results := ni.fn.Call(args)
	runtime.KeepAlive(frame.Pinned())

	if ni.conv.Return == internal.KindVoid {
		return nil, nil
	}

	raw := results[0].Interface()
	if ni.conv.Return == internal.KindCString {
		return goBytes(raw.(uintptr)), nil
	}

	return raw, nil
}
