package cwrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	internal "github.com/jerbob92/go-cwrap/internal"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// WasmLibrary exposes the exported functions of an instantiated WebAssembly
// module as a Library. The module must export "malloc" and "free" for
// prototypes that take char* arguments.
type WasmLibrary struct {
	mod api.Module
}

// NewWasmLibrary wraps an instantiated module.
func NewWasmLibrary(mod api.Module) *WasmLibrary {
	return &WasmLibrary{mod: mod}
}

func (wl *WasmLibrary) Name() string {
	return wl.mod.Name()
}

func (wl *WasmLibrary) Module() api.Module {
	return wl.mod
}

func (wl *WasmLibrary) Lookup(name string) (internal.Symbol, error) {
	fn := wl.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s is not exported by module %s", ErrSymbolNotFound, name, wl.Name())
	}

	internal.Logger().Debug("looked up wasm symbol", zap.String("module", wl.Name()), zap.String("symbol", name))

	return &wasmSymbol{lib: wl, name: name, fn: fn}, nil
}

type unexportedFunctionError struct {
	name string
}

func (e unexportedFunctionError) Error() string {
	return fmt.Sprintf("you need to export the \"%s\" function to pass strings to the module", e.name)
}

type wasmSymbol struct {
	lib  *WasmLibrary
	name string
	fn   api.Function
}

func (ws *wasmSymbol) Name() string {
	return ws.name
}

// wasmCompatible reports whether a value of kind can travel as vt. Pointer
// sized kinds are i32 on wasm32 and i64 on memory64.
func wasmCompatible(kind internal.NativeKind, vt api.ValueType) bool {
	switch kind {
	case internal.KindNone, internal.KindVoid:
		return false
	case internal.KindLong, internal.KindSizeT, internal.KindPointer, internal.KindCString:
		return vt == api.ValueTypeI32 || vt == api.ValueTypeI64
	}
	return vt == kind.ValueType()
}

func (ws *wasmSymbol) Prepare(conv internal.CallConv) (internal.Invoker, error) {
	def := ws.fn.Definition()
	params := def.ParamTypes()
	results := def.ResultTypes()

	if len(params) != len(conv.Args) {
		return nil, fmt.Errorf("function %s takes %d parameter(s), declared with %d", ws.name, len(params), len(conv.Args))
	}

	needsAllocator := false
	for i := range conv.Args {
		if !wasmCompatible(conv.Args[i], params[i]) {
			return nil, fmt.Errorf("parameter %d of %s is %s, expected %s to pass a %s", i, ws.name, api.ValueTypeName(params[i]), api.ValueTypeName(conv.Args[i].ValueType()), conv.Args[i])
		}
		if conv.Args[i] == internal.KindCString {
			needsAllocator = true
		}
	}

	needsMemory := needsAllocator
	if conv.Return == internal.KindVoid {
		if len(results) != 0 {
			return nil, fmt.Errorf("function %s returns %d value(s), declared as void", ws.name, len(results))
		}
	} else {
		if len(results) != 1 {
			return nil, fmt.Errorf("function %s returns %d value(s), declared with one", ws.name, len(results))
		}
		if !wasmCompatible(conv.Return, results[0]) {
			return nil, fmt.Errorf("result of %s is %s, expected %s to return a %s", ws.name, api.ValueTypeName(results[0]), api.ValueTypeName(conv.Return.ValueType()), conv.Return)
		}
		if conv.Return == internal.KindCString {
			needsMemory = true
		}
	}

	invoker := &wasmInvoker{
		symbol:  ws,
		conv:    conv,
		params:  params,
		results: results,
	}

	// Returned strings are only read, arguments are copied into guest memory
	// allocated with the module's own allocator.
	if needsMemory && ws.lib.mod.Memory() == nil {
		return nil, fmt.Errorf("module %s does not export its memory", ws.lib.Name())
	}
	if needsAllocator {
		for _, name := range []string{"malloc", "free"} {
			if ws.lib.mod.ExportedFunction(name) == nil {
				return nil, unexportedFunctionError{name: name}
			}
		}
		invoker.malloc = ws.lib.mod.ExportedFunction("malloc")
		invoker.free = ws.lib.mod.ExportedFunction("free")
	}

	return invoker, nil
}

type wasmInvoker struct {
	symbol  *wasmSymbol
	conv    internal.CallConv
	params  []api.ValueType
	results []api.ValueType
	malloc  api.Function
	free    api.Function
}

func encodeWasmValue(v any, vt api.ValueType) (uint64, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return api.EncodeI32(1), nil
		}
		return api.EncodeI32(0), nil
	case int8:
		return api.EncodeI32(int32(v)), nil
	case uint8:
		return api.EncodeU32(uint32(v)), nil
	case int32:
		return api.EncodeI32(v), nil
	case uint32:
		return api.EncodeU32(v), nil
	case int64:
		if vt == api.ValueTypeI32 {
			return api.EncodeI32(int32(v)), nil
		}
		return uint64(v), nil
	case uint64:
		if vt == api.ValueTypeI32 {
			return api.EncodeU32(uint32(v)), nil
		}
		return v, nil
	case uintptr:
		if vt == api.ValueTypeI32 {
			return api.EncodeU32(uint32(v)), nil
		}
		return uint64(v), nil
	case float32:
		return api.EncodeF32(v), nil
	case float64:
		return api.EncodeF64(v), nil
	}
	return 0, fmt.Errorf("can not pass a %T to WebAssembly", v)
}

func decodeWasmValue(kind internal.NativeKind, vt api.ValueType, raw uint64) any {
	switch kind {
	case internal.KindBool:
		return api.DecodeU32(raw) != 0
	case internal.KindChar:
		return int8(api.DecodeI32(raw))
	case internal.KindUint8:
		return uint8(api.DecodeU32(raw))
	case internal.KindInt32:
		return api.DecodeI32(raw)
	case internal.KindUint32:
		return api.DecodeU32(raw)
	case internal.KindInt64:
		return int64(raw)
	case internal.KindUint64:
		return raw
	case internal.KindLong:
		if vt == api.ValueTypeI32 {
			return int64(api.DecodeI32(raw))
		}
		return int64(raw)
	case internal.KindSizeT:
		if vt == api.ValueTypeI32 {
			return uint64(api.DecodeU32(raw))
		}
		return raw
	case internal.KindFloat32:
		return api.DecodeF32(raw)
	case internal.KindFloat64:
		return api.DecodeF64(raw)
	}

	if vt == api.ValueTypeI32 {
		return uintptr(api.DecodeU32(raw))
	}
	return uintptr(raw)
}

// writeCString copies data into guest memory allocated with malloc. The
// caller frees the returned pointer.
func (wi *wasmInvoker) writeCString(ctx context.Context, data []byte, vt api.ValueType) (uint64, error) {
	size := uint64(len(data) + 1)
	if vt == api.ValueTypeI32 {
		size = api.EncodeU32(uint32(size))
	}

	mallocRes, err := wi.malloc.Call(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("could not allocate string: %w", err)
	}
	ptr := mallocRes[0]
	base := uint32(ptr)
	if base == 0 {
		return 0, errors.New("could not allocate string: malloc returned NULL")
	}

	mem := wi.symbol.lib.mod.Memory()
	if !mem.Write(base, data) {
		return 0, fmt.Errorf("could not write string to memory")
	}
	if !mem.WriteByte(base+uint32(len(data)), 0) {
		return 0, fmt.Errorf("could not write NULL terminator to memory")
	}

	return ptr, nil
}

func (wi *wasmInvoker) readCString(addr uint32) ([]byte, error) {
	var buf bytes.Buffer
	mem := wi.symbol.lib.mod.Memory()
	for {
		b, success := mem.ReadByte(addr)
		if !success {
			return nil, errors.New("could not read C string data")
		}

		// Stop when we encounter nil terminator of Cstring
		if b == 0 {
			break
		}

		buf.WriteByte(b)
		addr++
	}

	// Non-nil, so an empty string is not mistaken for NULL.
	return append([]byte{}, buf.Bytes()...), nil
}

func (wi *wasmInvoker) Invoke(ctx context.Context, frame *internal.CallFrame) (res any, err error) {
	if frame.HostMemory() {
		return nil, fmt.Errorf("can not pass pointers to Go memory to WebAssembly function %s", wi.symbol.name)
	}

	var destructors []uint64
	defer func() {
		for i := range destructors {
			if _, freeErr := wi.free.Call(ctx, destructors[i]); freeErr != nil && err == nil {
				err = fmt.Errorf("could not free string argument: %w", freeErr)
			}
		}
	}()

	params := make([]uint64, len(frame.Args))
	for i := range frame.Args {
		if wi.conv.Args[i] == internal.KindCString {
			data, _ := frame.Args[i].([]byte)
			if data == nil {
				params[i] = 0
				continue
			}
			ptr, err := wi.writeCString(ctx, data, wi.params[i])
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			destructors = append(destructors, ptr)
			params[i] = ptr
			continue
		}

		params[i], err = encodeWasmValue(frame.Args[i], wi.params[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}

	results, err := wi.symbol.fn.Call(ctx, params...)
	if err != nil {
		return nil, err
	}

	if wi.conv.Return == internal.KindVoid {
		return nil, nil
	}

	if wi.conv.Return == internal.KindCString {
		ptr := decodeWasmValue(internal.KindPointer, wi.results[0], results[0]).(uintptr)
		if ptr == 0 {
			return []byte(nil), nil
		}
		return wi.readCString(uint32(ptr))
	}

	return decodeWasmValue(wi.conv.Return, wi.results[0], results[0]), nil
}
