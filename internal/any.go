package cwrap

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// objectType is the "py_object" key: an arbitrary Go value handed through
// native code as an opaque id into the registry's object table. Arguments are
// borrowed: their id is only valid until the call returns, unless the value
// was retained with Registry.RetainObject.
type objectType struct {
	baseType
	objects *objectTable
}

func (ot *objectType) ToNative(ctx context.Context, frame *CallFrame, o any) (any, error) {
	id := ot.objects.toHandle(o)
	if id != 0 && frame != nil {
		frame.OnDone(func() {
			ot.objects.releaseID(id)
		})
	}
	return id, nil
}

func (ot *objectType) FromNative(ctx context.Context, raw any) (any, error) {
	id, err := CanonicalValue(KindPointer, raw)
	if err != nil {
		return nil, err
	}
	return ot.objects.toValue(id.(uintptr))
}

func (ot *objectType) GoType() string {
	return "any"
}

type objectHandle struct {
	value    any
	refCount int
}

// objectTable keeps every value passed as a py_object alive until it is
// released. Comparable values share one slot.
type objectTable struct {
	mu        sync.Mutex
	allocated []*objectHandle
	freelist  []uintptr
	ids       map[any]uintptr
}

func newObjectTable() *objectTable {
	return &objectTable{
		// Reserve slot 0 so that 0 is always NULL.
		allocated: []*objectHandle{nil},
		ids:       map[any]uintptr{},
	}
}

func isComparable(value any) bool {
	return value != nil && reflect.ValueOf(value).Comparable()
}

func (ot *objectTable) toHandle(value any) uintptr {
	if value == nil {
		return 0
	}

	ot.mu.Lock()
	defer ot.mu.Unlock()

	if isComparable(value) {
		if id, ok := ot.ids[value]; ok {
			ot.allocated[id].refCount++
			return id
		}
	}

	handle := &objectHandle{value: value, refCount: 1}

	var id uintptr

	// Reuse freed slots when available.
	if len(ot.freelist) > 0 {
		id = ot.freelist[len(ot.freelist)-1]
		ot.freelist = ot.freelist[:len(ot.freelist)-1]
		ot.allocated[id] = handle
	} else {
		id = uintptr(len(ot.allocated))
		ot.allocated = append(ot.allocated, handle)
	}

	if isComparable(value) {
		ot.ids[value] = id
	}

	return id
}

func (ot *objectTable) toValue(id uintptr) (any, error) {
	if id == 0 {
		return nil, nil
	}

	ot.mu.Lock()
	defer ot.mu.Unlock()

	if int(id) > len(ot.allocated)-1 || ot.allocated[id] == nil {
		return nil, fmt.Errorf("invalid object id: %d", id)
	}

	return ot.allocated[id].value, nil
}

func (ot *objectTable) release(value any) error {
	if value == nil {
		return nil
	}

	ot.mu.Lock()
	defer ot.mu.Unlock()

	if isComparable(value) {
		id, ok := ot.ids[value]
		if !ok {
			return fmt.Errorf("value %v was never passed as an object", value)
		}
		return ot.decref(id)
	}

	// Non comparable values (maps, slices, funcs) are released by identity of
	// their slot, newest first.
	for id := len(ot.allocated) - 1; id > 0; id-- {
		handle := ot.allocated[id]
		if handle != nil && sameReference(handle.value, value) {
			return ot.decref(uintptr(id))
		}
	}

	return fmt.Errorf("value of type %T was never passed as an object", value)
}

func (ot *objectTable) releaseID(id uintptr) {
	ot.mu.Lock()
	defer ot.mu.Unlock()

	if int(id) < len(ot.allocated) && ot.allocated[id] != nil {
		_ = ot.decref(id)
	}
}

func (ot *objectTable) decref(id uintptr) error {
	handle := ot.allocated[id]
	handle.refCount--
	if handle.refCount > 0 {
		return nil
	}

	if isComparable(handle.value) {
		delete(ot.ids, handle.value)
	}
	ot.allocated[id] = nil
	ot.freelist = append(ot.freelist, id)
	return nil
}

func (ot *objectTable) len() int {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return len(ot.allocated) - 1 - len(ot.freelist)
}

func sameReference(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
