package cwrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Ownership int

const (
	// Owning handles release the native object when they are released.
	Owning Ownership = iota

	// Referencing handles are views into memory owned elsewhere and never
	// release it.
	Referencing
)

func (o Ownership) String() string {
	if o == Referencing {
		return "referencing"
	}
	return "owning"
}

// Handle is implemented by every struct that embeds CClass.
type Handle interface {
	Pointer() (uintptr, error)
	IsValid() bool
	IsReference() bool
	Release(ctx context.Context) error
	cClass() *CClass
}

// CClass is the opaque handle to one native object. Embed it in a struct to
// wrap a native type; a pointer value of 0 marks the handle invalid.
type CClass struct {
	ptr         uintptr
	ownership   Ownership
	parent      any
	class       *ClassType
	initialized bool
}

type HandleOption func(c *CClass)

// AsReference makes the handle a reference that keeps parent alive and never
// releases the native object.
func AsReference(parent any) HandleOption {
	return func(c *CClass) {
		c.ownership = Referencing
		c.parent = parent
	}
}

// InitCClass initializes the handle embedded in h with ptr.
func InitCClass(h Handle, ptr uintptr, opts ...HandleOption) error {
	if isNilHandle(h) {
		return fmt.Errorf("could not initialize handle: %T is nil", h)
	}
	return h.cClass().init(ptr, opts...)
}

func (c *CClass) init(ptr uintptr, opts ...HandleOption) error {
	if ptr == 0 {
		return fmt.Errorf("%w: must have a valid (not null) pointer value", ErrInvalidHandle)
	}
	if c.initialized {
		return fmt.Errorf("could not initialize handle: already initialized")
	}

	c.ptr = ptr
	c.ownership = Owning
	c.parent = nil
	c.initialized = true
	for i := range opts {
		opts[i](c)
	}

	return nil
}

func (c *CClass) cClass() *CClass {
	return c
}

// Pointer returns the raw native pointer.
func (c *CClass) Pointer() (uintptr, error) {
	if c.ptr == 0 {
		if !c.initialized {
			return 0, fmt.Errorf("%w: %s handle is uninitialized", ErrUseAfterRelease, c.className())
		}
		return 0, fmt.Errorf("%w: %s handle already released", ErrUseAfterRelease, c.className())
	}
	return c.ptr, nil
}

func (c *CClass) IsValid() bool {
	return c.ptr != 0
}

func (c *CClass) IsReference() bool {
	return c.ownership == Referencing
}

func (c *CClass) Ownership() Ownership {
	return c.ownership
}

// Parent returns the object a reference handle keeps alive.
func (c *CClass) Parent() any {
	return c.parent
}

// SetParent keeps parent alive for as long as this handle is reachable.
func (c *CClass) SetParent(parent any) {
	c.parent = parent
}

// ConvertToReference hands ownership of the native object to someone else,
// typically a native container that now frees it.
func (c *CClass) ConvertToReference(parent any) {
	c.ownership = Referencing
	if parent != nil {
		c.parent = parent
	}
}

// Class returns the registered class of the handle, nil for handles
// initialized with InitCClass.
func (c *CClass) Class() *ClassType {
	return c.class
}

// Release invalidates the handle. Owning handles of a class with a destructor
// free the native object exactly once; releasing again does nothing.
func (c *CClass) Release(ctx context.Context) error {
	if c.ptr == 0 {
		return nil
	}

	ptr := c.ptr
	c.ptr = 0
	c.parent = nil

	if c.ownership != Owning || c.class == nil || c.class.destructor == nil {
		return nil
	}

	c.class.registry.logger.Debug("releasing native object",
		zap.String("class", c.class.name),
		zap.Uintptr("pointer", ptr))

	if _, err := c.class.destructor.Call(ctx, ptr); err != nil {
		return fmt.Errorf("could not release %s at %#x: %w", c.class.name, ptr, err)
	}

	return nil
}

func (c *CClass) className() string {
	if c.class != nil {
		return c.class.name
	}
	return "native"
}

func (c *CClass) String() string {
	kind := "owning"
	if c.ownership == Referencing {
		kind = "reference"
	}
	if c.ptr == 0 {
		return fmt.Sprintf("%s(invalid)", c.className())
	}
	return fmt.Sprintf("%s(%s at %#x)", c.className(), kind, c.ptr)
}
