//go:build !(darwin || freebsd || linux || netbsd)

package cwrap

import (
	"fmt"
	"runtime"

	internal "github.com/jerbob92/go-cwrap/internal"
)

// NativeLibrary is a shared library loaded into the process.
type NativeLibrary struct {
	path string
}

// Open loads the shared library at path.
func Open(path string) (*NativeLibrary, error) {
	return nil, fmt.Errorf("could not open library %s: native libraries are not supported on %s", path, runtime.GOOS)
}

func (nl *NativeLibrary) Name() string {
	return nl.path
}

func (nl *NativeLibrary) Lookup(name string) (internal.Symbol, error) {
	return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
}

func (nl *NativeLibrary) Close() error {
	return nil
}
