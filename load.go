package cwrap

import (
	"errors"
	"fmt"

	internal "github.com/jerbob92/go-cwrap/internal"

	"go.uber.org/zap"
)

// Load opens the first library in names that loads. Every name is tried as
// given; no search path probing is done.
func Load(names ...string) (*NativeLibrary, error) {
	if len(names) == 0 {
		return nil, errors.New("could not load library: no library names given")
	}

	var errs []error
	for _, name := range names {
		lib, err := Open(name)
		if err == nil {
			return lib, nil
		}
		internal.Logger().Debug("could not load library candidate", zap.String("name", name), zap.Error(err))
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("could not load any of %v: %w", names, errors.Join(errs...))
}
