package cwrap

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Config holds the registry options.
type Config struct {
	logger       *zap.Logger
	textEncoding encoding.Encoding
	finalizers   bool
}

// NewConfig returns a config with UTF-8 strings and finalizers for owning
// handles enabled.
func NewConfig() *Config {
	return &Config{
		textEncoding: unicode.UTF8,
		finalizers:   true,
	}
}

// WithLogger sets the logger of the registry. When unset the package logger
// is used.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.logger = logger
	return c
}

// WithTextEncoding sets the encoding used for char* arguments and results.
func (c *Config) WithTextEncoding(enc encoding.Encoding) *Config {
	if enc == nil {
		enc = unicode.UTF8
	}
	c.textEncoding = enc
	return c
}

// WithFinalizers controls whether owning handles that become unreachable are
// released. The finalizer only queues the handle; its destructor runs on the
// goroutine of the next prototype call against the registry, or in
// Registry.ReleasePending. Native code is never called from the finalizer
// goroutine.
func (c *Config) WithFinalizers(enabled bool) *Config {
	c.finalizers = enabled
	return c
}

func (c *Config) getLogger() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return Logger()
}
