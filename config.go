package minnow

import "go.uber.org/zap"

// DefaultCapacity is a reasonable receive window for a single stream.
const DefaultCapacity = 1 << 16

// Config is used to configure a Pipe. A Config must not be modified while in
// use. A Config may be in use by multiple Pipes simultaneously.
type Config struct {
	// Capacity bounds the number of bytes that were assembled but not yet
	// read. It is also the size of the acceptance window, so a peer may
	// have at most Capacity bytes in flight past the last byte read.
	// Capacity must be non-zero.
	Capacity uint64

	// Logger receives debug logs about discarded fragments and stream
	// closure. A nil Logger disables logging.
	Logger *zap.Logger
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
