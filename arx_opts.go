package arx

import (
	"log/slog"

	"github.com/meigma/arx/internal/container"
)

// Defaults applied when no option overrides them.
const (
	// DefaultMaxPackSize bounds the unpacked size of one compressed blob pool (1GB).
	DefaultMaxPackSize = container.DefaultMaxPackSize

	// DefaultMaxDecoderMemory is the default zstd decoder memory limit (256MB).
	DefaultMaxDecoderMemory = container.DefaultMaxDecoderMemory
)

type config struct {
	logger                *slog.Logger
	maxPackSize           uint64
	maxDecoderMemory      uint64
	decoderConcurrency    int
	decoderConcurrencySet bool
	decoderLowmem         bool
	sourceID              string
}

// Option configures an Archive.
type Option func(*config)

// WithLogger sets the logger for archive operations.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxPackSize limits the unpacked size of a compressed blob pool.
// Set limit to 0 to disable the limit.
func WithMaxPackSize(limit uint64) Option {
	return func(c *config) {
		c.maxPackSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.decoderConcurrency = n
		c.decoderConcurrencySet = true
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(c *config) {
		c.decoderLowmem = enabled
	}
}

// WithSourceID overrides the identifier Open derives for a local file.
func WithSourceID(id string) Option {
	return func(c *config) {
		c.sourceID = id
	}
}

func (c *config) containerOptions() []container.Option {
	opts := []container.Option{
		container.WithLogger(c.logger),
		container.WithMaxPackSize(c.maxPackSize),
		container.WithMaxDecoderMemory(c.maxDecoderMemory),
		container.WithDecoderLowmem(c.decoderLowmem),
	}
	if c.decoderConcurrencySet {
		opts = append(opts, container.WithDecoderConcurrency(c.decoderConcurrency))
	}
	return opts
}
