package footprint

import "go.uber.org/zap"

const (
	// DefaultMaxDepth bounds the nesting of composites the estimator follows.
	DefaultMaxDepth = 4096
	// DefaultTypeCacheSize is the number of struct types whose field
	// metadata is cached.
	DefaultTypeCacheSize = 512
)

type config struct {
	arch          Architecture
	automatic     bool
	escalator     *Escalator
	logger        *zap.Logger
	maxDepth      int
	detectCycles  bool
	typeCacheSize int
}

func defaultConfig() config {
	return config{
		arch:          HostArchitecture(),
		automatic:     true,
		maxDepth:      DefaultMaxDepth,
		typeCacheSize: DefaultTypeCacheSize,
	}
}

// Option configures an Estimator.
type Option func(*config)

// WithArchitecture measures as if running on arch. Only custom estimators
// use it; the package level functions always use HostArchitecture.
func WithArchitecture(arch Architecture) Option {
	return func(c *config) {
		c.arch = arch
	}
}

// WithAutomaticEscalation sets the initial escalation policy.
func WithAutomaticEscalation(enabled bool) Option {
	return func(c *config) {
		c.automatic = enabled
	}
}

// WithEscalator replaces the process-wide DefaultEscalator.
func WithEscalator(e *Escalator) Option {
	return func(c *config) {
		c.escalator = e
	}
}

// WithLogger sets the logger for escalation and traversal events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxDepth sets how deep composites may nest before the estimation
// fails with ErrRecursionExhausted.
func WithMaxDepth(depth int) Option {
	return func(c *config) {
		c.maxDepth = depth
	}
}

// WithCycleDetection makes the estimator fail as soon as a composite is
// reached again from inside itself, instead of when the depth limit is hit.
// The outcome for a cyclic graph is ErrRecursionExhausted either way.
func WithCycleDetection(enabled bool) Option {
	return func(c *config) {
		c.detectCycles = enabled
	}
}

// WithTypeCacheSize sets the size of the per-type field metadata cache.
// Zero disables it.
func WithTypeCacheSize(size int) Option {
	return func(c *config) {
		c.typeCacheSize = size
	}
}
