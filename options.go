package tempo

import (
	"go.uber.org/zap"

	"github.com/baxromumarov/tempo/clock"
	"github.com/baxromumarov/tempo/metrics"
)

type config struct {
	logger  *zap.Logger
	clock   clock.Clock
	metrics *metrics.Collector
	name    string
}

// Option configures an operator.
type Option func(*config)

func defaultConfig() config {
	return config{
		logger: zap.NewNop(),
		clock:  clock.Real(),
	}
}

func buildConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger operator lifecycle events are written to,
// at debug level. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

// WithClock sets the clock operator timers are scheduled on.
// It panics if clk is nil.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk == nil {
			panic("tempo: WithClock requires non-nil clock")
		}
		c.clock = clk
	}
}

// WithMetrics records operator activity in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithName overrides the operator label used in logs and metrics.
// The default label is the operator kind, e.g. "debounce".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}
