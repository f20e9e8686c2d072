package changefeed

// Option configures a Processor with optional dependencies.
type Option func(*processorOptions)

// processorOptions holds optional Processor configuration.
type processorOptions struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	hooks := &changefeed.Hooks{
//	    OnLeaseAcquired: func(ctx context.Context, partitionID string) error {
//	        log.Printf("now processing %s", partitionID)
//	        return nil
//	    },
//	}
//	proc, err := changefeed.NewProcessor(&cfg, store, src, handler, changefeed.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *processorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "myapp")
//	proc, err := changefeed.NewProcessor(&cfg, store, src, handler, changefeed.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *processorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	proc, err := changefeed.NewProcessor(&cfg, store, src, handler, changefeed.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *processorOptions) {
		o.logger = logger
	}
}
