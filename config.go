package changefeed

import (
	"fmt"
	"time"

	"github.com/nats-io/nuid"

	"github.com/benoit160/changefeed/types"
)

// HandlerRetryConfig controls retries of the user handler on a failed
// batch.
//
// A failed batch is always re-delivered from the same continuation token;
// retries only decide how often and for how long before the partition's
// pump gives up. Failures are never skipped silently.
type HandlerRetryConfig struct {
	// MaxRetries bounds delivery attempts per batch. 0 retries forever:
	// a persistently failing handler stalls its partition (and keeps its
	// position) rather than losing data.
	MaxRetries int `yaml:"maxRetries"`

	// BaseDelay is the initial backoff between attempts.
	// Recommended: 100ms.
	BaseDelay time.Duration `yaml:"baseDelay"`

	// MaxDelay caps the jittered backoff growth.
	// Recommended: 5 seconds.
	MaxDelay time.Duration `yaml:"maxDelay"`
}

// Config is the configuration for the Processor.
//
// The three lease timings form a hierarchy:
//
//	LeaseExpiry > RenewInterval, LeaseExpiry >= 2*RenewInterval
//
// A lease whose LastRenewed timestamp is older than LeaseExpiry is an
// orphan and may be reclaimed by any instance. RenewInterval must leave
// enough slack for at least one missed renewal before that happens.
type Config struct {
	// InstanceID uniquely identifies this processor instance in the lease
	// store. Leave empty to generate one; set it explicitly when stable
	// identities matter for operations (log correlation, dashboards).
	InstanceID string `yaml:"instanceId"`

	// LeaseExpiry is how long a lease stays valid after its last renewal.
	// Leases older than this are treated as orphaned and reclaimed.
	// Recommended: 60 seconds.
	LeaseExpiry time.Duration `yaml:"leaseExpiry"`

	// RenewInterval is how often owned leases are re-stamped.
	// Recommended: LeaseExpiry/3 or lower.
	RenewInterval time.Duration `yaml:"renewInterval"`

	// BalanceInterval is how often the instance runs a balancing pass:
	// acquiring free and orphaned leases, stealing from overloaded
	// instances and shedding its own excess.
	// Recommended: 13 seconds.
	BalanceInterval time.Duration `yaml:"balanceInterval"`

	// DiscoveryInterval is how often the source's partition set is
	// re-listed to pick up splits and merges.
	// Recommended: 30 seconds.
	DiscoveryInterval time.Duration `yaml:"discoveryInterval"`

	// PollInterval is how long a pump sleeps after its partition reported
	// no new changes.
	// Recommended: 1-5 seconds.
	PollInterval time.Duration `yaml:"pollInterval"`

	// MaxItemsPerBatch caps the number of changes requested from the
	// source per read.
	// Recommended: 100.
	MaxItemsPerBatch int `yaml:"maxItemsPerBatch"`

	// StartPosition selects where processing begins for partitions with
	// no checkpoint yet. Checkpointed partitions always resume from their
	// checkpoint regardless of this setting.
	StartPosition types.StartPosition `yaml:"startPosition"`

	// StartToken is the continuation token used with StartCustom.
	StartToken string `yaml:"startToken"`

	// HandlerRetry controls redelivery of failed batches.
	HandlerRetry HandlerRetryConfig `yaml:"handlerRetry"`

	// OperationTimeout is the timeout for individual lease store
	// operations (get, create, update, list).
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout is the maximum time for Start to discover partitions
	// and seed lease records.
	// Recommended: 30 seconds.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout is the maximum time for graceful shutdown:
	// finishing in-flight batches, final checkpoints and lease releases.
	// Recommended: 10 seconds.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns a Config with sensible production defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LeaseExpiry:       60 * time.Second,
		RenewInterval:     17 * time.Second,
		BalanceInterval:   13 * time.Second,
		DiscoveryInterval: 30 * time.Second,
		PollInterval:      5 * time.Second,
		MaxItemsPerBatch:  100,
		StartPosition:     types.StartBeginning,
		HandlerRetry: HandlerRetryConfig{
			MaxRetries: 0, // retry forever, never skip a batch
			BaseDelay:  100 * time.Millisecond,
			MaxDelay:   5 * time.Second,
		},
		OperationTimeout: 10 * time.Second,
		StartupTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production
// defaults. A missing InstanceID is replaced with a generated one.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.InstanceID == "" {
		cfg.InstanceID = "changefeed-" + nuid.Next()
	}
	if cfg.LeaseExpiry == 0 {
		cfg.LeaseExpiry = defaults.LeaseExpiry
	}
	if cfg.RenewInterval == 0 {
		cfg.RenewInterval = defaults.RenewInterval
	}
	if cfg.BalanceInterval == 0 {
		cfg.BalanceInterval = defaults.BalanceInterval
	}
	if cfg.DiscoveryInterval == 0 {
		cfg.DiscoveryInterval = defaults.DiscoveryInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxItemsPerBatch == 0 {
		cfg.MaxItemsPerBatch = defaults.MaxItemsPerBatch
	}
	if cfg.HandlerRetry.BaseDelay == 0 {
		cfg.HandlerRetry.BaseDelay = defaults.HandlerRetry.BaseDelay
	}
	if cfg.HandlerRetry.MaxDelay == 0 {
		cfg.HandlerRetry.MaxDelay = defaults.HandlerRetry.MaxDelay
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	// Note: MaxRetries of 0 is valid (infinite retries), no default applied
}

// Validate checks configuration constraints and returns an error for
// invalid values.
//
// Hard Validation Rules:
//   - LeaseExpiry >= 2*RenewInterval (allow one missed renewal)
//   - BalanceInterval > 0
//   - PollInterval > 0
//   - MaxItemsPerBatch > 0
//   - HandlerRetry.MaxRetries >= 0
//   - StartCustom requires a non-empty StartToken
//
// Returns:
//   - error: Validation error with a clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.LeaseExpiry < 2*cfg.RenewInterval {
		return fmt.Errorf(
			"LeaseExpiry (%v) must be >= 2*RenewInterval (%v) to allow one missed renewal: %w",
			cfg.LeaseExpiry, cfg.RenewInterval, ErrInvalidConfig,
		)
	}

	if cfg.BalanceInterval <= 0 {
		return fmt.Errorf("BalanceInterval must be > 0, got %v: %w", cfg.BalanceInterval, ErrInvalidConfig)
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be > 0, got %v: %w", cfg.PollInterval, ErrInvalidConfig)
	}

	if cfg.MaxItemsPerBatch <= 0 {
		return fmt.Errorf("MaxItemsPerBatch must be > 0, got %d: %w", cfg.MaxItemsPerBatch, ErrInvalidConfig)
	}

	if cfg.HandlerRetry.MaxRetries < 0 {
		return fmt.Errorf("HandlerRetry.MaxRetries must be >= 0, got %d: %w",
			cfg.HandlerRetry.MaxRetries, ErrInvalidConfig)
	}

	if cfg.StartPosition == types.StartCustom && cfg.StartToken == "" {
		return fmt.Errorf("StartToken is required with StartPosition=Custom: %w", ErrInvalidConfig)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values. Called after Validate() in NewProcessor() to
// provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.LeaseExpiry < 3*cfg.RenewInterval {
		logger.Warn(
			"LeaseExpiry is below recommended minimum, brief renewal hiccups may orphan leases",
			"leaseExpiry", cfg.LeaseExpiry,
			"renewInterval", cfg.RenewInterval,
			"recommended", 3*cfg.RenewInterval,
		)
	}

	if cfg.BalanceInterval < 2*time.Second {
		logger.Warn(
			"BalanceInterval is very short, may cause frequent lease churn",
			"balanceInterval", cfg.BalanceInterval,
			"recommended", "10s or higher",
		)
	}

	if cfg.DiscoveryInterval < cfg.BalanceInterval {
		logger.Warn(
			"DiscoveryInterval below BalanceInterval has no effect, new partitions are acquired on balance passes",
			"discoveryInterval", cfg.DiscoveryInterval,
			"balanceInterval", cfg.BalanceInterval,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable
// rapid iteration without sacrificing coverage. Use DefaultConfig() for
// production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := changefeed.TestConfig()
//	cfg.InstanceID = "test-instance"
//	proc, err := changefeed.NewProcessor(&cfg, store, src, handler)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.LeaseExpiry = 2 * time.Second              // 30x faster
	cfg.RenewInterval = 500 * time.Millisecond     // 34x faster
	cfg.BalanceInterval = 200 * time.Millisecond   // 65x faster
	cfg.DiscoveryInterval = 500 * time.Millisecond // 60x faster
	cfg.PollInterval = 20 * time.Millisecond       // 250x faster
	cfg.HandlerRetry.BaseDelay = time.Millisecond
	cfg.HandlerRetry.MaxDelay = 50 * time.Millisecond
	cfg.OperationTimeout = 2 * time.Second
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 5 * time.Second

	return cfg
}
