package changefeed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	SetDefaults(&cfg)
	require.NoError(t, cfg.Validate())
}

func TestTestConfigIsValid(t *testing.T) {
	cfg := TestConfig()
	SetDefaults(&cfg)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}
	SetDefaults(&cfg)

	require.NotEmpty(t, cfg.InstanceID)
	require.True(t, strings.HasPrefix(cfg.InstanceID, "changefeed-"))
	require.Equal(t, 60*time.Second, cfg.LeaseExpiry)
	require.Equal(t, 17*time.Second, cfg.RenewInterval)
	require.Equal(t, 13*time.Second, cfg.BalanceInterval)
	require.Equal(t, 100, cfg.MaxItemsPerBatch)
	require.Equal(t, 100*time.Millisecond, cfg.HandlerRetry.BaseDelay)
	require.Zero(t, cfg.HandlerRetry.MaxRetries)
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		InstanceID:       "worker-7",
		LeaseExpiry:      30 * time.Second,
		MaxItemsPerBatch: 10,
	}
	SetDefaults(&cfg)

	require.Equal(t, "worker-7", cfg.InstanceID)
	require.Equal(t, 30*time.Second, cfg.LeaseExpiry)
	require.Equal(t, 10, cfg.MaxItemsPerBatch)
}

func TestSetDefaultsGeneratesUniqueInstanceIDs(t *testing.T) {
	var a, b Config
	SetDefaults(&a)
	SetDefaults(&b)

	require.NotEqual(t, a.InstanceID, b.InstanceID)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "expiry too close to renew interval",
			mutate: func(cfg *Config) {
				cfg.LeaseExpiry = 10 * time.Second
				cfg.RenewInterval = 8 * time.Second
			},
		},
		{
			name:   "zero balance interval",
			mutate: func(cfg *Config) { cfg.BalanceInterval = 0 },
		},
		{
			name:   "zero poll interval",
			mutate: func(cfg *Config) { cfg.PollInterval = 0 },
		},
		{
			name:   "non-positive batch size",
			mutate: func(cfg *Config) { cfg.MaxItemsPerBatch = -1 },
		},
		{
			name:   "negative handler retries",
			mutate: func(cfg *Config) { cfg.HandlerRetry.MaxRetries = -1 },
		},
		{
			name: "custom start without token",
			mutate: func(cfg *Config) {
				cfg.StartPosition = types.StartCustom
				cfg.StartToken = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateAcceptsCustomStartWithToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPosition = types.StartCustom
	cfg.StartToken = "42"

	require.NoError(t, cfg.Validate())
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	original := DefaultConfig()
	original.InstanceID = "worker-3"
	original.LeaseExpiry = 45 * time.Second
	original.RenewInterval = 15 * time.Second
	original.HandlerRetry.MaxRetries = 5

	data, err := yaml.Marshal(original)
	require.NoError(t, err)
	require.Contains(t, string(data), "instanceId: worker-3")
	require.Contains(t, string(data), "handlerRetry:")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, original, decoded)

	SetDefaults(&decoded)
	require.NoError(t, decoded.Validate())
}

func TestValidateWithWarningsDoesNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RenewInterval = 25 * time.Second
	cfg.LeaseExpiry = 60 * time.Second
	cfg.BalanceInterval = time.Second
	cfg.DiscoveryInterval = 500 * time.Millisecond

	// Exercises every warning branch.
	cfg.ValidateWithWarnings(logger.NewTest(t))
}
