package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kava-labs/evm-rpc-middleware/config"
)

var (
	proxyServicePort             = "7777"
	upstreamRPCURL               = "http://localhost:8545"
	randomEnvironmentVariableKey = "TEST_EVM_RPC_RANDOM_VALUE"
)

func TestUnitTestEnvODefaultReturnsDefaultIfEnvironmentVariableNotSet(t *testing.T) {
	err := os.Unsetenv(randomEnvironmentVariableKey)

	assert.Nil(t, err, "error clearing environment variable")

	defaultValue := "default"

	value := config.EnvOrDefault(randomEnvironmentVariableKey, defaultValue)

	assert.Equal(t, defaultValue, value)
}

func TestUnitTestEnvODefaultReturnsSetValue(t *testing.T) {
	setValue := "default"
	err := os.Setenv(randomEnvironmentVariableKey, setValue)

	assert.Nil(t, err, "error settting environment variable")

	value := config.EnvOrDefault(randomEnvironmentVariableKey, "")

	assert.Equal(t, setValue, value)
}

func TestUnitTestTypedEnvOrDefault(t *testing.T) {
	testCases := []struct {
		name   string
		value  string
		assert func(t *testing.T)
	}{
		{
			name:  "bool parses",
			value: "true",
			assert: func(t *testing.T) {
				assert.True(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, false))
			},
		},
		{
			name:  "bool falls back on garbage",
			value: "yes please",
			assert: func(t *testing.T) {
				assert.True(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, true))
			},
		},
		{
			name:  "int parses",
			value: "12",
			assert: func(t *testing.T) {
				assert.Equal(t, 12, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 3))
			},
		},
		{
			name:  "int falls back on garbage",
			value: "twelve",
			assert: func(t *testing.T) {
				assert.Equal(t, 3, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 3))
			},
		},
		{
			name:  "duration parses",
			value: "250ms",
			assert: func(t *testing.T) {
				assert.Equal(t, 250*time.Millisecond, config.EnvOrDefaultDuration(randomEnvironmentVariableKey, time.Second))
			},
		},
		{
			name:  "duration falls back on garbage",
			value: "soon",
			assert: func(t *testing.T) {
				assert.Equal(t, time.Second, config.EnvOrDefaultDuration(randomEnvironmentVariableKey, time.Second))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(randomEnvironmentVariableKey, tc.value)
			tc.assert(t)
		})
	}
}

func TestUnitTestReadConfigReturnsConfigWithValuesFromEnv(t *testing.T) {
	setDefaultEnv()

	readConfig := config.ReadConfig()

	assert.Equal(t, config.DEFAULT_LOG_LEVEL, readConfig.LogLevel)
	assert.Equal(t, proxyServicePort, readConfig.ProxyServicePort)
	assert.Equal(t, upstreamRPCURL, readConfig.UpstreamRPCURL)
	assert.Equal(t, config.DEFAULT_BLOCK_REF_MODE, readConfig.BlockRefMode)
	assert.Equal(t, config.DEFAULT_CACHE_BACKEND, readConfig.CacheBackend)
	assert.Equal(t, config.DEFAULT_RETRY_ON_EMPTY_MAX_ATTEMPTS, readConfig.RetryOnEmptyMaxAttempts)
	assert.Equal(t, config.DEFAULT_RETRY_ON_RATE_LIMIT_INTERVAL, readConfig.RetryOnRateLimitInterval)
	assert.Equal(t, time.Duration(config.DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)*time.Second, readConfig.MetricPruningRoutineInterval)
}

func setDefaultEnv() {
	os.Setenv(config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY, proxyServicePort)
	os.Setenv(config.UPSTREAM_RPC_URL_ENVIRONMENT_KEY, upstreamRPCURL)
	os.Setenv(config.LOG_LEVEL_ENVIRONMENT_KEY, config.DEFAULT_LOG_LEVEL)
	os.Unsetenv(config.BLOCK_REF_MODE_ENVIRONMENT_KEY)
	os.Unsetenv(config.CACHE_BACKEND_ENVIRONMENT_KEY)
	os.Unsetenv(config.CACHE_ENABLED_ENVIRONMENT_KEY)
	os.Unsetenv(config.RETRY_ON_EMPTY_MAX_ATTEMPTS_ENVIRONMENT_KEY)
	os.Unsetenv(config.RETRY_ON_RATE_LIMIT_INTERVAL_ENVIRONMENT_KEY)
	os.Unsetenv(config.METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY)
	os.Unsetenv(config.METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY)
}
