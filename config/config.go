// package config provides functions and values
// for reading and validating evm rpc middleware service configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every value the service reads from its environment
type Config struct {
	LogLevel                          string
	ProxyServicePort                  string
	UpstreamRPCURL                    string
	UpstreamOriginHeaderKey           string
	BlockTrackerPollInterval          time.Duration
	BlockRefMode                      string
	CacheEnabled                      bool
	CacheBackend                      string
	CachePrefix                       string
	RedisEndpointURL                  string
	RedisPassword                     string
	RedisDB                           int
	FetchMaxAttempts                  int
	FetchRetryInterval                time.Duration
	FetchTimeout                      time.Duration
	RetryOnEmptyMaxAttempts           int
	RetryOnEmptyInterval              time.Duration
	RetryOnRateLimitMaxAttempts       int
	RetryOnRateLimitInterval          time.Duration
	MetricDatabaseEnabled             bool
	DatabaseName                      string
	DatabaseEndpointURL               string
	DatabaseUserName                  string
	DatabasePassword                  string
	DatabaseSSLEnabled                bool
	DatabaseQueryLoggingEnabled       bool
	DatabaseReadTimeoutSeconds        int64
	DatabaseMaxIdleConnections        int64
	DatabaseConnectionMaxIdleSeconds  int64
	DatabaseMaxOpenConnections        int64
	RunDatabaseMigrations             bool
	MetricPruningEnabled              bool
	MetricPruningRoutineInterval      time.Duration
	MetricPruningRoutineDelayFirstRun time.Duration
	MetricPruningMaxHistoryDays       int
}

const (
	BLOCK_REF_MODE_REWRITE = "rewrite"
	BLOCK_REF_MODE_SHADOW  = "shadow"
	BLOCK_REF_MODE_NONE    = "none"
	CACHE_BACKEND_MEMORY   = "memory"
	CACHE_BACKEND_REDIS    = "redis"
)

const (
	LOG_LEVEL_ENVIRONMENT_KEY                                       = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                               = "INFO"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                              = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                                      = "7777"
	UPSTREAM_RPC_URL_ENVIRONMENT_KEY                                = "UPSTREAM_RPC_URL"
	UPSTREAM_ORIGIN_HEADER_KEY_ENVIRONMENT_KEY                      = "UPSTREAM_ORIGIN_HEADER_KEY"
	BLOCK_TRACKER_POLL_INTERVAL_ENVIRONMENT_KEY                     = "BLOCK_TRACKER_POLL_INTERVAL"
	DEFAULT_BLOCK_TRACKER_POLL_INTERVAL                             = 4 * time.Second
	BLOCK_REF_MODE_ENVIRONMENT_KEY                                  = "BLOCK_REF_MODE"
	DEFAULT_BLOCK_REF_MODE                                          = BLOCK_REF_MODE_REWRITE
	CACHE_ENABLED_ENVIRONMENT_KEY                                   = "CACHE_ENABLED"
	DEFAULT_CACHE_ENABLED                                           = true
	CACHE_BACKEND_ENVIRONMENT_KEY                                   = "CACHE_BACKEND"
	DEFAULT_CACHE_BACKEND                                           = CACHE_BACKEND_MEMORY
	CACHE_PREFIX_ENVIRONMENT_KEY                                    = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                            = "evm-rpc"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                              = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                                  = "REDIS_PASSWORD"
	REDIS_DB_ENVIRONMENT_KEY                                        = "REDIS_DB"
	FETCH_MAX_ATTEMPTS_ENVIRONMENT_KEY                              = "FETCH_MAX_ATTEMPTS"
	DEFAULT_FETCH_MAX_ATTEMPTS                                      = 5
	FETCH_RETRY_INTERVAL_ENVIRONMENT_KEY                            = "FETCH_RETRY_INTERVAL"
	DEFAULT_FETCH_RETRY_INTERVAL                                    = time.Second
	FETCH_TIMEOUT_ENVIRONMENT_KEY                                   = "FETCH_TIMEOUT"
	DEFAULT_FETCH_TIMEOUT                                           = 30 * time.Second
	RETRY_ON_EMPTY_MAX_ATTEMPTS_ENVIRONMENT_KEY                     = "RETRY_ON_EMPTY_MAX_ATTEMPTS"
	DEFAULT_RETRY_ON_EMPTY_MAX_ATTEMPTS                             = 10
	RETRY_ON_EMPTY_INTERVAL_ENVIRONMENT_KEY                         = "RETRY_ON_EMPTY_INTERVAL"
	DEFAULT_RETRY_ON_EMPTY_INTERVAL                                 = time.Second
	RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS_ENVIRONMENT_KEY                = "RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS"
	DEFAULT_RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS                        = 5
	RETRY_ON_RATE_LIMIT_INTERVAL_ENVIRONMENT_KEY                    = "RETRY_ON_RATE_LIMIT_INTERVAL"
	DEFAULT_RETRY_ON_RATE_LIMIT_INTERVAL                            = 800 * time.Millisecond
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                         = "METRIC_DATABASE_ENABLED"
	DEFAULT_METRIC_DATABASE_ENABLED                                 = false
	DATABASE_NAME_ENVIRONMENT_KEY                                   = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                           = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                               = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                               = "DATABASE_PASSWORD"
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                            = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY                  = "DATABASE_QUERY_LOGGING_ENABLED"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY                   = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                           = 60
	DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY                   = "DATABASE_MAX_IDLE_CONNECTIONS"
	DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS                           = 5
	DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY            = "DATABASE_CONNECTION_MAX_IDLE_SECONDS"
	DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS                    = 5
	DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY                   = "DATABASE_MAX_OPEN_CONNECTIONS"
	DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS                           = 20
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                         = "RUN_DATABASE_MIGRATIONS"
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                          = "METRIC_PRUNING_ENABLED"
	DEFAULT_METRIC_PRUNING_ENABLED                                  = true
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY         = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS                 = 10
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY  = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS          = 10
	METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY = "METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS         = 45
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches a boolean environment variable value, or if not set
// or not parseable as a bool returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		boolVal, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return boolVal
	}
	return fallback
}

// EnvOrDefaultInt fetches an int environment variable value, or if not set
// or not parseable as an int returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		intVal, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return intVal
	}
	return fallback
}

// EnvOrDefaultInt64 is EnvOrDefaultInt for int64 values
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		intVal, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fallback
		}
		return intVal
	}
	return fallback
}

// EnvOrDefaultDuration fetches a duration environment variable value (e.g. "500ms"),
// or if not set or not parseable as a duration returns the fallback value
func EnvOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return fallback
		}
		return duration
	}
	return fallback
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	return Config{
		LogLevel:                          EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyServicePort:                  EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		UpstreamRPCURL:                    os.Getenv(UPSTREAM_RPC_URL_ENVIRONMENT_KEY),
		UpstreamOriginHeaderKey:           os.Getenv(UPSTREAM_ORIGIN_HEADER_KEY_ENVIRONMENT_KEY),
		BlockTrackerPollInterval:          EnvOrDefaultDuration(BLOCK_TRACKER_POLL_INTERVAL_ENVIRONMENT_KEY, DEFAULT_BLOCK_TRACKER_POLL_INTERVAL),
		BlockRefMode:                      EnvOrDefault(BLOCK_REF_MODE_ENVIRONMENT_KEY, DEFAULT_BLOCK_REF_MODE),
		CacheEnabled:                      EnvOrDefaultBool(CACHE_ENABLED_ENVIRONMENT_KEY, DEFAULT_CACHE_ENABLED),
		CacheBackend:                      EnvOrDefault(CACHE_BACKEND_ENVIRONMENT_KEY, DEFAULT_CACHE_BACKEND),
		CachePrefix:                       EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
		RedisEndpointURL:                  os.Getenv(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY),
		RedisPassword:                     os.Getenv(REDIS_PASSWORD_ENVIRONMENT_KEY),
		RedisDB:                           EnvOrDefaultInt(REDIS_DB_ENVIRONMENT_KEY, 0),
		FetchMaxAttempts:                  EnvOrDefaultInt(FETCH_MAX_ATTEMPTS_ENVIRONMENT_KEY, DEFAULT_FETCH_MAX_ATTEMPTS),
		FetchRetryInterval:                EnvOrDefaultDuration(FETCH_RETRY_INTERVAL_ENVIRONMENT_KEY, DEFAULT_FETCH_RETRY_INTERVAL),
		FetchTimeout:                      EnvOrDefaultDuration(FETCH_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_FETCH_TIMEOUT),
		RetryOnEmptyMaxAttempts:           EnvOrDefaultInt(RETRY_ON_EMPTY_MAX_ATTEMPTS_ENVIRONMENT_KEY, DEFAULT_RETRY_ON_EMPTY_MAX_ATTEMPTS),
		RetryOnEmptyInterval:              EnvOrDefaultDuration(RETRY_ON_EMPTY_INTERVAL_ENVIRONMENT_KEY, DEFAULT_RETRY_ON_EMPTY_INTERVAL),
		RetryOnRateLimitMaxAttempts:       EnvOrDefaultInt(RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS_ENVIRONMENT_KEY, DEFAULT_RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS),
		RetryOnRateLimitInterval:          EnvOrDefaultDuration(RETRY_ON_RATE_LIMIT_INTERVAL_ENVIRONMENT_KEY, DEFAULT_RETRY_ON_RATE_LIMIT_INTERVAL),
		MetricDatabaseEnabled:             EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRIC_DATABASE_ENABLED),
		DatabaseName:                      os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:               os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                  os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                  os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseSSLEnabled:                EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:       EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseReadTimeoutSeconds:        EnvOrDefaultInt64(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS),
		DatabaseMaxIdleConnections:        EnvOrDefaultInt64(DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS),
		DatabaseConnectionMaxIdleSeconds:  EnvOrDefaultInt64(DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS),
		DatabaseMaxOpenConnections:        EnvOrDefaultInt64(DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS),
		RunDatabaseMigrations:             EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		MetricPruningEnabled:              EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ENABLED),
		MetricPruningRoutineInterval:      time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningRoutineDelayFirstRun: time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)) * time.Second,
		MetricPruningMaxHistoryDays:       EnvOrDefaultInt(METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS),
	}
}
