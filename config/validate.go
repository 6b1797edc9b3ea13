package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ValidLogLevels     = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
	ValidBlockRefModes = [3]string{BLOCK_REF_MODE_REWRITE, BLOCK_REF_MODE_SHADOW, BLOCK_REF_MODE_NONE}
	ValidCacheBackends = [2]string{CACHE_BACKEND_MEMORY, CACHE_BACKEND_REDIS}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var allErrs error

	if !contains(ValidLogLevels[:], config.LogLevel) {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	if _, err := strconv.Atoi(config.ProxyServicePort); err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	upstreamURL, err := url.Parse(config.UpstreamRPCURL)
	if err != nil || upstreamURL.Scheme == "" || upstreamURL.Host == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %q, must be an absolute url", UPSTREAM_RPC_URL_ENVIRONMENT_KEY, config.UpstreamRPCURL))
	}

	if config.BlockTrackerPollInterval <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", BLOCK_TRACKER_POLL_INTERVAL_ENVIRONMENT_KEY, config.BlockTrackerPollInterval))
	}

	if !contains(ValidBlockRefModes[:], config.BlockRefMode) {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, supported values are %v", BLOCK_REF_MODE_ENVIRONMENT_KEY, config.BlockRefMode, ValidBlockRefModes))
	}

	if config.CacheEnabled {
		if !contains(ValidCacheBackends[:], config.CacheBackend) {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, supported values are %v", CACHE_BACKEND_ENVIRONMENT_KEY, config.CacheBackend, ValidCacheBackends))
		}
		if config.CacheBackend == CACHE_BACKEND_REDIS && config.RedisEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", REDIS_ENDPOINT_URL_ENVIRONMENT_KEY, config.RedisEndpointURL))
		}
		if strings.Contains(config.CachePrefix, ":") {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not contain colon symbol", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
		if config.CachePrefix == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
	}

	if config.FetchMaxAttempts < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", FETCH_MAX_ATTEMPTS_ENVIRONMENT_KEY, config.FetchMaxAttempts))
	}

	if config.RetryOnEmptyMaxAttempts < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", RETRY_ON_EMPTY_MAX_ATTEMPTS_ENVIRONMENT_KEY, config.RetryOnEmptyMaxAttempts))
	}

	if config.RetryOnRateLimitMaxAttempts < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", RETRY_ON_RATE_LIMIT_MAX_ATTEMPTS_ENVIRONMENT_KEY, config.RetryOnRateLimitMaxAttempts))
	}

	if config.MetricDatabaseEnabled {
		if config.DatabaseEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, config.DatabaseEndpointURL))
		}
		if config.MetricPruningEnabled && config.MetricPruningMaxHistoryDays < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, config.MetricPruningMaxHistoryDays))
		}
		if config.MetricPruningEnabled && config.MetricPruningRoutineInterval <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, config.MetricPruningRoutineInterval))
		}
	}

	return allErrs
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
