// Package retrymdw provides middleware retrying requests which failed for reasons
// expected to pass, and is made of two middlewares:
// - RetryOnEmpty, for requests pinned to a block the head has reached that came back empty,
// which happens when a load balanced node lags behind the others
// - RetryOnRateLimit, for requests rejected by the upstream's rate limiter
package retrymdw
