package engine

import (
	"context"
	"sync/atomic"
)

type requestInfoContextKey struct{}

// RequestInfo records how the pipeline answered a request,
// middleware flag it as the request passes through
type RequestInfo struct {
	cacheHit     atomic.Bool
	deduplicated atomic.Bool
}

// WithRequestInfo returns a context carrying a fresh RequestInfo
func WithRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	info := &RequestInfo{}

	return context.WithValue(ctx, requestInfoContextKey{}, info), info
}

// RequestInfoFromContext returns the RequestInfo of ctx or nil when there is none
func RequestInfoFromContext(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestInfoContextKey{}).(*RequestInfo)

	return info
}

// MarkCacheHit flags the request of ctx as served from the block cache
func MarkCacheHit(ctx context.Context) {
	if info := RequestInfoFromContext(ctx); info != nil {
		info.cacheHit.Store(true)
	}
}

// MarkDeduplicated flags the request of ctx as answered by another in-flight request
func MarkDeduplicated(ctx context.Context) {
	if info := RequestInfoFromContext(ctx); info != nil {
		info.deduplicated.Store(true)
	}
}

// CacheHit reports whether the request was served from the block cache
func (i *RequestInfo) CacheHit() bool {
	return i.cacheHit.Load()
}

// Deduplicated reports whether the request joined another in-flight request
func (i *RequestInfo) Deduplicated() bool {
	return i.deduplicated.Load()
}
