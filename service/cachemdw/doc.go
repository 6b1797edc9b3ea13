// Package cachemdw is responsible for caching EVM requests by the block they read from
// and provides the corresponding middleware.
// package can work with any underlying storage which implements the cache.BlockCache interface
//
// The middleware resolves the block tag of a request to a block number, then either answers
// from the cache or lets the request proceed and caches the result on the way back.
// Resolving "latest" clears every block below the head from the cache.
package cachemdw
