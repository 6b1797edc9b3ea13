// Package batchmdw is responsible for answering batch requests.
//
// The primary export is BatchProcessor which runs each individual request
// in the batch through the pipeline as if it were a single request.
// The responses are then combined into a single JSON array, in request order.
//
// The cache status header will be set to:
//   - `HIT` when all requests are cache hits
//   - `MISS` when all requests are cache misses
//   - `PARTIAL` when there is a mix of cache hits and misses
package batchmdw
