// Package cache provides the gateway response cache.
//
// The cache is a bounded LRU keyed by a content hash of the logical request.
// An entry holds either a value (a successful response) or a Failure (a
// status and message remembered so that repeated calls to a broken upstream
// fail fast instead of hammering it). Each entry carries its own expiry;
// expiry is enforced lazily on read and there is no background sweep.
//
// # Keys
//
// RequestKey hashes method, path, target, headers and body with BLAKE3.
// Headers are hashed exactly as given unless KeyOptions.NormalizeHeaders is
// set, so two requests that differ only in header name casing produce
// different keys by default.
//
// # Concurrency
//
// Get and Set are safe for concurrent use but a Get followed by a Set is not
// atomic: two concurrent misses for one key may both reach the upstream and
// both write the entry (last writer wins). Do coalesces concurrent callers for
// the same key onto a single function call for callers that want at most one
// in-flight upstream call per key.
package cache
