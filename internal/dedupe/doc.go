// Package dedupe rejects replayed requests by remembering idempotency keys
// for a bounded time in a size-limited cache.
package dedupe
