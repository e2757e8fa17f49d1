// Package sessionspan maps a conversation session ID to the exported parent
// telemetry handle of that session, so every turn of one conversation nests
// under a single root span instead of producing disconnected traces.
//
// Two backends satisfy the same Cache contract: an in-process map with a
// periodic sweeper (single-instance deployments and tests) and Redis with
// native key expiry (the production backend — multiple instances share one
// view of session parentage). Lookups are O(1), writes refresh the TTL, and
// expiry is eventually enforced even when the sweep is delayed.
package sessionspan

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a session keeps its parent span handle.
// A turn arriving after expiry starts a fresh conversation trace.
const DefaultTTL = 30 * time.Minute

// Cache stores exported parent span handles keyed by session ID.
// Implementations must be safe for concurrent use; last-write-wins on
// concurrent turns of one session is acceptable since the handle only
// affects trace grouping, never answer correctness.
type Cache interface {
	// Get returns the exported handle for the session, or empty string
	// when absent or expired.
	Get(ctx context.Context, sessionID string) (string, error)

	// Set stores the handle and (re)arms its TTL.
	Set(ctx context.Context, sessionID, exported string, ttl time.Duration) error
}
