// Package events implements the event service: durable webhook subscriptions
// and concurrent event delivery.
//
// Owns:
//   - Event and EventRecord wire types
//   - Subscription stores (JSON document on disk, or SQLite)
//   - Publisher: bounded fan-out to every subscriber, fixed-interval retry,
//     eviction of subscribers that exhaust their retries
//
// Does not own:
//   - The HTTP surface used to create or remove subscriptions
//   - Deciding which lifecycle changes produce events
//
// Invariants:
//   - Every Create/Remove rewrites the persisted state before returning
//   - Store writes are serialized; Snapshot returns a copy
//   - Publish returns only after every subscriber in its snapshot was attempted
//   - A subscriber is removed only after RetryAttempts failed deliveries
package events
