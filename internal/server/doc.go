// Package server binds the Redfish resource tree to HTTP.
//
// Owns:
//   - HTTP routing, handlers, and request/response contracts
//   - Mapping tree and store errors onto registry error envelopes
//   - Access logging, panic recovery and request metrics
//
// Does not own:
//   - Resource data and action semantics (internal/redfish)
//   - Subscription persistence and event delivery (internal/events)
//
// Invariants:
//   - JSON responses go through writeJSON
//   - Every error response carries a Base registry GeneralError envelope
//   - Subscription create and remove publish ResourceAdded/ResourceRemoved
package server
