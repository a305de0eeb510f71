// Package redfish implements the resource tree: path resolution, lazy
// static and dynamic data fill, action dispatch and odata metadata.
//
// Owns:
//   - Node and the per-kind fill behavior table
//   - Path and metadata path derivation at attach time
//   - Action registration and argument validation
//   - The resource catalogue assembled by Build
//
// Does not own:
//   - HTTP binding and error envelopes (internal/server)
//   - Hardware queries (internal/provider)
//   - Event delivery (internal/events)
//
// Invariants:
//   - A node's path never changes after attach; sibling names are unique
//   - Static data is filled exactly once per node, dynamic data on every read
//   - Readers get a copy of the attributes, never the live map
//   - Topology is fixed once Build returns
package redfish
