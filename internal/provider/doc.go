// Package provider is the boundary to the hardware management bus.
//
// Owns:
//   - The Provider contract (inventory, power, indicator and sensor queries)
//   - A fixture-backed Provider that simulates a BMC for development and tests
//   - An OpenBMC D-Bus Provider
//
// Does not own:
//   - Resource tree shape or Redfish property naming beyond plain facts
//
// Invariants:
//   - Providers are safe for concurrent use
//   - Bus failures are reported as errors wrapping ErrUnavailable; callers decide how to degrade
package provider
