// Package registry resolves structured message identifiers to human readable
// messages and builds the error envelopes returned by the HTTP surface.
//
// Registries are loaded once at startup and never mutated afterwards, so a
// *Registry is safe for concurrent use without locking.
package registry
