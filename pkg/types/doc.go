// Package types defines the entity types, configuration, capability
// ports, and standard error types for the Aegis offline-first field
// reporting engine.
package types
