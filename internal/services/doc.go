// Package services defines shared utilities consumed by the enrollment and
// verification engines and by the daemon's API layer.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, user IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses (not found vs bad request vs upstream).
//
// Use these helpers when wiring new service logic so operational behaviour
// (error handling, observability) stays uniform across the system.
package services
