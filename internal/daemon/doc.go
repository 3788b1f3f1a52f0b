// Package daemon coordinates the long-running likeness process.
//
// It wires configuration, the embedding store, the enrollment coordinator,
// and the verification engine into a single lifecycle with flock-based
// locking to prevent multiple instances, and exposes them over a local HTTP
// API with optional bearer-token auth. Notifications for completed
// enrollments and verification verdicts are emitted here so the engines
// underneath stay transport-free.
//
// Keep orchestration logic here: scoring and session semantics live in
// enroll and verify while the daemon focuses on startup, shutdown, and the
// HTTP surface.
package daemon
