// Package api defines wire-format types and converters for the daemon's HTTP
// API, plus the client the CLI uses to reach it. It translates internal
// enrollment and verification models into transport-friendly DTOs so remote
// consumers never couple to internal types.
//
// # Key Types
//
// EnrollStartResponse / ChunkResponse / CompletionResponse: the enrollment
// session lifecycle as seen over the wire.
//
// StrengthResponse: cross-session profile strength with feature coverage.
//
// VerifyResponse: verification verdict with score breakdown, anomaly list,
// and analysis details.
//
// DaemonStatus: runtime information including external dependency checks.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Timestamps use RFC3339 with milliseconds.
// Slices and maps that read as collections are never null on the wire; empty
// ones encode as [] and {}. A strength report for a user with no completed
// sessions omits the sample totals and last_updated entirely.
package api
