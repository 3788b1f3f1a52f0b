// Package verify scores submitted content against a user's enrolled
// profile and flags anomalies that suggest synthetic media.
//
// A verification runs the same extraction pipeline as enrollment over the
// whole clip, compares each modality against the reconstructed profile,
// fuses the scores into one confidence value, and persists the verdict.
// Verifications hold no locks: they read whatever profile state is
// committed at the time and append one result row.
package verify
