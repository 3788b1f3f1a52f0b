// Package vad locates speech in decoded audio. Voice embeddings are only
// worth extracting from spans where someone is actually talking, and the
// verification engine scores clips differently when no speech is present.
//
// The WebRTC classifier is used when cgo is available; otherwise detection
// falls back to a frame-energy heuristic with the same interval semantics.
package vad
