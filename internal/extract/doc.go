// Package extract produces biometric embeddings from decoded media and
// carries the similarity math shared by enrollment and verification.
//
// Embedding models run out of process: Runner stages audio and frames on
// disk and execs the configured model sidecar, one JSON request per
// modality. The similarity helpers operate on the float32 vectors those
// models emit, so every modality scores matches through the same code.
package extract
