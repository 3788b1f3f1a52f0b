// Package store persists biometric profiles in SQLite.
//
// The Store manages database connections, schema initialization, and the four
// tables that make up a profile: users, enrollment sessions, embedding vectors,
// and verification outcomes. Vectors are stored as little-endian float32 blobs;
// aggregate rows (modality means and the sync baseline) live in the same
// embeddings table as raw samples, distinguished by their metadata type.
//
// Schema changes bump the version in schema.go; existing databases must be
// deleted and profiles re-enrolled to adopt the new schema.
package store
