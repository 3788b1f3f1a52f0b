// Package enroll manages live enrollment sessions and builds user profiles
// from the embeddings each video chunk yields.
//
// A session lives in memory while the user records: chunks arrive one at a
// time, each is decoded, run through voice activity detection and the
// embedding models, and its results are persisted immediately and appended
// to the session accumulators. Each session owns a mutex, so chunks for one
// session are processed strictly in order while independent sessions run in
// parallel. Completion aggregates the accumulators into profile rows,
// scores the session, marks the database row complete, and evicts the
// session from memory.
package enroll
