package testsupport

import (
	"context"
	"testing"

	"likeness/internal/config"
	"likeness/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewUser creates a user for tests using the provided store.
func NewUser(t testing.TB, st *store.Store, name, email string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), name, email)
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// NewSession opens an enrollment session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, userID string) *store.Session {
	t.Helper()

	session, err := st.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
