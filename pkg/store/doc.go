// Package store persists role assignments, object role grants, and workflow
// instances to a SQL database.
//
// The engines in pkg/policy and pkg/workflow are authoritative at runtime;
// the store is a write-through log that lets a restarted process replay its
// state. SQL is kept portable between PostgreSQL (production) and SQLite
// (tests).
//
// Usage:
//
//	st := store.New(db)
//	if err := st.Migrate(ctx); err != nil {
//		return err
//	}
//	assignments, err := st.ListAssignments(ctx)
package store
