// Package history records the outcome of every sync, prune, and bootstrap
// invocation in a small SQLite database so operators can review past runs
// with `mediasync history` and `mediasync status`.
//
// The schema is managed by ordered SQL migrations embedded in the binary and
// tracked in the schema_migrations table.
package history
