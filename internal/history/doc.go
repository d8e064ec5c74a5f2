// Package history persists one row per extraction session in SQLite.
//
// The store is append-only: Record inserts a finished session and List
// returns the most recent ones. Schema creation is serialized across
// processes with a sidecar lock file so two concurrent extractions against
// a fresh data directory do not race on CREATE TABLE.
package history
