// Package logging assembles the slog loggers used across framex.
//
// It owns the console and JSON handlers, level parsing, and output routing,
// and provides attribute helpers plus WarnWithContext so warnings carry an
// event type, a hint, and an impact. NewNop returns a logger that discards
// everything, for tests and for wiring code that has no logger yet.
package logging
