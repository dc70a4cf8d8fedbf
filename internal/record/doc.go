// Package record defines the transient data a notification is built from.
//
// An Event is created per log call by pkg/logx and discarded once the
// notification sink returns. It carries the level, the rendered message and,
// optionally, exception info and a read-only snapshot of the inbound HTTP
// request that was being served when the error was logged.
//
// # Sections
//
// A Snapshot exposes four fixed sections (query, form, cookies, metadata).
// Callers address them through the Section enumeration rather than by name, so
// every lookup is a switch over a closed set.
package record
