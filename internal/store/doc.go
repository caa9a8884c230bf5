// Package store holds the live snapshot of the reconciled feed together with
// the process-lifetime fetch statistics.
//
// Exactly one Snapshot is live at a time. It is replaced as a whole through
// an atomic pointer swap, so concurrent readers never observe a half-updated
// value. Subscribe lets the websocket hub and the notifier react to every
// publish without polling.
//
// Stats carries success/error counters, the last error and its kind, and a
// success ratio over the last 20 attempts.
package store
