// Package ctl implements the garage-alertctl operations: raising events,
// pushing sensor readings, reading diagnostics and resetting counters on a
// running daemon.
package ctl
