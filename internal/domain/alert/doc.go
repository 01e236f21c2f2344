// Package alert contains the core domain types of the garage alert engine.
//
// It defines the closed set of event kinds with their intrinsic severity,
// the System Snapshot mirrored to telemetry, and the static Dispatch Policy
// Table that drives push notification parameters.
package alert
