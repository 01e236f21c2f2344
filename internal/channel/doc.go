// Package channel holds what the push and telemetry channel adapters share:
// the delivery outcome taxonomy, the injected HTTP transport and helpers for
// logging remote endpoints without leaking credentials.
package channel
