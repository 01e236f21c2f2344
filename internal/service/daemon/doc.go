// Package daemon wires the garage alert process: configuration, both
// delivery channels, the dispatcher, snapshot persistence, the gRPC API,
// the metrics endpoint and the periodic telemetry job.
package daemon
