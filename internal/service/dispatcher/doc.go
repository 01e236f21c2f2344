// Package dispatcher routes classified events to the push and telemetry
// channels.
//
// One Dispatch call runs both channels concurrently and waits for both.
// A failure on one channel never prevents or fails the other, and a partial
// delivery is reported in the Result, not as an error. The dispatcher also
// keeps the working snapshot: the caller's best-known sensor state, fed by
// Dispatch fragments and Observe calls and published by PublishPeriodic.
package dispatcher
