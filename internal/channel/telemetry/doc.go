// Package telemetry publishes the garage snapshot to a ThingSpeak-compatible
// time-series backend.
//
// Every write carries all eight numbered fields and an optional status text.
// Routine writes respect the channel cooldown and are dropped inside it;
// Intrusion and FireAlert writes override it. The channel keeps the last
// snapshot the backend acknowledged and, when a Store is attached, persists
// it after each acknowledged write.
package telemetry
