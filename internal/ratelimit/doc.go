// Package ratelimit implements the per-channel minimum-interval gate.
//
// Each channel has a minimum interval between confirmed sends. Checking the
// gate never mutates it; only MarkSent (after a confirmed delivery) moves the
// channel's last-sent timestamp forward. ForceAcquire is the life-safety
// override: it moves the timestamp backwards so the next send is allowed, and
// Restore undoes it when that send is not confirmed.
package ratelimit
