package ratelimit

import (
	"sync"
	"time"
)

// Channel identifies one reporting destination.
type Channel string

const (
	// ChannelPush is the push notification channel.
	ChannelPush Channel = "push"
	// ChannelTelemetry is the time-series telemetry channel.
	ChannelTelemetry Channel = "telemetry"
)

// channelState is the gate state of one channel.
type channelState struct {
	// mu serializes access to the fields below.
	mu sync.Mutex
	// minInterval is the minimum time between confirmed sends.
	minInterval time.Duration
	// lastSentAt is the time of the last confirmed send; zero means never.
	lastSentAt time.Time
}

// Limiter gates sends per channel. Channels share no state, so each one has
// its own lock.
type Limiter struct {
	// mu protects the channels map, not the channel states.
	mu sync.RWMutex
	// channels holds the registered channel states.
	channels map[Channel]*channelState
}

// New creates an empty limiter. Unregistered channels have no minimum interval.
func New() *Limiter {
	return &Limiter{
		channels: make(map[Channel]*channelState),
	}
}

// Register sets the minimum interval of a channel. Registering again keeps
// the channel's last-sent time.
func (l *Limiter) Register(ch Channel, minInterval time.Duration) {
	if minInterval < 0 {
		minInterval = 0
	}

	state := l.state(ch)

	state.mu.Lock()
	state.minInterval = minInterval
	state.mu.Unlock()
}

// TryAcquire reports whether a send on ch is allowed at now, that is
// now - lastSentAt >= minInterval. It does not mutate any state.
func (l *Limiter) TryAcquire(ch Channel, now time.Time) bool {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.allowed(now)
}

// ForceAcquire makes the next send on ch allowed at now even inside the
// cooldown window by moving lastSentAt back to now - minInterval. It is
// reserved for Emergency-severity events. It returns the previous
// lastSentAt; a caller whose send is not confirmed must pass it to Restore.
func (l *Limiter) ForceAcquire(ch Channel, now time.Time) time.Time {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	prev := state.lastSentAt

	if !state.allowed(now) {
		state.lastSentAt = now.Add(-state.minInterval)
	}

	return prev
}

// Restore puts back the lastSentAt returned by ForceAcquire, closing the
// override without a confirmed send.
func (l *Limiter) Restore(ch Channel, lastSentAt time.Time) {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.lastSentAt = lastSentAt
}

// MarkSent records a confirmed send on ch at now.
func (l *Limiter) MarkSent(ch Channel, now time.Time) {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.lastSentAt = now
}

// Reset returns ch to the never-sent state so the next send is allowed.
func (l *Limiter) Reset(ch Channel) {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.lastSentAt = time.Time{}
}

// UntilNextAllowed returns how long until a send on ch is allowed; zero if
// it is allowed already.
func (l *Limiter) UntilNextAllowed(ch Channel, now time.Time) time.Duration {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.allowed(now) {
		return 0
	}

	return state.minInterval - now.Sub(state.lastSentAt)
}

// LastSentAt returns the last confirmed send time on ch; zero if never.
func (l *Limiter) LastSentAt(ch Channel) time.Time {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.lastSentAt
}

// MinInterval returns the registered minimum interval of ch.
func (l *Limiter) MinInterval(ch Channel) time.Duration {
	state := l.state(ch)

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.minInterval
}

// state returns the state of ch, creating it on first use.
func (l *Limiter) state(ch Channel) *channelState {
	l.mu.RLock()
	state, ok := l.channels[ch]
	l.mu.RUnlock()

	if ok {
		return state
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok = l.channels[ch]; ok {
		return state
	}

	state = new(channelState)
	l.channels[ch] = state

	return state
}

// allowed must be called with s.mu held.
func (s *channelState) allowed(now time.Time) bool {
	if s.lastSentAt.IsZero() {
		return true
	}

	return now.Sub(s.lastSentAt) >= s.minInterval
}
