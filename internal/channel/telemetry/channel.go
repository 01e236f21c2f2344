package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/connectivity"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/ratelimit"
	"github.com/oshokin/garage-alert/internal/version"
)

const (
	// DefaultBaseURL is the ThingSpeak API root.
	DefaultBaseURL = "https://api.thingspeak.com"
	// DefaultMinInterval is the backend's free-tier write interval.
	DefaultMinInterval = 30 * time.Second
	// DefaultTimeout bounds one remote call.
	DefaultTimeout = 10 * time.Second
	// PlaceholderWriteKey is the unconfigured key shipped in sample settings.
	PlaceholderWriteKey = "YOUR_THINGSPEAK_WRITE_KEY"

	maxResponseBytes = 16 << 10
)

var errUnexpectedStatus = errors.New("unexpected HTTP status")

// Config holds the telemetry backend settings.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// ChannelID identifies the backend channel; required for reads.
	ChannelID string
	// WriteKey is the write credential.
	WriteKey string
	// ReadKey is the read credential; empty for public channels.
	ReadKey string
	// MinInterval is the cooldown between acknowledged writes; zero disables it.
	MinInterval time.Duration
	// Timeout bounds one remote call.
	Timeout time.Duration
}

// Store persists the last acknowledged snapshot.
type Store interface {
	Save(ctx context.Context, s alert.Snapshot) error
}

// Result is the outcome of one write.
type Result struct {
	// Outcome classifies what happened.
	Outcome channel.Outcome
	// Delivered is true only when the backend answered 200.
	Delivered bool
}

// gate selects how a write passes the cooldown.
type gate uint8

const (
	// gateRoutine drops the write inside the cooldown.
	gateRoutine gate = iota
	// gateForce overrides the cooldown once.
	gateForce
	// gateReset clears the cooldown history before writing.
	gateReset
)

// Channel writes snapshots to the backend. It is safe for concurrent use;
// writes are serialized.
type Channel struct {
	// cfg is the normalized configuration.
	cfg Config
	// doer performs the HTTP calls.
	doer channel.Doer
	// clock timestamps gate checks and acknowledged writes.
	clock ratelimit.Clock
	// limiter is the cooldown gate, possibly shared with other channels.
	limiter *ratelimit.Limiter
	// probe answers the connectivity question.
	probe connectivity.Probe
	// store persists acknowledged snapshots; nil disables persistence.
	store Store

	// sendMu serializes gate check, remote call and state update.
	sendMu sync.Mutex

	// mu guards current and sendCount.
	mu sync.RWMutex
	// current is the last snapshot the backend acknowledged.
	current alert.Snapshot
	// sendCount counts acknowledged writes.
	sendCount int

	// quietDrops throttles the rate-limited debug log.
	quietDrops rate.Sometimes
}

// Option configures a Channel.
type Option func(*Channel)

// WithHTTPClient replaces the HTTP transport.
func WithHTTPClient(doer channel.Doer) Option {
	return func(c *Channel) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithClock replaces the clock.
func WithClock(clock ratelimit.Clock) Option {
	return func(c *Channel) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLimiter shares a limiter with other channels.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Channel) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithProbe replaces the connectivity probe.
func WithProbe(probe connectivity.Probe) Option {
	return func(c *Channel) {
		if probe != nil {
			c.probe = probe
		}
	}
}

// WithStore persists every acknowledged snapshot.
func WithStore(store Store) Option {
	return func(c *Channel) {
		c.store = store
	}
}

// WithInitialSnapshot seeds the retained snapshot, e.g. one restored from disk.
func WithInitialSnapshot(s alert.Snapshot) Option {
	return func(c *Channel) {
		c.current = s
	}
}

// New creates a telemetry channel. A missing write key is reported as
// Misconfigured on every write, not as a construction error.
func New(cfg Config, opts ...Option) *Channel {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Channel{
		cfg:        cfg,
		doer:       &http.Client{Timeout: cfg.Timeout},
		clock:      ratelimit.SystemClock(),
		limiter:    ratelimit.New(),
		probe:      connectivity.Static(true),
		quietDrops: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.limiter.Register(ratelimit.ChannelTelemetry, cfg.MinInterval)

	return c
}

// Configured reports whether a real write key is set.
func (c *Channel) Configured() bool {
	key := strings.TrimSpace(c.cfg.WriteKey)

	return key != "" && key != PlaceholderWriteKey
}

// IsReady reports whether the channel can write: credential present and
// connectivity present.
func (c *Channel) IsReady(ctx context.Context) bool {
	return c.Configured() && c.probe.Connected(ctx)
}

// CurrentSnapshot returns the last snapshot the backend acknowledged.
func (c *Channel) CurrentSnapshot() alert.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// SendCount returns the number of acknowledged writes.
func (c *Channel) SendCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sendCount
}

// ResetCounter zeroes the write counter.
func (c *Channel) ResetCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendCount = 0
}

// SecondsUntilNextUpdate returns the whole seconds left in the cooldown.
func (c *Channel) SecondsUntilNextUpdate() int {
	return int(c.limiter.UntilNextAllowed(ratelimit.ChannelTelemetry, c.clock.Now()) / time.Second)
}

// Update writes the whole snapshot, subject to the cooldown.
func (c *Channel) Update(ctx context.Context, s alert.Snapshot) Result {
	return c.write(ctx, s, gateRoutine)
}

// UpdatePeriodic writes a routine sample. It never overrides the cooldown,
// so a scheduler can call it more often than the backend accepts.
func (c *Channel) UpdatePeriodic(ctx context.Context, s alert.Snapshot) Result {
	s.EventCode = alert.EventCodeNone
	s.StatusText = ""

	return c.write(logger.WithName(ctx, "periodic"), s, gateRoutine)
}

// UpdateField writes a single numbered field, subject to the cooldown.
func (c *Channel) UpdateField(ctx context.Context, field int, value float64) Result {
	ctx = logger.WithKV(logger.WithName(ctx, "telemetry"), "field", field)

	if !alert.ValidField(field) {
		logger.Warn(ctx, "Unknown telemetry field")

		return Result{Outcome: channel.OutcomeSkipped}
	}

	form := url.Values{}
	form.Set("api_key", c.cfg.WriteKey)
	form.Set(fieldKey(field), formatNumber(value))

	return c.send(ctx, form, gateRoutine, func(s alert.Snapshot) alert.Snapshot {
		return s.WithField(field, value)
	})
}

// write sends the whole snapshot and replaces the retained one on success.
func (c *Channel) write(ctx context.Context, s alert.Snapshot, g gate) Result {
	ctx = logger.WithKV(logger.WithName(ctx, "telemetry"), "event_code", int(s.EventCode))

	form := url.Values{}
	form.Set("api_key", c.cfg.WriteKey)

	for i, v := range s.Fields() {
		form.Set(fieldKey(i+1), formatNumber(v))
	}

	if s.StatusText != "" {
		form.Set("status", s.StatusText)
	}

	return c.send(ctx, form, g, func(alert.Snapshot) alert.Snapshot {
		return s
	})
}

// send runs the common write path: readiness, gate, call, state update.
// next computes the retained snapshot after an acknowledged write.
func (c *Channel) send(
	ctx context.Context,
	form url.Values,
	g gate,
	next func(alert.Snapshot) alert.Snapshot,
) Result {
	if !c.Configured() {
		logger.Warn(ctx, "Telemetry channel is not configured, write key is missing")

		return Result{Outcome: channel.OutcomeMisconfigured}
	}

	if !c.probe.Connected(ctx) {
		logger.Warn(ctx, "No connectivity, telemetry not sent")

		return Result{Outcome: channel.OutcomeUnavailable}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	now := c.clock.Now()
	forced := false

	var prevSentAt time.Time

	switch g {
	case gateReset:
		c.limiter.Reset(ratelimit.ChannelTelemetry)
	case gateForce:
		if !c.limiter.TryAcquire(ratelimit.ChannelTelemetry, now) {
			logger.Warn(ctx, "Emergency telemetry update bypasses cooldown")

			prevSentAt = c.limiter.ForceAcquire(ratelimit.ChannelTelemetry, now)
			forced = true
		}
	default:
		if !c.limiter.TryAcquire(ratelimit.ChannelTelemetry, now) {
			c.quietDrops.Do(func() {
				logger.DebugKV(ctx, "Telemetry update dropped by cooldown",
					"retry_in", c.limiter.UntilNextAllowed(ratelimit.ChannelTelemetry, now).String())
			})

			return Result{Outcome: channel.OutcomeRateLimited}
		}
	}

	if err := c.post(ctx, form); err != nil {
		logger.ErrorKV(ctx, "Telemetry update failed", "error", err)

		if forced {
			c.limiter.Restore(ratelimit.ChannelTelemetry, prevSentAt)
		}

		return Result{Outcome: channel.OutcomeTransportFailure}
	}

	c.limiter.MarkSent(ratelimit.ChannelTelemetry, c.clock.Now())

	c.mu.Lock()
	c.current = next(c.current)
	c.sendCount++
	snapshot, count := c.current, c.sendCount
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, snapshot); err != nil {
			logger.ErrorKV(ctx, "Failed to persist telemetry snapshot", "error", err)
		}
	}

	logger.InfoKV(ctx, "Telemetry updated", "send_count", count)

	return Result{Outcome: channel.OutcomeDelivered, Delivered: true}
}

// post performs the update call; any answer other than 200 is a failure.
func (c *Channel) post(ctx context.Context, form url.Values) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/update"

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", channel.RedactURL(endpoint), err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

func fieldKey(field int) string {
	return "field" + strconv.Itoa(field)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
