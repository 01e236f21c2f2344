package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
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
	// DefaultAPIURL is the Pushsafer API endpoint.
	DefaultAPIURL = "https://www.pushsafer.com/api"
	// DefaultDevice addresses every registered device.
	DefaultDevice = "a"
	// DefaultTimeout bounds one remote call.
	DefaultTimeout = 10 * time.Second
	// PlaceholderKey is the unconfigured key shipped in sample settings.
	PlaceholderKey = "YOUR_PUSHSAFER_KEY"

	// maxResponseBytes caps how much of the provider answer is read.
	maxResponseBytes = 64 << 10
)

// errUnexpectedStatus is wrapped for non-2xx transport answers.
var errUnexpectedStatus = errors.New("unexpected HTTP status")

// Config holds the push provider settings.
type Config struct {
	// APIURL is the provider endpoint.
	APIURL string
	// PrivateKey is the recipient credential.
	PrivateKey string
	// Device selects the target device or group; "a" means all.
	Device string
	// MinInterval is the cooldown between confirmed sends; zero disables it.
	MinInterval time.Duration
	// Timeout bounds one remote call.
	Timeout time.Duration
}

// Result is the outcome of one Send.
type Result struct {
	// Outcome classifies what happened.
	Outcome channel.Outcome
	// Delivered is true only for a confirmed delivery.
	Delivered bool
	// RemoteID is the provider message identifier; zero when absent.
	RemoteID int64
}

// Channel delivers push notifications. It is safe for concurrent use;
// sends on one channel are serialized.
type Channel struct {
	// cfg is the normalized configuration.
	cfg Config
	// doer performs the HTTP call.
	doer channel.Doer
	// clock timestamps acquisitions and confirmed sends.
	clock ratelimit.Clock
	// limiter is the cooldown gate, possibly shared with other channels.
	limiter *ratelimit.Limiter
	// probe answers the connectivity question.
	probe connectivity.Probe

	// mu serializes gate check, remote call and state update.
	mu sync.Mutex
	// sendCount counts confirmed deliveries.
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

// New creates a push channel. Missing settings get defaults; a missing key
// is not an error here, the channel simply reports Misconfigured on Send.
func New(cfg Config, opts ...Option) *Channel {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	if cfg.Device == "" {
		cfg.Device = DefaultDevice
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

	c.limiter.Register(ratelimit.ChannelPush, cfg.MinInterval)

	return c
}

// Configured reports whether a real credential is set.
func (c *Channel) Configured() bool {
	key := strings.TrimSpace(c.cfg.PrivateKey)

	return key != "" && key != PlaceholderKey
}

// IsReady reports whether the channel can send: credential present and
// connectivity present.
func (c *Channel) IsReady(ctx context.Context) bool {
	return c.Configured() && c.probe.Connected(ctx)
}

// SendCount returns the number of confirmed deliveries.
func (c *Channel) SendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCount
}

// ResetCounter zeroes the delivery counter.
func (c *Channel) ResetCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendCount = 0
}

// UntilNextAllowed returns the remaining cooldown of the channel.
func (c *Channel) UntilNextAllowed() time.Duration {
	return c.limiter.UntilNextAllowed(ratelimit.ChannelPush, c.clock.Now())
}

// SendTest sends an operator test notification using the default policy.
func (c *Channel) SendTest(ctx context.Context) Result {
	ev := alert.NewEvent(alert.KindTest, alert.WithSource("operator"), alert.WithTime(c.clock.Now()))

	return c.Send(ctx, ev, alert.DefaultPolicyTable().Lookup(alert.KindTest))
}

// Send delivers ev using policy. Emergency events bypass the cooldown; every
// other severity is dropped silently while the cooldown is running.
func (c *Channel) Send(ctx context.Context, ev alert.Event, policy alert.Policy) Result {
	ctx = logger.WithKV(logger.WithName(ctx, "push"), "kind", ev.Kind.String(), "severity", ev.Severity.String())

	if !c.Configured() {
		logger.Warn(ctx, "Push channel is not configured, private key is missing")

		return Result{Outcome: channel.OutcomeMisconfigured}
	}

	if !c.probe.Connected(ctx) {
		logger.Warn(ctx, "No connectivity, push notification not sent")

		return Result{Outcome: channel.OutcomeUnavailable}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	forced := false

	var prevSentAt time.Time

	if ev.Severity.IsEmergency() {
		if !c.limiter.TryAcquire(ratelimit.ChannelPush, now) {
			logger.Warn(ctx, "Emergency push bypasses cooldown")

			prevSentAt = c.limiter.ForceAcquire(ratelimit.ChannelPush, now)
			forced = true
		}
	} else if !c.limiter.TryAcquire(ratelimit.ChannelPush, now) {
		c.quietDrops.Do(func() {
			logger.DebugKV(ctx, "Push notification dropped by cooldown",
				"retry_in", c.limiter.UntilNextAllowed(ratelimit.ChannelPush, now).String())
		})

		return Result{Outcome: channel.OutcomeRateLimited}
	}

	body := c.buildForm(ev, policy.ForSeverity(ev.Severity))

	remoteID, outcome, err := c.post(ctx, body)
	if err != nil {
		logger.ErrorKV(ctx, "Push notification failed", "outcome", outcome.String(), "error", err)

		if forced {
			c.limiter.Restore(ratelimit.ChannelPush, prevSentAt)
		}

		return Result{Outcome: outcome}
	}

	c.limiter.MarkSent(ratelimit.ChannelPush, c.clock.Now())
	c.sendCount++

	logger.InfoKV(ctx, "Push notification delivered", "remote_id", remoteID, "send_count", c.sendCount)

	return Result{
		Outcome:   channel.OutcomeDelivered,
		Delivered: true,
		RemoteID:  remoteID,
	}
}

// buildForm renders the request body in provider field order.
func (c *Channel) buildForm(ev alert.Event, p alert.Policy) string {
	var b strings.Builder

	field := func(name, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}

		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
	}

	field("k", Escape(c.cfg.PrivateKey))
	field("t", Escape(p.Title))
	field("m", Escape(renderMessage(ev)))
	field("pr", strconv.Itoa(int(p.Priority)))

	if p.Sound >= 0 {
		field("s", strconv.Itoa(p.Sound))
	}

	if p.Icon > 0 {
		field("i", strconv.Itoa(p.Icon))
	}

	if p.IconColor != "" {
		field("c", Escape(p.IconColor))
	}

	if p.Vibration > 0 {
		field("v", strconv.Itoa(p.Vibration))
	}

	field("d", Escape(c.cfg.Device))

	if minutes := int(p.TimeToLive / time.Minute); minutes > 0 {
		field("l", strconv.Itoa(minutes))
	}

	if p.Priority == alert.PriorityEmergency {
		field("re", strconv.Itoa(int(p.Retry/time.Second)))
		field("ex", strconv.Itoa(int(p.Expire/time.Second)))
	}

	return b.String()
}

// post performs the remote call and classifies its result.
func (c *Channel) post(ctx context.Context, body string) (int64, channel.Outcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.APIURL, strings.NewReader(body))
	if err != nil {
		return 0, channel.OutcomeTransportFailure, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, channel.OutcomeTransportFailure, fmt.Errorf("post %s: %w", channel.RedactURL(c.cfg.APIURL), err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, channel.OutcomeTransportFailure, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, channel.OutcomeTransportFailure, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	remoteID := parseRemoteID(payload)
	if remoteID <= 0 {
		return 0, channel.OutcomeApplicationRejected, fmt.Errorf("provider rejected notification: %s", truncate(payload))
	}

	return remoteID, channel.OutcomeDelivered, nil
}

// providerResponse is the subset of the provider answer we rely on.
type providerResponse struct {
	Status     int             `json:"status"`
	MessageIDs json.RawMessage `json:"message_ids"`
	Error      string          `json:"error"`
}

// parseRemoteID extracts the application-level identifier. A bare integer
// body is the identifier itself; a JSON body must report status 1 and carry
// message_ids ("18265430:34011" or a number). Anything else yields zero.
func parseRemoteID(payload []byte) int64 {
	text := strings.TrimSpace(string(payload))

	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return id
	}

	var resp providerResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return 0
	}

	if resp.Status <= 0 || len(resp.MessageIDs) == 0 {
		return 0
	}

	ids := strings.Trim(string(resp.MessageIDs), `"`)
	first, _, _ := strings.Cut(strings.NewReplacer(",", ":").Replace(ids), ":")

	id, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return 0
	}

	return id
}

// truncate shortens a provider answer for logging.
func truncate(payload []byte) string {
	const limit = 200

	if len(payload) > limit {
		return string(payload[:limit]) + "..."
	}

	return string(payload)
}
