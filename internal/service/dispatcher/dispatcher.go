package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/channel/push"
	"github.com/oshokin/garage-alert/internal/channel/telemetry"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
)

// PushChannel is the push side as seen by the dispatcher.
type PushChannel interface {
	Send(ctx context.Context, ev alert.Event, policy alert.Policy) push.Result
	IsReady(ctx context.Context) bool
	SendCount() int
	ResetCounter()
}

// TelemetryChannel is the telemetry side as seen by the dispatcher.
type TelemetryChannel interface {
	LogEvent(ctx context.Context, ev alert.Event, base alert.Snapshot) telemetry.Result
	UpdatePeriodic(ctx context.Context, s alert.Snapshot) telemetry.Result
	CurrentSnapshot() alert.Snapshot
	IsReady(ctx context.Context) bool
	SendCount() int
	ResetCounter()
	SecondsUntilNextUpdate() int
	ReadField(ctx context.Context, field int) float64
	ReadStatus(ctx context.Context) string
}

// Result combines both channel outcomes of one dispatch.
type Result struct {
	// Severity is the effective severity the event was dispatched with.
	Severity alert.Severity
	// PushDelivered is true when the push provider confirmed the notification.
	PushDelivered bool
	// PushOutcome classifies the push call.
	PushOutcome channel.Outcome
	// PushRemoteID is the provider message identifier.
	PushRemoteID int64
	// TelemetryDelivered is true when the backend acknowledged the write.
	TelemetryDelivered bool
	// TelemetryOutcome classifies the telemetry call.
	TelemetryOutcome channel.Outcome
}

// Dispatcher owns both channels and the working snapshot.
type Dispatcher struct {
	push       PushChannel
	telemetry  TelemetryChannel
	policies   *alert.PolicyTable
	thresholds alert.Thresholds

	// mu guards the fields below.
	mu         sync.Mutex
	working    alert.Snapshot
	dispatched int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicies replaces the default policy table.
func WithPolicies(policies *alert.PolicyTable) Option {
	return func(d *Dispatcher) {
		if policies != nil {
			d.policies = policies
		}
	}
}

// WithThresholds replaces the default escalation thresholds.
func WithThresholds(thresholds alert.Thresholds) Option {
	return func(d *Dispatcher) {
		d.thresholds = thresholds
	}
}

// WithWorkingSnapshot seeds the working snapshot, e.g. one restored from disk.
func WithWorkingSnapshot(s alert.Snapshot) Option {
	return func(d *Dispatcher) {
		d.working = s
	}
}

// New creates a dispatcher. Either channel may be nil; its calls are then
// reported as Skipped.
func New(pushChannel PushChannel, telemetryChannel TelemetryChannel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		push:       pushChannel,
		telemetry:  telemetryChannel,
		policies:   alert.DefaultPolicyTable(),
		thresholds: alert.DefaultThresholds(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch sends ev to both channels. fragment carries the caller's
// best-known readings and is merged into the working snapshot first.
func (d *Dispatcher) Dispatch(ctx context.Context, ev alert.Event, fragment alert.Fragment) Result {
	ev.Severity = ev.Severity.Max(d.thresholds.Classify(ev.Kind, ev.Readings))

	ctx = logger.WithKV(logger.WithName(ctx, "dispatcher"), "kind", ev.Kind.String(), "severity", ev.Severity.String())

	d.mu.Lock()
	d.working = fragment.ApplyTo(d.working)
	base := d.working

	if ev.Kind != alert.KindSystemStart {
		d.working = telemetry.Derive(ev, base)
	}

	d.dispatched++
	d.mu.Unlock()

	dispatchTotal.WithLabelValues(ev.Kind.String(), ev.Severity.String()).Inc()

	result := Result{
		Severity:         ev.Severity,
		PushOutcome:      channel.OutcomeSkipped,
		TelemetryOutcome: channel.OutcomeSkipped,
	}

	var wg sync.WaitGroup

	if d.push != nil {
		wg.Add(1)

		go func() {
			defer wg.Done()

			started := time.Now()
			res := d.push.Send(ctx, ev, d.policies.Lookup(ev.Kind))
			observe(labelPush, res.Outcome, started)

			result.PushDelivered = res.Delivered
			result.PushOutcome = res.Outcome
			result.PushRemoteID = res.RemoteID
		}()
	}

	if d.telemetry != nil {
		wg.Add(1)

		go func() {
			defer wg.Done()

			started := time.Now()
			res := d.telemetry.LogEvent(ctx, ev, base)
			observe(labelTelemetry, res.Outcome, started)

			result.TelemetryDelivered = res.Delivered
			result.TelemetryOutcome = res.Outcome
		}()
	}

	wg.Wait()

	logger.InfoKV(ctx, "Event dispatched",
		"push", result.PushOutcome.String(),
		"telemetry", result.TelemetryOutcome.String())

	return result
}

// Observe merges sensor readings into the working snapshot without an
// event and returns the updated snapshot.
func (d *Dispatcher) Observe(fragment alert.Fragment) alert.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.working = fragment.ApplyTo(d.working)

	return d.working
}

// WorkingSnapshot returns the current working snapshot.
func (d *Dispatcher) WorkingSnapshot() alert.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.working
}

// PublishPeriodic offers the working snapshot to telemetry as a routine
// sample. It is dropped while the telemetry cooldown runs.
func (d *Dispatcher) PublishPeriodic(ctx context.Context) telemetry.Result {
	if d.telemetry == nil {
		return telemetry.Result{Outcome: channel.OutcomeSkipped}
	}

	started := time.Now()
	res := d.telemetry.UpdatePeriodic(ctx, d.WorkingSnapshot())
	observe(labelTelemetry, res.Outcome, started)

	return res
}

// ResetCounters zeroes the send counters of both channels and the
// dispatch counter.
func (d *Dispatcher) ResetCounters() {
	if d.push != nil {
		d.push.ResetCounter()
	}

	if d.telemetry != nil {
		d.telemetry.ResetCounter()
	}

	d.mu.Lock()
	d.dispatched = 0
	d.mu.Unlock()
}

// observe records one channel call.
func observe(channelLabel string, outcome channel.Outcome, started time.Time) {
	channelSendTotal.WithLabelValues(channelLabel, outcome.String()).Inc()
	channelSendDuration.WithLabelValues(channelLabel).Observe(time.Since(started).Seconds())
}
