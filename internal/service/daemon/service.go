package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/garage-alert/internal/channel"
	"github.com/oshokin/garage-alert/internal/channel/push"
	"github.com/oshokin/garage-alert/internal/channel/telemetry"
	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/connectivity"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/ratelimit"
	"github.com/oshokin/garage-alert/internal/repository/snapshot"
	"github.com/oshokin/garage-alert/internal/service/dispatcher"
)

// bootSource is the source recorded on the SystemStart event.
const bootSource = "garage-alertd"

// service holds the long-lived components of one daemon process.
type service struct {
	// repo persists the last published snapshot.
	repo snapshot.Repository
	// push delivers notifications to the phone.
	push *push.Channel
	// telemetry publishes samples to the time-series backend.
	telemetry *telemetry.Channel
	// dispatcher fans events out to both channels.
	dispatcher *dispatcher.Dispatcher
}

// serviceOptions overrides process-level dependencies in tests.
type serviceOptions struct {
	doer  channel.Doer
	probe connectivity.Probe
	clock ratelimit.Clock
}

// serviceOption customizes newService.
type serviceOption func(*serviceOptions)

// withDoer replaces the HTTP client of both channels.
func withDoer(doer channel.Doer) serviceOption {
	return func(o *serviceOptions) {
		o.doer = doer
	}
}

// withProbe replaces the connectivity probe.
func withProbe(probe connectivity.Probe) serviceOption {
	return func(o *serviceOptions) {
		o.probe = probe
	}
}

// withClock replaces the clock shared by the rate limiter and channels.
func withClock(clock ratelimit.Clock) serviceOption {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

// newService opens the snapshot store, restores the last snapshot and
// builds both channels around one shared rate limiter.
func newService(ctx context.Context, cfg *config.Config, opts ...serviceOption) (*service, error) {
	o := serviceOptions{
		clock: ratelimit.SystemClock(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.probe == nil {
		probe, err := connectivity.FromMode(connectivity.Mode(cfg.Connectivity.Mode))
		if err != nil {
			return nil, fmt.Errorf("connectivity probe: %w", err)
		}

		o.probe = probe
	}

	repo, err := snapshot.Open(ctx, snapshot.Backend(cfg.Snapshot.Backend), cfg.Snapshot.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	restored, err := repo.Load(ctx)

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Snapshot restored",
			"backend", cfg.Snapshot.Backend,
			"event_code", int(restored.EventCode))
	case errors.Is(err, snapshot.ErrNotFound):
		// Start from an empty snapshot.
	default:
		_ = repo.Close()

		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	limiter := ratelimit.New()

	pushOptions := []push.Option{
		push.WithLimiter(limiter),
		push.WithClock(o.clock),
		push.WithProbe(o.probe),
	}

	telemetryOptions := []telemetry.Option{
		telemetry.WithLimiter(limiter),
		telemetry.WithClock(o.clock),
		telemetry.WithProbe(o.probe),
		telemetry.WithStore(repo),
		telemetry.WithInitialSnapshot(restored),
	}

	if o.doer != nil {
		pushOptions = append(pushOptions, push.WithHTTPClient(o.doer))
		telemetryOptions = append(telemetryOptions, telemetry.WithHTTPClient(o.doer))
	}

	pushChannel := push.New(push.Config{
		APIURL:      cfg.Push.APIURL,
		PrivateKey:  cfg.Push.PrivateKey,
		Device:      cfg.Push.Device,
		MinInterval: cfg.Push.MinInterval,
		Timeout:     cfg.Push.Timeout,
	}, pushOptions...)

	telemetryChannel := telemetry.New(telemetry.Config{
		BaseURL:     cfg.Telemetry.BaseURL,
		ChannelID:   cfg.Telemetry.ChannelID,
		WriteKey:    cfg.Telemetry.WriteKey,
		ReadKey:     cfg.Telemetry.ReadKey,
		MinInterval: cfg.Telemetry.MinInterval,
		Timeout:     cfg.Telemetry.Timeout,
	}, telemetryOptions...)

	if !pushChannel.Configured() {
		logger.Warn(ctx, "Push channel is not configured, notifications will be skipped")
	}

	if !telemetryChannel.Configured() {
		logger.Warn(ctx, "Telemetry channel is not configured, samples will be skipped")
	}

	return &service{
		repo:      repo,
		push:      pushChannel,
		telemetry: telemetryChannel,
		dispatcher: dispatcher.New(pushChannel, telemetryChannel,
			dispatcher.WithThresholds(cfg.AlertThresholds()),
			dispatcher.WithWorkingSnapshot(restored),
		),
	}, nil
}

// announce dispatches the SystemStart event.
func (s *service) announce(ctx context.Context) dispatcher.Result {
	return s.dispatcher.Dispatch(ctx, alert.NewEvent(alert.KindSystemStart, alert.WithSource(bootSource)), alert.Fragment{})
}

// publish runs one periodic telemetry sample.
func (s *service) publish(ctx context.Context) {
	res := s.dispatcher.PublishPeriodic(ctx)

	logger.DebugKV(ctx, "Periodic sample", "outcome", res.Outcome.String())
}

// Close releases the snapshot store.
func (s *service) Close() error {
	if s.repo == nil {
		return nil
	}

	return s.repo.Close()
}
