package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/garage-alert/internal/logger"
)

// cronLogger routes scheduler messages to the context logger.
type cronLogger struct {
	ctx context.Context //nolint:containedctx // The scheduler API has no context parameter.
}

// Info logs routine scheduler activity at debug level.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.DebugKV(l.ctx, msg, keysAndValues...)
}

// Error logs scheduler failures.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.ErrorKV(l.ctx, msg, append(keysAndValues, "error", err)...)
}

// scheduler runs the periodic telemetry job.
type scheduler struct {
	cron *cron.Cron
}

// newScheduler registers job to run every interval. A run still in
// progress causes the next tick to be skipped.
func newScheduler(ctx context.Context, interval time.Duration, job func(context.Context)) (*scheduler, error) {
	log := cronLogger{ctx: logger.WithName(ctx, "scheduler")}

	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	schedule := "@every " + interval.String()

	if _, err := c.AddFunc(schedule, func() { job(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}

	return &scheduler{cron: c}, nil
}

// Start begins running the job in the background.
func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (s *scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
