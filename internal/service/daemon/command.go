package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/garage-alert/internal/api/grpc/alert"
	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/logger"
)

// shutdownTimeout bounds how long the metrics endpoint and the periodic job
// get to finish on shutdown.
const shutdownTimeout = 5 * time.Second

// Options controls the garage-alertd process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC listen address from the config.
	ListenAddress string
	// MetricsAddress overrides the metrics listen address from the config.
	MetricsAddress string
	// SnapshotPath overrides the snapshot store path from the config.
	SnapshotPath string
}

// Run starts the daemon and blocks until ctx is canceled or the gRPC server stops.
//
//nolint:funlen // Process wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "garage-alertd")

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok && settings.LogLevel != "" {
		logger.SetLevel(level)
	}

	svc, err := newService(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer func() {
		if err := svc.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close snapshot store", "error", err)
		}
	}()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	var metrics *metricsServer

	if settings.MetricsAddress != "" {
		metrics, err = newMetricsServer(ctx, settings.MetricsAddress)
		if err != nil {
			_ = lis.Close()

			return err
		}

		go metrics.Serve(ctx)
	}

	jobs, err := newScheduler(ctx, settings.PeriodicInterval, svc.publish)
	if err != nil {
		_ = lis.Close()

		if metrics != nil {
			_ = metrics.Shutdown(ctx)
		}

		return err
	}

	grpcServer := grpc.NewServer()
	api.RegisterAlertServiceServer(grpcServer, api.NewServer(svc.dispatcher, settings.AlertThresholds()))

	logger.InfoKV(ctx, "Garage alert daemon listening",
		"listen_address", settings.ListenAddress,
		"snapshot_backend", settings.Snapshot.Backend,
		"periodic_interval", settings.PeriodicInterval.String())

	result := svc.announce(ctx)
	logger.InfoKV(ctx, "System start announced",
		"push", result.PushOutcome.String(),
		"telemetry", result.TelemetryOutcome.String())

	jobs.Start()

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down")

		// The parent context is already canceled.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		jobs.Stop(stopCtx)

		if metrics != nil {
			if err := metrics.Shutdown(stopCtx); err != nil {
				logger.ErrorKV(ctx, "Failed to stop metrics endpoint", "error", err)
			}
		}

		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Garage alert daemon stopped")

	return nil
}

// loadSettings reads the config file and applies command-line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.MetricsAddress != "" {
		settings.MetricsAddress = opts.MetricsAddress
	}

	if opts.SnapshotPath != "" {
		settings.Snapshot.Path = opts.SnapshotPath
	}

	if err := config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}
