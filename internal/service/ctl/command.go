package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/service/common"
)

// Options configures how the CLI reaches the daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the daemon address from config when specified.
	ServerAddress string
	// Timeout overrides the per-RPC timeout from config when positive.
	Timeout time.Duration
	// Out receives the human-readable report; stdout when nil.
	Out io.Writer
}

// SendRequest describes an event raised from the command line.
type SendRequest struct {
	// Kind is the textual event kind, e.g. "FireAlert" or "door_open".
	Kind string
	// Reason is the optional free-form reason.
	Reason string
	// Source overrides the detected user@host source.
	Source string
	// Readings are the measured values attached to the event.
	Readings alert.Readings
	// Fragment carries readings to merge into the working snapshot.
	Fragment alert.Fragment
}

// errNoReadings is returned when observe is called without any reading.
var errNoReadings = errors.New("no readings given")

// Send raises one event on the daemon and prints the per-channel result.
func Send(ctx context.Context, opts *Options, req *SendRequest) error {
	ctx = logger.WithName(ctx, "garage-alertctl")

	kind, err := alert.ParseKind(req.Kind)
	if err != nil {
		return err
	}

	source := req.Source
	if source == "" {
		if source, err = common.DetectSource(); err != nil {
			return fmt.Errorf("detect source: %w", err)
		}
	}

	return withClient(ctx, opts, func(settings *config.Config, client *common.Client) error {
		ev := alert.NewEvent(kind,
			alert.WithReason(req.Reason),
			alert.WithSource(source),
			alert.WithReadings(req.Readings),
			alert.WithThresholds(settings.AlertThresholds()),
		)

		logger.InfoKV(ctx, "Sending event", "kind", ev.Kind.String(), "source", source)

		result, err := client.Dispatch(ctx, ev, req.Fragment)
		if err != nil {
			return err
		}

		writeResult(output(opts), ev.Kind, result)

		return nil
	})
}

// Observe pushes sensor readings without raising an event and prints the
// resulting working snapshot.
func Observe(ctx context.Context, opts *Options, fragment alert.Fragment) error {
	if fragment.IsEmpty() {
		return errNoReadings
	}

	ctx = logger.WithName(ctx, "garage-alertctl")

	return withClient(ctx, opts, func(_ *config.Config, client *common.Client) error {
		working, err := client.Observe(ctx, fragment)
		if err != nil {
			return err
		}

		writeSnapshot(output(opts), "working", working)

		return nil
	})
}

// Status prints channel diagnostics. remote adds the values the telemetry
// backend stored last.
func Status(ctx context.Context, opts *Options, remote bool) error {
	ctx = logger.WithName(ctx, "garage-alertctl")

	return withClient(ctx, opts, func(_ *config.Config, client *common.Client) error {
		diagnostics, err := client.Diagnostics(ctx, remote)
		if err != nil {
			return err
		}

		writeDiagnostics(output(opts), diagnostics)

		return nil
	})
}

// ResetCounters zeroes the daemon's send counters.
func ResetCounters(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "garage-alertctl")

	return withClient(ctx, opts, func(_ *config.Config, client *common.Client) error {
		if err := client.ResetCounters(ctx); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(output(opts), "Send counters reset")

		return nil
	})
}

// withClient loads settings, connects to the daemon and runs fn.
func withClient(ctx context.Context, opts *Options, fn func(*config.Config, *common.Client) error) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	serverAddress := settings.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	timeout := settings.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout))
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected to daemon", "server_address", serverAddress)

	return fn(settings, client)
}

// loadSettings reads the config file. A missing file is fine when the
// daemon address is given on the command line.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)

	switch {
	case err == nil:
		return settings, nil
	case errors.Is(err, fs.ErrNotExist) && opts.ServerAddress != "":
		return config.Default(), nil
	default:
		return nil, fmt.Errorf("load settings: %w", err)
	}
}

func output(opts *Options) io.Writer {
	if opts.Out != nil {
		return opts.Out
	}

	return os.Stdout
}
