package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/service/daemon"
	"github.com/oshokin/garage-alert/internal/version"
)

// errConfigExists is returned by init-config when the target file is present.
var errConfigExists = errors.New("configuration file already exists")

var (
	// configPath to the configuration YAML file.
	configPath string
	// metricsAddress overrides the metrics listen address.
	metricsAddress string
	// snapshotPath overrides the snapshot store path.
	snapshotPath string
	// force lets init-config overwrite an existing file.
	force bool

	// rootCmd represents the base command for running the alert daemon.
	rootCmd = &cobra.Command{
		Use:   "garage-alertd [listen-address]",
		Short: "Run the garage alert dispatch daemon.",
		Long: `Starts the daemon that turns garage sensor events into phone notifications
and telemetry samples.

Events arrive over gRPC. Each one goes to the push channel and the telemetry
channel at the same time; routine events respect each channel's cooldown while
fire and intrusion alerts bypass it. The working snapshot is published to
telemetry on a fixed interval and the last published snapshot survives restarts.
Listen address can be provided as argument to override config (e.g. 127.0.0.1:50051).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				MetricsAddress: metricsAddress,
				SnapshotPath:   snapshotPath,
			})
		},
	}

	// initConfigCmd writes a configuration file with placeholder credentials.
	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file.",
		Long: `Writes a configuration file with every default filled in and placeholder
credentials. Channels with placeholder credentials report themselves as
misconfigured until real keys are set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%w: %s", errConfigExists, configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", configPath, err)
			}

			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", configPath)

			return nil
		},
	}
)

// Execute runs the garage-alertd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics-address", "m", "", "metrics listen address override")
	rootCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "snapshot store path override")
	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
}
