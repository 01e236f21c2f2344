package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/garage-alert/internal/config"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/service/ctl"
	"github.com/oshokin/garage-alert/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the daemon address from config.
	serverAddress string
	// timeout overrides the per-RPC timeout from config.
	timeout time.Duration

	// reason, source and remote are subcommand flags.
	reason string
	source string
	remote bool

	// sendReadings and observeReadings hold the sensor flags of each subcommand.
	sendReadings    readingFlags
	observeReadings readingFlags

	// rootCmd represents the base command talking to the daemon.
	rootCmd = &cobra.Command{
		Use:   "garage-alertctl",
		Short: "Control a running garage alert daemon.",
		Long: `Raises events, pushes sensor readings and reads diagnostics from a running
garage-alertd over gRPC. The daemon address is taken from the configuration
file unless --server is given.`,
		SilenceUsage: true,
	}

	// sendCmd raises one event.
	sendCmd = &cobra.Command{
		Use:   "send <kind>",
		Short: "Raise an event on both channels.",
		Long: `Raises one event. Kinds: ` + kindNames() + `.
Severity is derived from the kind; temperature and smoke readings may escalate
HighTemperature and SmokeAlert to an emergency.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return ctl.Send(ctx, options(cmd), &ctl.SendRequest{
				Kind:     args[0],
				Reason:   reason,
				Source:   source,
				Readings: sendReadings.readings(),
				Fragment: sendReadings.fragment(cmd.Flags()),
			})
		},
	}

	// observeCmd pushes readings without an event.
	observeCmd = &cobra.Command{
		Use:   "observe",
		Short: "Merge sensor readings into the working snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return ctl.Observe(ctx, options(cmd), observeReadings.fragment(cmd.Flags()))
		},
	}

	// statusCmd prints diagnostics.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print channel diagnostics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return ctl.Status(ctx, options(cmd), remote)
		},
	}

	// resetCountersCmd zeroes the send counters.
	resetCountersCmd = &cobra.Command{
		Use:   "reset-counters",
		Short: "Zero the send counters of both channels.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return ctl.ResetCounters(ctx, options(cmd))
		},
	}
)

// Execute runs the garage-alertctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(sendCmd, observeCmd, statusCmd, resetCountersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "a", "", "daemon address override")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "per-call timeout override")

	sendCmd.Flags().StringVarP(&reason, "reason", "r", "", "free-form reason")
	sendCmd.Flags().StringVar(&source, "source", "", "event source (default user@host)")
	sendReadings.register(sendCmd.Flags())

	observeReadings.register(observeCmd.Flags())

	statusCmd.Flags().BoolVar(&remote, "remote", false, "also read back the last values stored by the telemetry backend")
}

func options(cmd *cobra.Command) *ctl.Options {
	return &ctl.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Timeout:       timeout,
		Out:           cmd.OutOrStdout(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func kindNames() string {
	kinds := alert.Kinds()
	names := make([]string, 0, len(kinds))

	for _, k := range kinds {
		names = append(names, k.String())
	}

	return strings.Join(names, ", ")
}
