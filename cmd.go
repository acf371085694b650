package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"meetctl/shutdown"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "meetctl",
		Short: "Control meeting recording from the terminal",
		Long: "meetctl starts and ends meetings on a meeting server, shows the live transcript " +
			"pushed by the server and the summary produced when a meeting ends.\n\n" +
			"Without a terminal on stdin/stdout it runs in headless mode (see 'meetctl run').",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return runHeadlessCmd(cmd, opts)
			}
			return withApp(cmd, opts, runTUI)
		},
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("meetctl {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", "", "meeting server URL (default http://localhost:5000)")
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/meetctl/config.toml)")
	flags.StringVar(&opts.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flags.StringVar(&opts.profile, "profile", "", "enable pprof profiling server (e.g., localhost:6060)")
	flags.StringVar(&opts.metrics, "metrics", "", "serve Prometheus metrics at this address (e.g., localhost:9090)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newMeetingsCmd(opts))
	rootCmd.AddCommand(newEmailCmd(opts))
	rootCmd.AddCommand(newDoctorCmd(opts))

	return rootCmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run headless, driven by commands on stdin",
		Long: "Reads one command per line from stdin and prints status changes, transcript lines " +
			"and the summary as they happen.\n\n" +
			"Commands: START, END, WAIT, SLEEP <ms>, STATUS, QUIT",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadlessCmd(cmd, opts)
		},
	}
}

func runHeadlessCmd(cmd *cobra.Command, opts *rootOptions) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		return runHeadless(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

// withApp builds the app and runs fn under a context cancelled by a
// termination signal. The context is also cancelled when fn returns, which
// stops the push channel.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()

	err = fn(ctx, a)
	if ctx.Err() != nil && cmd.Context().Err() == nil {
		// interrupted by a signal
		return nil
	}
	return err
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
