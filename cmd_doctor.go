package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"meetctl/doctor"
	"meetctl/log"
	"meetctl/shutdown"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var clip bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, server reachability and the push channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupInterruptHandler()

			if code := runDoctor(cmd.Context(), opts, cmd.OutOrStdout(), clip && isTerminal(os.Stdout)); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clip, "clipboard", false, "also check clipboard copy (needs a desktop session)")
	return cmd
}

// runDoctor reports config problems as a failed check instead of refusing to
// start, so a broken file or environment still gets a diagnosis.
func runDoctor(ctx context.Context, opts *rootOptions, w io.Writer, clip bool) int {
	cfg, err := loadConfig(opts)

	logPath := opts.logPath
	if cfg != nil {
		logPath = cfg.LogPath
	}
	if dir, err := log.ResolveDir(logPath); err == nil {
		log.SetDir(dir)
	}

	return doctor.Run(ctx, cfg, w, doctor.Options{
		ClientID:  "doctor",
		ConfigErr: err,
		Clipboard: clip,
	})
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	}()
}
