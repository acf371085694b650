package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newEmailCmd(opts *rootOptions) *cobra.Command {
	var (
		to          []string
		summary     string
		summaryFile string
	)
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Email a meeting summary to participants",
		Example: "  meetctl email --to alice@example.com --to bob@example.com --summary-file summary.md\n" +
			"  meetctl email --to team@example.com --summary-file -",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients := splitRecipients(to)
			if len(recipients) == 0 {
				return errors.New("at least one --to address is required")
			}
			body, err := readSummary(summary, summaryFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				resp, err := a.client.SendSummary(ctx, recipients, body)
				if err != nil {
					return err
				}
				msg := resp.Message
				if msg == "" {
					msg = "Email sent"
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&to, "to", nil, "recipient address (repeatable, or comma-separated)")
	cmd.Flags().StringVar(&summary, "summary", "", "summary text")
	cmd.Flags().StringVar(&summaryFile, "summary-file", "", "read the summary from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("summary", "summary-file")
	return cmd
}

func splitRecipients(values []string) []string {
	var out []string
	for _, v := range values {
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

func readSummary(text, path string, stdin io.Reader) (string, error) {
	switch path {
	case "":
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read summary: %w", err)
		}
		text = string(b)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read summary: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("summary is empty (use --summary or --summary-file)")
	}
	return text, nil
}
