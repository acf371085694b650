package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meetctl/api"
)

const summaryPreview = 60

func newMeetingsCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "List saved meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (use text, json or yaml)", output)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				meetings, err := a.client.Meetings(ctx)
				if err != nil {
					return err
				}
				return writeMeetings(cmd.OutOrStdout(), meetings, output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeMeetings(w io.Writer, meetings []api.Meeting, format string) error {
	if meetings == nil {
		meetings = []api.Meeting{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meetings)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(meetings); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(meetings) == 0 {
		_, err := fmt.Fprintln(w, "No meetings found")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STARTED", "ENDED", "PARTICIPANTS", "SUMMARY")
	for _, m := range meetings {
		t.Row(fmt.Sprint(m.ID), m.StartTime, m.EndTime, strings.Join(m.Participants, ", "), preview(m.Summary, summaryPreview))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// preview returns the first line of s cut to n runes.
func preview(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
