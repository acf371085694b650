package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"

	"meetctl/api"
	"meetctl/channel"
	"meetctl/config"
	"meetctl/log"
)

const probeTimeout = 5 * time.Second

type Options struct {
	ClientID string
	// ConfigErr is the error from loading the config, if any. It is reported
	// by the Config check.
	ConfigErr error
	// Clipboard adds a clipboard round trip. Off in headless environments.
	Clipboard bool
}

type check struct {
	name        string
	needsConfig bool
	run         func(ctx context.Context) (string, error)
}

// Run executes the diagnostic checks in order and returns an exit code
// (0=all pass, 1=any fail). A failed config check skips the network checks.
func Run(ctx context.Context, cfg *config.Config, w io.Writer, opts Options) int {
	fmt.Fprintln(w, "meetctl doctor - connectivity diagnostics")
	fmt.Fprintln(w, "=========================================")

	checks := []check{
		{"Config", false, func(context.Context) (string, error) { return checkConfig(cfg, opts.ConfigErr) }},
		{"Log directory", false, func(context.Context) (string, error) { return checkLogDir() }},
		{"Server (GET /meetings)", true, func(ctx context.Context) (string, error) { return checkServer(ctx, cfg, opts.ClientID) }},
		{"Channel", true, func(ctx context.Context) (string, error) { return checkChannel(ctx, cfg) }},
	}
	if opts.Clipboard {
		checks = append(checks, check{"Clipboard", false, func(context.Context) (string, error) { return checkClipboard() }})
	}

	allPass := true
	configOK := true
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.name)

		if c.needsConfig && !configOK {
			fmt.Fprintln(w, "  SKIP: config invalid")
			continue
		}
		msg, err := c.run(ctx)
		if err != nil {
			allPass = false
			if i == 0 {
				configOK = false
			}
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			log.Warnf("doctor: %s: %v", c.name, err)
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", msg)
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func checkConfig(cfg *config.Config, loadErr error) (string, error) {
	if loadErr != nil {
		return "", loadErr
	}
	if cfg == nil {
		return "", errors.New("no config loaded")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return "server " + cfg.Server, nil
}

func checkLogDir() (string, error) {
	dir := log.Dir()
	if dir == "" {
		return "logging not configured", nil
	}
	if err := log.EnsureDir(); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return "", fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return dir, nil
}

func checkServer(ctx context.Context, cfg *config.Config, clientID string) (string, error) {
	client, err := api.New(cfg.Server, api.WithTimeout(probeTimeout), api.WithClientID(clientID))
	if err != nil {
		return "", err
	}
	meetings, err := client.Meetings(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reachable, %d saved meetings", len(meetings)), nil
}

func checkChannel(ctx context.Context, cfg *config.Config) (string, error) {
	u, err := channel.URL(cfg.Server, cfg.ChannelPath)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := channel.Probe(ctx, u); err != nil {
		return "", err
	}
	return u + " accepted", nil
}

func checkClipboard() (string, error) {
	prev, _ := clipboard.ReadAll()
	defer clipboard.WriteAll(prev)

	const sentinel = "meetctl-doctor-test"
	if err := clipboard.WriteAll(sentinel); err != nil {
		return "", fmt.Errorf("copy: %w", err)
	}
	got, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if got != sentinel {
		return "", fmt.Errorf("read back %q, want %q", got, sentinel)
	}
	return "copy and read back", nil
}
