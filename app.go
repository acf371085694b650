package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/google/uuid"

	"meetctl/api"
	"meetctl/channel"
	"meetctl/config"
	"meetctl/log"
	"meetctl/meeting"
	"meetctl/metrics"
)

type rootOptions struct {
	server     string
	configPath string
	logPath    string
	profile    string
	metrics    string
}

// app holds what every command needs: resolved config, the per-run client
// id and the HTTP client.
type app struct {
	cfg         *config.Config
	clientID    string
	client      *api.Client
	metrics     *metrics.Metrics
	metricsAddr string
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.server != "" {
		cfg.Server = opts.server
	}
	if opts.logPath != "" {
		cfg.LogPath = opts.logPath
	}
	return cfg, nil
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	initCrashLog()

	id := uuid.NewString()
	if err := log.Init(id); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if opts.profile != "" {
		go func() {
			log.Info("pprof server listening on http://" + opts.profile + "/debug/pprof/")
			if err := http.ListenAndServe(opts.profile, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}

	m := metrics.New()
	client, err := api.New(cfg.Server,
		api.WithClientID(id),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithObserver(m.ObserveRequest),
	)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, clientID: id, client: client, metrics: m, metricsAddr: opts.metrics}, nil
}

func (a *app) close() {
	log.Close()
}

func (a *app) controller(sink meeting.Sink) *meeting.Controller {
	ctrl := meeting.New(a.client, sink, meeting.WithTranscriptLimit(a.cfg.TranscriptLimit))
	err := a.metrics.RegisterSession(func() metrics.SessionStats {
		s := ctrl.Snapshot()
		return metrics.SessionStats{State: s.State.String(), Connected: s.Connected, Received: s.Received}
	})
	if err != nil {
		log.Warnf("metrics: %v", err)
	}
	return ctrl
}

// serveMetrics exposes /metrics on the --metrics address until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	if a.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.metricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	go func() {
		log.Info("metrics listening on http://" + a.metricsAddr + "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error: " + err.Error())
		}
	}()
}

// start runs the push channel for ctrl, and the metrics endpoint when
// configured, until ctx is cancelled.
func (a *app) start(ctx context.Context, ctrl *meeting.Controller) error {
	a.serveMetrics(ctx)

	u, err := channel.URL(a.cfg.Server, a.cfg.ChannelPath)
	if err != nil {
		return err
	}
	ch := channel.New(u, ctrl,
		channel.WithReconnect(a.cfg.ReconnectInterval),
		channel.WithHeader(api.ClientIDHeader, a.clientID),
	)
	go func() {
		if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("channel stopped: %v", err)
		}
	}()
	return nil
}
