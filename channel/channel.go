// Package channel consumes the server's real-time push channel.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"meetctl/log"
	"meetctl/meeting"
)

// Event names are part of the wire contract.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventTranscriptUpdate = "transcript_update"
)

const (
	DefaultPath      = "/ws"
	defaultReadLimit = 1 << 20
)

// Handler reacts to channel events. meeting.Controller implements it.
type Handler interface {
	OnConnect()
	OnDisconnect()
	OnTranscriptUpdate(meeting.Entry)
}

// Envelope is one text frame: {"event": name, "data": payload}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	url       string
	header    http.Header
	handler   Handler
	reconnect time.Duration
	readLimit int64
}

type Option func(*Client)

// WithReconnect sets the delay between a drop and the next dial. Zero makes
// Run return after the first connection ends.
func WithReconnect(d time.Duration) Option {
	return func(c *Client) { c.reconnect = d }
}

func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

func New(wsURL string, h Handler, opts ...Option) *Client {
	c := &Client{
		url:       wsURL,
		header:    http.Header{},
		handler:   h,
		readLimit: defaultReadLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL derives the channel URL from the HTTP server URL and a path.
func URL(server, path string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("server url %q: unsupported scheme %q", server, u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// Run keeps the channel open until ctx is cancelled. OnConnect fires after
// each successful dial and OnDisconnect after each established connection
// drops. A failed dial fires nothing and is retried after the reconnect delay.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.reconnect <= 0 {
			return err
		}
		log.Warnf("channel: %v (redial in %s)", err, c.reconnect)

		t := time.NewTimer(c.reconnect)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: c.header})
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(c.readLimit)

	c.handler.OnConnect()

	err = c.readLoop(ctx, conn)
	if ctx.Err() == nil {
		c.handler.OnDisconnect()
	}
	return err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			log.Warn("channel: ignoring binary frame")
			continue
		}
		if err := c.Dispatch(data); err != nil {
			log.Warnf("channel: %v", err)
		}
	}
}

// Dispatch decodes one frame and hands it to the handler. Unknown events
// are ignored.
func (c *Client) Dispatch(frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch env.Event {
	case EventTranscriptUpdate:
		var e meeting.Entry
		if len(env.Data) == 0 {
			return errors.New("transcript_update without data")
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		c.handler.OnTranscriptUpdate(e)
	case EventConnect, EventDisconnect:
		// connection state comes from the socket itself
		log.Debug("channel: server sent " + env.Event)
	default:
		log.Debug("channel: unknown event " + env.Event)
	}
	return nil
}

// Probe dials the channel once and closes it.
func Probe(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	conn.Close(websocket.StatusNormalClosure, "probe")
	return nil
}
