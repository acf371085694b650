// Package api talks to the meeting server's HTTP endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meetctl/log"
)

const (
	PathStartMeeting = "/start_meeting"
	PathEndMeeting   = "/end_meeting"
	PathMeetings     = "/meetings"
	PathSendEmail    = "/send_email"

	// ClientIDHeader carries the per-run client id on every request.
	ClientIDHeader = "X-Client-ID"

	StatusSuccess = "success"
	StatusFailed  = "error"
)

// Response is the body shape shared by every POST endpoint.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Summary string `json:"summary,omitempty"`

	HTTPStatus int `json:"-"`
}

func (r *Response) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// Err returns a *StatusError for a non-success response and nil otherwise.
func (r *Response) Err(op string) error {
	if r.OK() {
		return nil
	}
	if r == nil {
		return &StatusError{Op: op}
	}
	return &StatusError{Op: op, Message: r.Message, Code: r.HTTPStatus}
}

// StatusError is an application-level failure: the server answered but did
// not report success.
type StatusError struct {
	Op      string
	Message string
	Code    int
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: server error (HTTP %d): %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: server error: %s", e.Op, msg)
}

// Meeting is one saved meeting as listed by GET /meetings.
type Meeting struct {
	ID           any      `json:"id" yaml:"id"`
	StartTime    string   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime      string   `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Transcript   string   `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Summary      string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Participants []string `json:"participants,omitempty" yaml:"participants,omitempty"`
}

type emailRequest struct {
	Participants []string `json:"participants"`
	Summary      string   `json:"summary"`
}

// Observer is told about every request that got as far as the network.
// code is 0 when no response arrived.
type Observer func(method, path string, code int, total time.Duration)

type Client struct {
	base     *url.URL
	http     *TracedClient
	clientID string
	timeout  time.Duration
	observe  Observer
}

type Option func(*Client)

// WithClientID sets the value sent in ClientIDHeader.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

func New(server string, opts ...Option) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", server)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q: missing host", server)
	}
	c := &Client{base: u, http: NewTracedClient()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Server() string {
	return c.base.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// StartMeeting sends POST /start_meeting. A returned error means the request
// could not complete; application failures come back as a non-OK Response.
func (c *Client) StartMeeting(ctx context.Context) (*Response, error) {
	return c.post(ctx, PathStartMeeting, nil)
}

// EndMeeting sends POST /end_meeting. Same error contract as StartMeeting.
func (c *Client) EndMeeting(ctx context.Context) (*Response, error) {
	return c.post(ctx, PathEndMeeting, nil)
}

// SendSummary asks the server to mail summary to participants.
func (c *Client) SendSummary(ctx context.Context, participants []string, summary string) (*Response, error) {
	resp, err := c.post(ctx, PathSendEmail, emailRequest{Participants: participants, Summary: summary})
	if err != nil {
		return nil, err
	}
	if err := resp.Err("send email"); err != nil {
		return resp, err
	}
	return resp, nil
}

// Meetings lists saved meetings.
func (c *Client) Meetings(ctx context.Context) ([]Meeting, error) {
	tr, err := c.do(ctx, http.MethodGet, PathMeetings, nil)
	if err != nil {
		return nil, err
	}
	if tr.StatusCode != http.StatusOK {
		var r Response
		if json.Unmarshal(tr.Body, &r) == nil && r.Status != "" {
			r.HTTPStatus = tr.StatusCode
			return nil, r.Err("list meetings")
		}
		return nil, fmt.Errorf("list meetings: HTTP %d", tr.StatusCode)
	}
	var meetings []Meeting
	if err := json.Unmarshal(tr.Body, &meetings); err != nil {
		return nil, fmt.Errorf("list meetings: decode response: %w", err)
	}
	return meetings, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	tr, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	// 4xx/5xx still carry {status, message}; only an undecodable body is a
	// transport failure.
	var r Response
	if err := json.Unmarshal(tr.Body, &r); err != nil {
		return nil, fmt.Errorf("%s: decode response (HTTP %d): %w", path, tr.StatusCode, err)
	}
	r.HTTPStatus = tr.StatusCode
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*TracedResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set(ClientIDHeader, c.clientID)
	}

	start := time.Now()
	tr, err := c.http.Do(req)
	if err != nil {
		log.Errorf("%s %s: %v", method, path, err)
		if c.observe != nil {
			c.observe(method, path, 0, time.Since(start))
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.observe != nil {
		c.observe(method, path, tr.StatusCode, tr.Metrics.Total)
	}

	m := tr.Metrics
	log.RequestMetrics(log.RequestMetricsData{
		Method:     method,
		Path:       path,
		StatusCode: tr.StatusCode,
		DNSMs:      ms(m.DNS),
		TCPMs:      ms(m.TCP),
		TLSMs:      ms(m.TLS),
		TTFBMs:     ms(m.TTFB),
		TotalMs:    ms(m.Total),
		ConnReused: m.ConnReused,
	})
	return tr, nil
}
