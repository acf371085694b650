// Package meeting owns the client-side meeting session: one explicit state,
// the status banner, the transcript and the summary. Every change is
// published to a Sink as an immutable Snapshot; rendering is the sink's job.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"meetctl/api"
	"meetctl/log"
)

type State int

const (
	Idle State = iota
	Starting
	Recording
	Ending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Ending:
		return "ending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Kind string

const (
	KindInfo      Kind = "info"
	KindError     Kind = "error"
	KindRecording Kind = "recording"
)

type Status struct {
	Message string
	Kind    Kind
}

// Entry is one transcript line pushed by the server.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Speaker, e.Text)
}

// Status messages shown in the banner.
const (
	MsgReady        = "Ready to start meeting"
	MsgRecording    = "Recording in progress..."
	MsgEnded        = "Meeting ended"
	MsgStartFailed  = "Error starting meeting"
	MsgEndFailed    = "Error ending meeting"
	MsgConnected    = "Connected to server"
	MsgDisconnected = "Disconnected from server"
)

var (
	// ErrBusy is returned when a start or end request is already in flight.
	ErrBusy             = errors.New("request in flight")
	ErrAlreadyRecording = errors.New("meeting already recording")
	ErrNotRecording     = errors.New("no meeting recording")
)

// API is the subset of the server API the controller drives.
type API interface {
	StartMeeting(ctx context.Context) (*api.Response, error)
	EndMeeting(ctx context.Context) (*api.Response, error)
}

// Sink receives every new snapshot. Update may be called from any goroutine
// and concurrently; Seq orders snapshots, so a sink keeps the highest it saw.
type Sink interface {
	Update(Snapshot)
}

type SinkFunc func(Snapshot)

func (f SinkFunc) Update(s Snapshot) { f(s) }

type Controller struct {
	api  API
	sink Sink

	mu             sync.Mutex
	seq            uint64
	state          State
	status         Status
	entries        []Entry
	received       int
	summary        string
	summaryVisible bool
	connected      bool
	limit          int
}

type Option func(*Controller)

// WithTranscriptLimit keeps only the newest n entries. Zero keeps all.
func WithTranscriptLimit(n int) Option {
	return func(c *Controller) { c.limit = n }
}

func New(a API, sink Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = SinkFunc(func(Snapshot) {})
	}
	c := &Controller{
		api:    a,
		sink:   sink,
		state:  Idle,
		status: Status{Message: MsgReady, Kind: KindInfo},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// update applies fn under the lock and publishes the result.
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	prev := c.state
	fn()
	c.seq++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(prev, snap)
}

func (c *Controller) publish(prev State, snap Snapshot) {
	if prev != snap.State {
		log.StateChange(prev.String(), snap.State.String())
	}
	c.sink.Update(snap)
}

// begin moves from want to next in one step, or reports why it cannot.
func (c *Controller) begin(want, next State) error {
	c.mu.Lock()
	if err := refusal(c.state, want); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.seq++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(want, snap)
	return nil
}

func refusal(cur, want State) error {
	switch {
	case cur == want:
		return nil
	case cur == Starting || cur == Ending:
		return ErrBusy
	case want == Idle:
		return ErrAlreadyRecording
	default:
		return ErrNotRecording
	}
}

// StartMeeting asks the server to start recording. It is a no-op returning
// ErrAlreadyRecording or ErrBusy unless the session is Idle. Failures are
// reported on the status banner and returned.
func (c *Controller) StartMeeting(ctx context.Context) error {
	if err := c.begin(Idle, Starting); err != nil {
		log.Info("start_ignored: " + err.Error())
		return err
	}

	resp, err := c.api.StartMeeting(ctx)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}

	switch {
	case err != nil:
		log.Errorf("start meeting: %v", err)
		c.update(func() {
			c.state = Idle
			c.status = Status{Message: MsgStartFailed, Kind: KindError}
		})
		return fmt.Errorf("start meeting: %w", err)

	case !resp.OK():
		log.Warnf("start meeting rejected: %s", resp.Message)
		c.update(func() {
			c.state = Idle
			c.status = Status{Message: errorMessage(resp), Kind: KindError}
		})
		return resp.Err("start meeting")
	}

	c.update(func() {
		c.state = Recording
		c.status = Status{Message: MsgRecording, Kind: KindRecording}
	})
	return nil
}

// EndMeeting asks the server to stop recording. It is a no-op returning
// ErrNotRecording or ErrBusy unless the session is Recording. A summary in
// the response replaces the previous one and shows the panel; no summary
// leaves the panel as it was.
func (c *Controller) EndMeeting(ctx context.Context) error {
	if err := c.begin(Recording, Ending); err != nil {
		log.Info("end_ignored: " + err.Error())
		return err
	}

	resp, err := c.api.EndMeeting(ctx)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}

	switch {
	case err != nil:
		log.Errorf("end meeting: %v", err)
		c.update(func() {
			c.state = Recording
			c.status = Status{Message: MsgEndFailed, Kind: KindError}
		})
		return fmt.Errorf("end meeting: %w", err)

	case !resp.OK():
		log.Warnf("end meeting rejected: %s", resp.Message)
		c.update(func() {
			c.state = Recording
			c.status = Status{Message: errorMessage(resp), Kind: KindError}
		})
		return resp.Err("end meeting")
	}

	c.update(func() {
		c.state = Idle
		c.status = Status{Message: MsgEnded, Kind: KindInfo}
		if resp.Summary != "" {
			c.summary = resp.Summary
			c.summaryVisible = true
		}
	})
	return nil
}

func (c *Controller) OnConnect() {
	log.ChannelEvent("connect")
	c.update(func() {
		c.connected = true
		c.status = Status{Message: MsgConnected, Kind: KindInfo}
	})
}

// OnDisconnect reports the drop. The session state is left alone: the server
// decides whether the meeting is still recording.
func (c *Controller) OnDisconnect() {
	log.ChannelEvent("disconnect")
	c.update(func() {
		c.connected = false
		c.status = Status{Message: MsgDisconnected, Kind: KindError}
	})
}

// OnTranscriptUpdate appends e after every entry received so far.
func (c *Controller) OnTranscriptUpdate(e Entry) {
	log.TranscriptLine(e.Timestamp, e.Speaker, e.Text)
	c.update(func() {
		c.entries = append(c.entries, e)
		c.received++
		if c.limit > 0 && len(c.entries) > c.limit {
			c.entries = append(c.entries[:0:0], c.entries[len(c.entries)-c.limit:]...)
		}
	})
}

func errorMessage(resp *api.Response) string {
	msg := resp.Message
	if msg == "" {
		msg = "unknown error"
		if resp.HTTPStatus != 0 {
			msg = fmt.Sprintf("server returned %d", resp.HTTPStatus)
		}
	}
	return "Error: " + msg
}
