package api

import (
	"context"
	"sync"
)

// Fake is an in-memory stand-in for Client's meeting endpoints.
type Fake struct {
	mu        sync.Mutex
	start     *Response
	end       *Response
	startErr  error
	endErr    error
	gate      chan struct{}
	startHits int
	endHits   int
}

// NewFake returns a Fake whose calls succeed, ending with summary.
func NewFake(summary string) *Fake {
	return &Fake{
		start: &Response{Status: StatusSuccess, Message: "Meeting started", HTTPStatus: 200},
		end:   &Response{Status: StatusSuccess, Message: "Meeting ended", Summary: summary, HTTPStatus: 200},
	}
}

func (f *Fake) SetStart(resp *Response, err error) {
	f.mu.Lock()
	f.start, f.startErr = resp, err
	f.mu.Unlock()
}

func (f *Fake) SetEnd(resp *Response, err error) {
	f.mu.Lock()
	f.end, f.endErr = resp, err
	f.mu.Unlock()
}

// Hold makes every subsequent call block until Release.
func (f *Fake) Hold() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
}

func (f *Fake) Release() {
	f.mu.Lock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	f.mu.Unlock()
}

func (f *Fake) Calls() (start, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startHits, f.endHits
}

func (f *Fake) StartMeeting(ctx context.Context) (*Response, error) {
	f.mu.Lock()
	f.startHits++
	gate, resp, err := f.gate, f.start, f.startErr
	f.mu.Unlock()
	return f.wait(ctx, gate, resp, err)
}

func (f *Fake) EndMeeting(ctx context.Context) (*Response, error) {
	f.mu.Lock()
	f.endHits++
	gate, resp, err := f.gate, f.end, f.endErr
	f.mu.Unlock()
	return f.wait(ctx, gate, resp, err)
}

func (f *Fake) wait(ctx context.Context, gate chan struct{}, resp *Response, err error) (*Response, error) {
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil || resp == nil {
		return nil, err
	}
	cp := *resp
	return &cp, nil
}
