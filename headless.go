package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"meetctl/log"
	"meetctl/meeting"
)

// headless drives a controller from line commands and prints what changes.
//
//	START        begin a meeting (async)
//	END          end the meeting (async)
//	WAIT         block until pending START/END calls finish
//	SLEEP <ms>   pause
//	STATUS       print the full plain view
//	QUIT         stop
type headless struct {
	mu   sync.Mutex
	out  io.Writer
	last meeting.Snapshot
	seen bool

	ctrl    controller
	pending sync.WaitGroup
}

func newHeadless(out io.Writer) *headless {
	return &headless{out: out}
}

func (h *headless) printf(format string, args ...any) {
	h.mu.Lock()
	fmt.Fprintf(h.out, format, args...)
	h.mu.Unlock()
}

// Update prints the differences from the last snapshot it printed.
func (h *headless) Update(snap meeting.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen && !snap.Newer(h.last) {
		return
	}
	prev := h.last
	h.last = snap
	first := !h.seen
	h.seen = true

	if first || snap.Status != prev.Status {
		fmt.Fprintf(h.out, "status: %s\n", inert(snap.Status.Message))
	}
	if n := snap.Received - prev.Received; n > 0 {
		if n > len(snap.Entries) {
			n = len(snap.Entries)
		}
		for _, e := range snap.Entries[len(snap.Entries)-n:] {
			fmt.Fprintf(h.out, "transcript: %s\n", inert(e.String()))
		}
	}
	if snap.SummaryVisible && (!prev.SummaryVisible || snap.Summary != prev.Summary) {
		fmt.Fprintf(h.out, "summary: %s\n", strings.Join(inertLines(snap.Summary), "\n"))
	}
}

func (h *headless) run(ctx context.Context, in io.Reader) error {
	h.Update(h.ctrl.Snapshot())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				h.pending.Wait()
				return nil
			}
			if quit := h.exec(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (h *headless) exec(ctx context.Context, cmd string) (quit bool) {
	switch {
	case cmd == "" || strings.HasPrefix(cmd, "#"):
	case cmd == "START":
		h.async(ctx, "start", h.ctrl.StartMeeting)
	case cmd == "END":
		h.async(ctx, "end", h.ctrl.EndMeeting)
	case cmd == "WAIT":
		h.pending.Wait()
	case cmd == "STATUS":
		h.printf("%s", renderPlain(h.ctrl.Snapshot()))
	case cmd == "QUIT":
		h.pending.Wait()
		return true
	case strings.HasPrefix(cmd, "SLEEP "):
		ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:]))
		if err != nil || ms < 0 {
			h.printf("bad sleep: %q\n", cmd)
			return false
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
		}
	default:
		h.printf("unknown command: %q\n", cmd)
	}
	return false
}

func (h *headless) async(ctx context.Context, op string, fn func(context.Context) error) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		err := fn(ctx)
		if err != nil && isRefusal(err) {
			h.printf("%s ignored: %v\n", op, err)
		} else if err != nil {
			log.Errorf("%s: %v", op, err)
		}
	}()
}

func runHeadless(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	h := newHeadless(out)
	ctrl := a.controller(h)
	h.ctrl = ctrl

	log.SessionStart(a.cfg.Server, "headless")
	defer func() { log.SessionEnd(ctrl.Snapshot().Received) }()

	if err := a.start(ctx, ctrl); err != nil {
		return err
	}
	return h.run(ctx, in)
}
