package main

import (
	"context"
	"errors"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"meetctl/log"
	"meetctl/meeting"
)

// TUI message types
type actionDoneMsg struct {
	op  string
	err error
}
type copiedMsg struct{ err error }

// controller is the part of meeting.Controller the TUI drives.
type controller interface {
	Snapshot() meeting.Snapshot
	StartMeeting(ctx context.Context) error
	EndMeeting(ctx context.Context) error
}

type tuiModel struct {
	ctx           context.Context
	ctrl          controller
	snap          meeting.Snapshot
	width, height int
	notice        string // one-line feedback for local actions (copy)
	copy          func(string) error
}

func newTUIModel(ctx context.Context, ctrl controller) tuiModel {
	return tuiModel{
		ctx:  ctx,
		ctrl: ctrl,
		snap: ctrl.Snapshot(),
		copy: clipboard.WriteAll,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			m.notice = ""
			if m.snap.StartEnabled() {
				return m, m.action("start", m.ctrl.StartMeeting)
			}
		case "e":
			m.notice = ""
			if m.snap.EndEnabled() {
				return m, m.action("end", m.ctrl.EndMeeting)
			}
		case "c":
			if m.snap.SummaryVisible && m.snap.Summary != "" {
				return m, m.copySummary(strings.Join(inertLines(m.snap.Summary), "\n"))
			}
		}

	case snapshotMsg:
		snap := meeting.Snapshot(msg)
		if snap.Newer(m.snap) {
			m.snap = snap
		}

	case actionDoneMsg:
		if msg.err != nil && isRefusal(msg.err) {
			log.Debug(msg.op + " ignored: " + msg.err.Error())
		}

	case copiedMsg:
		if msg.err != nil {
			log.Warnf("copy summary: %v", msg.err)
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Summary copied to clipboard"
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	return renderView(m.snap, m.width, m.height, m.notice)
}

// action runs a controller operation off the update loop. The resulting
// state arrives separately as snapshots.
func (m tuiModel) action(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m tuiModel) copySummary(summary string) tea.Cmd {
	cp := m.copy
	return func() tea.Msg {
		return copiedMsg{err: cp(summary)}
	}
}

func isRefusal(err error) bool {
	return errors.Is(err, meeting.ErrBusy) ||
		errors.Is(err, meeting.ErrAlreadyRecording) ||
		errors.Is(err, meeting.ErrNotRecording)
}

func runTUI(ctx context.Context, a *app) error {
	sink := &programSink{}
	ctrl := a.controller(sink)

	p := tea.NewProgram(newTUIModel(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.attach(p)

	log.SessionStart(a.cfg.Server, "tui")
	if err := a.start(ctx, ctrl); err != nil {
		return err
	}

	_, err := p.Run()
	log.SessionEnd(ctrl.Snapshot().Received)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
