package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"meetctl/meeting"
)

type snapshotMsg meeting.Snapshot

// programSink forwards controller snapshots to the bubbletea program.
// Updates before attach are dropped; the model starts from Controller.Snapshot.
type programSink struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programSink) Update(snap meeting.Snapshot) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(snapshotMsg(snap))
	}
}
