package project

import (
	"sync"

	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// Session is an open project. The engine types it holds are not safe for
// concurrent use, so every access goes through the session lock via
// Service.Edit or Service.View.
type Session struct {
	mu      sync.Mutex
	project Project
	editor  *timeline.Editor
	player  *playback.Controller
	events  []timeline.TransitionEvent
}

func newSession(p Project, editor *timeline.Editor) *Session {
	s := &Session{project: p}
	s.bind(editor)
	return s
}

func (s *Session) bind(editor *timeline.Editor) {
	s.editor = editor
	s.player = playback.NewController(editor.Timeline())
	editor.OnTransitionChange(func(ev timeline.TransitionEvent) {
		s.events = append(s.events, ev)
	})
}

func (s *Session) Project() Project { return s.project }
func (s *Session) Editor() *timeline.Editor { return s.editor }
func (s *Session) Player() *playback.Controller { return s.player }
func (s *Session) Registry() *timeline.Registry { return s.editor.Registry() }
func (s *Session) Snapshot() timeline.Record { return s.editor.Snapshot() }

func (s *Session) takeEvents() []timeline.TransitionEvent {
	ev := s.events
	s.events = nil
	return ev
}
