package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

const lastProjectKey = "last_project"

var (
	ErrInvalidMarker   = errors.New("invalid marker")
	ErrInvalidAction   = errors.New("invalid playback action")
	ErrExportsDisabled = errors.New("exports are not configured")
)

// ExportSubmitter queues an export of a timeline snapshot.
type ExportSubmitter interface {
	Submit(ctx context.Context, projectID string, snapshot timeline.Record, settings export.Settings) (*export.Job, error)
}

// RendererFactory builds a renderer that resolves clips from one session.
type RendererFactory func(clips render.ClipResolver) render.Renderer

type Options struct {
	HistoryCapacity int
	// Autosave writes the record after every successful edit.
	Autosave bool
	Renderer RendererFactory
	Now      func() time.Time
	Logger   *slog.Logger
}

type Service struct {
	repo    Repository
	exports ExportSubmitter
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(repo Repository, exports ExportSubmitter, opts Options) *Service {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = timeline.DefaultHistoryCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Renderer == nil {
		opts.Renderer = func(render.ClipResolver) render.Renderer { return render.NewStubRenderer(opts.Logger) }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:     repo,
		exports:  exports,
		opts:     opts,
		logger:   logging.WithComponent(logger, "project"),
		sessions: make(map[string]*Session),
	}
}

func (s *Service) editorOptions(projectID string) []timeline.Option {
	return []timeline.Option{
		timeline.WithHistoryCapacity(s.opts.HistoryCapacity),
		timeline.WithLogger(logging.WithProjectID(s.logger, projectID)),
	}
}

func (s *Service) Create(ctx context.Context, name string, settings Settings) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	p := &Project{
		ID:         timeline.NewID(),
		Name:       name,
		Settings:   settings,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	editor := timeline.NewEditor(timeline.NewRegistry(), s.editorOptions(p.ID)...)
	if err := s.repo.CreateProject(ctx, p, editor.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.mu.Lock()
	s.sessions[p.ID] = newSession(*p, editor)
	s.mu.Unlock()

	s.logger.Info("project created", "project_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

// Update renames a project or changes its settings. Empty fields keep their
// current value.
func (s *Service) Update(ctx context.Context, id, name string, settings Settings) (*Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	if settings.Resolution != "" {
		p.Settings.Resolution = settings.Resolution
	}
	if settings.FrameRate != 0 {
		p.Settings.FrameRate = settings.FrameRate
	}
	if settings.AspectRatio != "" {
		p.Settings.AspectRatio = settings.AspectRatio
	}
	if err := p.Settings.Validate(); err != nil {
		return nil, err
	}
	p.ModifiedAt = s.opts.Now().UTC()
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		sess.mu.Lock()
		sess.project = *p
		sess.mu.Unlock()
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// Open returns the live session for a project, restoring it from the
// database on first use.
func (s *Service) Open(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	editor, err := timeline.Restore(*rec, s.editorOptions(id)...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore project %s: %w", id, err)
	}

	sess := newSession(*p, editor)
	s.sessions[id] = sess
	if err := s.repo.SetConfig(ctx, lastProjectKey, id); err != nil {
		s.logger.Warn("failed to remember last project", "project_id", id, "error", err)
	}
	s.logger.Info("project opened", "project_id", id, "placements", editor.Timeline().PlacementCount())
	return sess, nil
}

// LastProject returns the id of the most recently opened project, or "".
func (s *Service) LastProject(ctx context.Context) (string, error) {
	return s.repo.GetConfig(ctx, lastProjectKey)
}

// Close saves and forgets the session. Its history is lost.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.save(ctx, sess)
}

func (s *Service) Save(ctx context.Context, id string) error {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.save(ctx, sess)
}

// save must be called with sess.mu held.
func (s *Service) save(ctx context.Context, sess *Session) error {
	now := s.opts.Now().UTC()
	if err := s.repo.SaveRecord(ctx, sess.project.ID, sess.editor.Snapshot(), now); err != nil {
		return fmt.Errorf("failed to save project %s: %w", sess.project.ID, err)
	}
	sess.project.ModifiedAt = now
	return nil
}

// Edit runs fn against the project's editor under the session lock and
// returns the transition changes the edit caused.
func (s *Service) Edit(ctx context.Context, id string, fn func(*timeline.Editor) error) ([]timeline.TransitionEvent, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.takeEvents()
	if err := fn(sess.editor); err != nil {
		return sess.takeEvents(), err
	}
	events := sess.takeEvents()
	if s.opts.Autosave {
		if err := s.save(ctx, sess); err != nil {
			return events, err
		}
	}
	return events, nil
}

// View runs fn with the session locked. fn must not retain the session's
// editor or controller.
func (s *Service) View(ctx context.Context, id string, fn func(*Session) error) error {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *Service) Snapshot(ctx context.Context, id string) (timeline.Record, error) {
	var rec timeline.Record
	err := s.View(ctx, id, func(sess *Session) error {
		rec = sess.editor.Snapshot()
		return nil
	})
	return rec, err
}

// PlaybackAction identifies a transport command.
type PlaybackAction string

const (
	ActionPlay  PlaybackAction = "play"
	ActionPause PlaybackAction = "pause"
	ActionStop  PlaybackAction = "stop"
	ActionSeek  PlaybackAction = "seek"
	ActionRate  PlaybackAction = "rate"
)

// Control applies a transport command and returns the resulting frame.
// value is the seek target or the new rate.
func (s *Service) Control(ctx context.Context, id string, action PlaybackAction, value float64) (playback.Frame, error) {
	var frame playback.Frame
	err := s.View(ctx, id, func(sess *Session) error {
		now := s.opts.Now()
		p := sess.player
		switch action {
		case ActionPlay:
			p.Play(now)
		case ActionPause:
			p.Pause(now)
		case ActionStop:
			p.Stop()
		case ActionSeek:
			if err := p.Seek(value, now); err != nil {
				return err
			}
		case ActionRate:
			if err := p.SetRate(value, now); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidAction, action)
		}
		frame = p.Tick(now)
		return nil
	})
	return frame, err
}

// Frame advances the playhead to now and returns what is visible.
func (s *Service) Frame(ctx context.Context, id string) (playback.Frame, error) {
	var frame playback.Frame
	err := s.View(ctx, id, func(sess *Session) error {
		frame = sess.player.Tick(s.opts.Now())
		return nil
	})
	return frame, err
}

// Preview renders the visible layers at the current playhead.
func (s *Service) Preview(ctx context.Context, id string) (playback.Frame, []render.FrameHandle, error) {
	var (
		frame   playback.Frame
		handles []render.FrameHandle
	)
	err := s.View(ctx, id, func(sess *Session) error {
		frame = sess.player.Tick(s.opts.Now())
		var err error
		handles, err = playback.Preview(ctx, s.opts.Renderer(sess.editor.Registry()), frame)
		return err
	})
	return frame, handles, err
}

func (s *Service) AddMarker(ctx context.Context, id string, at float64, label string) (*Marker, error) {
	if at < 0 || math.IsNaN(at) || math.IsInf(at, 0) {
		return nil, fmt.Errorf("%w: time %g", ErrInvalidMarker, at)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	m := &Marker{
		ID:        timeline.NewID(),
		ProjectID: id,
		Time:      at,
		Label:     strings.TrimSpace(label),
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.repo.AddMarker(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMarkers(ctx context.Context, id string) ([]*Marker, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListMarkers(ctx, id)
}

func (s *Service) RemoveMarker(ctx context.Context, id, markerID string) error {
	ok, err := s.repo.DeleteMarker(ctx, id, markerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, markerID)
	}
	return nil
}

// RequestExport snapshots the timeline and queues it. Title and resolution
// default to the project's name and settings.
func (s *Service) RequestExport(ctx context.Context, id string, settings export.Settings) (*export.Job, error) {
	if s.exports == nil {
		return nil, ErrExportsDisabled
	}
	var (
		rec timeline.Record
		p   Project
	)
	err := s.View(ctx, id, func(sess *Session) error {
		rec = sess.editor.Snapshot()
		p = sess.project
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settings.Title == "" {
		settings.Title = p.Name
	}
	if settings.Resolution == "" {
		settings.Resolution = p.Settings.Resolution
	}
	if settings.FrameRate == 0 {
		settings.FrameRate = p.Settings.FrameRate
	}

	job, err := s.exports.Submit(ctx, id, rec, settings)
	if err != nil {
		return nil, err
	}
	logging.WithJobID(s.logger, job.ID).Info("export requested",
		"project_id", id, "format", job.Settings.Format, "duration", rec.Duration())
	return job, nil
}
