package project

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/db"
	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func setupTestDB(t *testing.T) Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSubmitter struct {
	projectID string
	snapshot  timeline.Record
	settings  export.Settings
}

func (f *fakeSubmitter) Submit(ctx context.Context, projectID string, snapshot timeline.Record, settings export.Settings) (*export.Job, error) {
	f.projectID = projectID
	f.snapshot = snapshot
	f.settings = settings
	return &export.Job{ID: "job-1", ProjectID: projectID, Status: export.JobPending, Settings: settings}, nil
}

func newTestService(t *testing.T, repo Repository, exports ExportSubmitter) (*Service, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(repo, exports, Options{Autosave: true, Now: c.now}), c
}

// insertTenSecondClip registers a 10s video and places it at 0 on track 0.
func insertTenSecondClip(t *testing.T, svc *Service, id string) timeline.Placement {
	t.Helper()
	var p timeline.Placement
	_, err := svc.Edit(context.Background(), id, func(e *timeline.Editor) error {
		clip, err := e.Registry().Register(timeline.ClipSpec{Kind: timeline.ClipVideo, SourceRef: "/media/a.mp4", Duration: 10})
		if err != nil {
			return err
		}
		p, err = e.InsertClip(0, clip.ID, 0, 0, 10)
		return err
	})
	if err != nil {
		t.Fatalf("Edit(insert) error = %v", err)
	}
	return p
}

func TestService_CreateGetList(t *testing.T) {
	svc, _ := newTestService(t, setupTestDB(t), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, "  Demo Reel ", Settings{FrameRate: 24})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name != "Demo Reel" || p.Settings.Resolution != "1080p" || p.Settings.FrameRate != 24 || p.Settings.AspectRatio != "16:9" {
		t.Fatalf("project = %+v", p)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != p.Name || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("Get() = %+v, want %+v", got, p)
	}

	svc.Create(ctx, "Second", Settings{})
	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List() = %d, %v", len(list), err)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newTestService(t, setupTestDB(t), nil)

	tests := []struct {
		name     string
		title    string
		settings Settings
	}{
		{name: "empty name", title: "  "},
		{name: "unknown resolution", title: "x", settings: Settings{Resolution: "8K"}},
		{name: "bad aspect", title: "x", settings: Settings{AspectRatio: "21:9"}},
		{name: "negative fps", title: "x", settings: Settings{FrameRate: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.title, tc.settings); !errors.Is(err, ErrInvalidProject) {
				t.Fatalf("Create() error = %v, want ErrInvalidProject", err)
			}
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, c := newTestService(t, setupTestDB(t), nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Draft", Settings{})

	c.advance(time.Minute)
	updated, err := svc.Update(ctx, p.ID, "Final", Settings{Resolution: "4K"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Final" || updated.Settings.Resolution != "4K" || updated.Settings.FrameRate != 30 {
		t.Fatalf("updated = %+v", updated)
	}
	if !updated.ModifiedAt.After(p.ModifiedAt) {
		t.Fatalf("ModifiedAt not bumped")
	}
	svc.View(ctx, p.ID, func(s *Session) error {
		if s.Project().Name != "Final" {
			t.Fatalf("open session still named %q", s.Project().Name)
		}
		return nil
	})

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Open(ctx, p.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("Open() after delete error = %v", err)
	}
	if err := svc.Delete(ctx, p.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestService_AutosaveSurvivesReopen(t *testing.T) {
	repo := setupTestDB(t)
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Reel", Settings{})

	placed := insertTenSecondClip(t, svc, p.ID)
	before, err := svc.Snapshot(ctx, p.ID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	// A fresh service has no sessions and must restore from the database.
	other, _ := newTestService(t, repo, nil)
	after, err := other.Snapshot(ctx, p.ID)
	if err != nil {
		t.Fatalf("Snapshot() after reopen error = %v", err)
	}
	a, _ := json.Marshal(before)
	b, _ := json.Marshal(after)
	if string(a) != string(b) {
		t.Fatalf("restored record differs:\n%s\n%s", a, b)
	}

	err = other.View(ctx, p.ID, func(s *Session) error {
		if s.Editor().History().CanUndo() {
			t.Fatalf("history should not survive a reopen")
		}
		if _, err := s.Editor().Timeline().Placement(placed.ID); err != nil {
			t.Fatalf("placement lost: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	last, _ := other.LastProject(ctx)
	if last != p.ID {
		t.Fatalf("LastProject() = %q, want %q", last, p.ID)
	}
}

func TestService_ReopenAfterUndoWithTransition(t *testing.T) {
	repo := setupTestDB(t)
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Undo", Settings{})

	_, err := svc.Edit(ctx, p.ID, func(e *timeline.Editor) error {
		clip, _ := e.Registry().Register(timeline.ClipSpec{Kind: timeline.ClipVideo, SourceRef: "/a.mp4", Duration: 10})
		first, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
		second, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
		_, err := e.Index().AddTransition(first.ID, second.ID, timeline.TransitionFade, 1)
		return err
	})
	if err != nil {
		t.Fatalf("Edit(setup) error = %v", err)
	}

	events, err := svc.Edit(ctx, p.ID, func(e *timeline.Editor) error {
		_, err := e.Undo()
		return err
	})
	if err != nil {
		t.Fatalf("Edit(undo) error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != timeline.TransitionRemoved {
		t.Fatalf("events = %+v", events)
	}
	if err := svc.Close(ctx, p.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	other, _ := newTestService(t, repo, nil)
	if _, err := other.Open(ctx, p.ID); err != nil {
		t.Fatalf("Open() after undo error = %v", err)
	}
	rec, err := other.Snapshot(ctx, p.ID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(rec.Transitions) != 0 || len(rec.Tracks) != 1 || len(rec.Tracks[0].Placements) != 1 {
		t.Fatalf("reopened record = %+v", rec)
	}
}

func TestService_SaveWithoutAutosave(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, nil, Options{})
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Manual", Settings{})
	insertTenSecondClip(t, svc, p.ID)

	rec, _ := repo.GetRecord(ctx, p.ID)
	if len(rec.Tracks) != 0 {
		t.Fatalf("edit persisted without autosave")
	}
	if err := svc.Close(ctx, p.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rec, _ = repo.GetRecord(ctx, p.ID)
	if len(rec.Tracks) != 1 || rec.Duration() != 10 {
		t.Fatalf("Close() did not save: %+v", rec)
	}
}

func TestService_EditReportsTransitionEvents(t *testing.T) {
	svc, _ := newTestService(t, setupTestDB(t), nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Cuts", Settings{})

	var first, second timeline.Placement
	_, err := svc.Edit(ctx, p.ID, func(e *timeline.Editor) error {
		clip, _ := e.Registry().Register(timeline.ClipSpec{Kind: timeline.ClipVideo, SourceRef: "/a.mp4", Duration: 10})
		first, _ = e.InsertClip(0, clip.ID, 0, 0, 5)
		second, _ = e.InsertClip(0, clip.ID, 5, 0, 5)
		_, err := e.Index().AddTransition(first.ID, second.ID, timeline.TransitionFade, 1)
		return err
	})
	if err != nil {
		t.Fatalf("Edit(setup) error = %v", err)
	}

	events, err := svc.Edit(ctx, p.ID, func(e *timeline.Editor) error {
		_, err := e.Trim(first.ID, 0, 3)
		return err
	})
	if err != nil {
		t.Fatalf("Edit(trim) error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != timeline.TransitionRemoved {
		t.Fatalf("events = %+v", events)
	}

	events, err = svc.Edit(ctx, p.ID, func(e *timeline.Editor) error {
		_, err := e.Move(second.ID, 0, 1)
		return err
	})
	if !errors.Is(err, timeline.ErrOverlap) {
		t.Fatalf("overlapping move error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed edit reported events: %+v", events)
	}
}

func TestService_Playback(t *testing.T) {
	svc, c := newTestService(t, setupTestDB(t), nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Play", Settings{})
	placed := insertTenSecondClip(t, svc, p.ID)

	frame, err := svc.Control(ctx, p.ID, ActionPlay, 0)
	if err != nil {
		t.Fatalf("Control(play) error = %v", err)
	}
	if frame.State != playback.StatePlaying {
		t.Fatalf("state = %s, want playing", frame.State)
	}

	c.advance(2500 * time.Millisecond)
	frame, _ = svc.Frame(ctx, p.ID)
	if frame.Time != 2.5 {
		t.Fatalf("time = %g, want 2.5", frame.Time)
	}
	top, ok := frame.Top()
	if !ok || top.Placement.ID != placed.ID {
		t.Fatalf("top layer = %+v, %v", top, ok)
	}

	frame, _ = svc.Control(ctx, p.ID, ActionSeek, 8)
	if frame.Time != 8 {
		t.Fatalf("seek time = %g", frame.Time)
	}
	if _, err := svc.Control(ctx, p.ID, ActionRate, 0); !errors.Is(err, playback.ErrInvalidRate) {
		t.Fatalf("Control(rate 0) error = %v", err)
	}
	if _, err := svc.Control(ctx, p.ID, "rewind", 0); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("unknown action error = %v", err)
	}

	c.advance(5 * time.Second)
	frame, handles, err := svc.Preview(ctx, p.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if frame.Time != 10 || frame.State != playback.StateStopped {
		t.Fatalf("frame = %+v, want stopped at the end", frame)
	}
	if len(handles) != 0 {
		t.Fatalf("nothing is visible at the end, got %d handles", len(handles))
	}
}

func TestService_Markers(t *testing.T) {
	svc, _ := newTestService(t, setupTestDB(t), nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Marked", Settings{})

	late, err := svc.AddMarker(ctx, p.ID, 12.5, "outro")
	if err != nil {
		t.Fatalf("AddMarker() error = %v", err)
	}
	svc.AddMarker(ctx, p.ID, 1, "intro")

	markers, err := svc.ListMarkers(ctx, p.ID)
	if err != nil || len(markers) != 2 {
		t.Fatalf("ListMarkers() = %d, %v", len(markers), err)
	}
	if markers[0].Label != "intro" || markers[1].ID != late.ID {
		t.Fatalf("markers not ordered by time: %+v", markers)
	}

	if _, err := svc.AddMarker(ctx, p.ID, -1, "x"); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("negative marker error = %v", err)
	}
	if _, err := svc.AddMarker(ctx, "missing", 1, "x"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("marker on missing project error = %v", err)
	}
	if err := svc.RemoveMarker(ctx, p.ID, late.ID); err != nil {
		t.Fatalf("RemoveMarker() error = %v", err)
	}
	if err := svc.RemoveMarker(ctx, p.ID, late.ID); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("second RemoveMarker() error = %v", err)
	}
}

func TestService_RequestExport(t *testing.T) {
	sub := &fakeSubmitter{}
	svc, _ := newTestService(t, setupTestDB(t), sub)
	ctx := context.Background()
	p, _ := svc.Create(ctx, "Trailer", Settings{Resolution: "720p", FrameRate: 24})
	insertTenSecondClip(t, svc, p.ID)

	job, err := svc.RequestExport(ctx, p.ID, export.Settings{Format: export.FormatEDL})
	if err != nil {
		t.Fatalf("RequestExport() error = %v", err)
	}
	if job.ID != "job-1" || sub.projectID != p.ID {
		t.Fatalf("job = %+v", job)
	}
	if sub.settings.Title != "Trailer" || sub.settings.Resolution != "720p" || sub.settings.FrameRate != 24 {
		t.Fatalf("settings = %+v", sub.settings)
	}
	if sub.snapshot.Duration() != 10 {
		t.Fatalf("snapshot duration = %g", sub.snapshot.Duration())
	}

	noExports, _ := newTestService(t, setupTestDB(t), nil)
	q, _ := noExports.Create(ctx, "x", Settings{})
	if _, err := noExports.RequestExport(ctx, q.ID, export.Settings{}); !errors.Is(err, ErrExportsDisabled) {
		t.Fatalf("RequestExport() without runner error = %v", err)
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{65, "1:05"},
		{600, "10:00"},
		{-3, "0:00"},
	}
	for _, tc := range tests {
		if got := FormatTime(tc.seconds); got != tc.want {
			t.Errorf("FormatTime(%g) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
