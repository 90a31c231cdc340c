package timeline

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func newTestEditor(t *testing.T) (*Editor, *Clip) {
	t.Helper()
	reg := NewRegistry()
	clip, err := reg.Register(ClipSpec{Kind: ClipVideo, SourceRef: "/media/a.mp4", Duration: 10})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return NewEditor(reg), clip
}

func snapshotJSON(t *testing.T, e *Editor) string {
	t.Helper()
	b, err := json.Marshal(e.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return string(b)
}

func TestInsertClip_EmptyTimeline(t *testing.T) {
	e, clip := newTestEditor(t)

	p, err := e.InsertClip(0, clip.ID, 0, 0, 10)
	if err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}
	if p.Start != 0 || p.End() != 10 {
		t.Fatalf("placement = [%g, %g), want [0, 10)", p.Start, p.End())
	}
	if got := e.Duration(); got != 10 {
		t.Fatalf("Duration() = %g, want 10", got)
	}
	if e.Timeline().TrackCount() != 1 {
		t.Fatalf("expected track to be created lazily")
	}
}

func TestInsertClip_OverlapLeavesTimelineUnchanged(t *testing.T) {
	e, clip := newTestEditor(t)
	if _, err := e.InsertClip(0, clip.ID, 0, 0, 10); err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}
	before := snapshotJSON(t, e)
	historyLen := e.History().Len()

	_, err := e.InsertClip(0, clip.ID, 5, 0, 5)
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("InsertClip() error = %v, want ErrOverlap", err)
	}
	if after := snapshotJSON(t, e); after != before {
		t.Fatalf("timeline changed after rejected insert")
	}
	if e.History().Len() != historyLen {
		t.Fatalf("rejected insert was recorded")
	}
}

func TestInsertClip_Validation(t *testing.T) {
	tests := []struct {
		name    string
		track   int
		clipID  string
		start   float64
		in, out float64
		wantErr error
	}{
		{name: "track gap", track: 2, start: 0, in: 0, out: 1, wantErr: ErrTrackNotFound},
		{name: "negative track", track: -1, start: 0, in: 0, out: 1, wantErr: ErrTrackNotFound},
		{name: "unknown clip", clipID: "missing", start: 0, in: 0, out: 1, wantErr: ErrNotFound},
		{name: "negative start", start: -1, in: 0, out: 1, wantErr: ErrInvalidPosition},
		{name: "negative in", start: 0, in: -1, out: 1, wantErr: ErrInvalidTrim},
		{name: "empty window", start: 0, in: 3, out: 3, wantErr: ErrInvalidTrim},
		{name: "out past clip", start: 0, in: 0, out: 11, wantErr: ErrInvalidTrim},
		{name: "NaN start", start: math.NaN(), in: 0, out: 5, wantErr: ErrInvalidPosition},
		{name: "infinite start", start: math.Inf(1), in: 0, out: 5, wantErr: ErrInvalidPosition},
		{name: "NaN in", start: 20, in: math.NaN(), out: 5, wantErr: ErrInvalidTrim},
		{name: "NaN out", start: 0, in: 0, out: math.NaN(), wantErr: ErrInvalidTrim},
		{name: "negative infinite in", start: 0, in: math.Inf(-1), out: 5, wantErr: ErrInvalidTrim},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, clip := newTestEditor(t)
			id := clip.ID
			if tc.clipID != "" {
				id = tc.clipID
			}
			_, err := e.InsertClip(tc.track, id, tc.start, tc.in, tc.out)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("InsertClip() error = %v, want %v", err, tc.wantErr)
			}
			if e.Timeline().TrackCount() != 0 {
				t.Fatalf("rejected insert created a track")
			}
		})
	}
}

func TestInsertClip_TouchingIsNotOverlap(t *testing.T) {
	e, clip := newTestEditor(t)
	if _, err := e.InsertClip(0, clip.ID, 0, 0, 5); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := e.InsertClip(0, clip.ID, 5, 0, 5); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}
	placements := e.Timeline().tracks[0].Placements()
	if len(placements) != 2 || placements[0].Start != 0 || placements[1].Start != 5 {
		t.Fatalf("unexpected track contents: %+v", placements)
	}
}

func TestAppendClip(t *testing.T) {
	e, clip := newTestEditor(t)
	if _, err := e.AppendClip(0, clip.ID); err != nil {
		t.Fatalf("AppendClip() error = %v", err)
	}
	p, err := e.AppendClip(0, clip.ID)
	if err != nil {
		t.Fatalf("AppendClip() error = %v", err)
	}
	if p.Start != 10 || e.Duration() != 20 {
		t.Fatalf("second append at %g, duration %g", p.Start, e.Duration())
	}
}

func TestSplit(t *testing.T) {
	e, clip := newTestEditor(t)
	orig, err := e.InsertClip(0, clip.ID, 0, 0, 10)
	if err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}

	left, right, err := e.Split(orig.ID, 4)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if left.Start != 0 || left.End() != 4 || right.Start != 4 || right.End() != 10 {
		t.Fatalf("halves = [%g,%g) [%g,%g)", left.Start, left.End(), right.Start, right.End())
	}
	if left.SourceIn != 0 || left.SourceOut != 4 || right.SourceIn != 4 || right.SourceOut != 10 {
		t.Fatalf("source windows = [%g,%g) [%g,%g)", left.SourceIn, left.SourceOut, right.SourceIn, right.SourceOut)
	}
	if left.ClipID != clip.ID || right.ClipID != clip.ID {
		t.Fatalf("halves must reference the original clip")
	}
	if left.Duration+right.Duration != orig.Duration {
		t.Fatalf("split changed total duration")
	}
	if _, err := e.Timeline().Placement(orig.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("original placement still present")
	}
}

func TestSplit_RejectsBoundaries(t *testing.T) {
	for _, off := range []float64{0, 10, -1, 12} {
		e, clip := newTestEditor(t)
		p, _ := e.InsertClip(0, clip.ID, 0, 0, 10)
		if _, _, err := e.Split(p.ID, off); !errors.Is(err, ErrInvalidSplit) {
			t.Fatalf("Split(%g) error = %v, want ErrInvalidSplit", off, err)
		}
	}
}

func TestSplit_CopiesEffectsAndRepointsTransitions(t *testing.T) {
	e, clip := newTestEditor(t)
	a, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	b, _ := e.InsertClip(0, clip.ID, 5, 0, 10)
	c, _ := e.InsertClip(0, clip.ID, 15, 0, 5)

	in, err := e.Index().AddTransition(a.ID, b.ID, TransitionFade, 1)
	if err != nil {
		t.Fatalf("AddTransition(a,b) error = %v", err)
	}
	out, err := e.Index().AddTransition(b.ID, c.ID, TransitionBlur, 0)
	if err != nil {
		t.Fatalf("AddTransition(b,c) error = %v", err)
	}
	fx, err := e.Index().AddEffect(b.ID, EffectVintage, map[string]float64{"intensity": 0.4})
	if err != nil {
		t.Fatalf("AddEffect() error = %v", err)
	}

	left, right, err := e.Split(b.ID, 3)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	gotIn, _ := e.Index().Transition(in.ID)
	if gotIn.To != left.ID {
		t.Fatalf("incoming transition points to %s, want left half", gotIn.To)
	}
	gotOut, _ := e.Index().Transition(out.ID)
	if gotOut.From != right.ID {
		t.Fatalf("outgoing transition points from %s, want right half", gotOut.From)
	}

	for _, half := range []Placement{left, right} {
		effects := e.Index().EffectsFor(half.ID)
		if len(effects) != 1 || effects[0].Kind != EffectVintage {
			t.Fatalf("half %s effects = %+v", half.ID, effects)
		}
		if effects[0].ID == fx.ID {
			t.Fatalf("copied effect reuses original id")
		}
		if v, _ := effects[0].Param("intensity"); v != 0.4 {
			t.Fatalf("intensity = %g, want 0.4", v)
		}
	}
}

func TestTrim_RemovesTransitionThatLosesAdjacency(t *testing.T) {
	e, clip := newTestEditor(t)
	p1, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	p2, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	tr, err := e.Index().AddTransition(p1.ID, p2.ID, TransitionFade, 1)
	if err != nil {
		t.Fatalf("AddTransition() error = %v", err)
	}

	var events []TransitionEvent
	e.OnTransitionChange(func(ev TransitionEvent) { events = append(events, ev) })

	trimmed, err := e.Trim(p1.ID, 0, 3)
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if trimmed.Start != 0 || trimmed.End() != 3 {
		t.Fatalf("trimmed = [%g, %g), want [0, 3)", trimmed.Start, trimmed.End())
	}
	if _, err := e.Index().Transition(tr.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("transition survived losing adjacency")
	}
	if len(events) != 1 || events[0].Kind != TransitionRemoved || events[0].Transition.ID != tr.ID {
		t.Fatalf("events = %+v", events)
	}
}

func TestTrim_ClipsTransitionDuration(t *testing.T) {
	reg := NewRegistry()
	clip, _ := reg.Register(ClipSpec{Kind: ClipVideo, SourceRef: "/a.mov", Duration: 10})
	e := NewEditor(reg)
	p1, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	p2, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	tr, _ := e.Index().AddTransition(p1.ID, p2.ID, TransitionRotate, 2)

	var events []TransitionEvent
	e.OnTransitionChange(func(ev TransitionEvent) { events = append(events, ev) })

	if _, err := e.Trim(p2.ID, 3.5, 5); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	got, err := e.Index().Transition(tr.ID)
	if err != nil {
		t.Fatalf("transition removed: %v", err)
	}
	if got.Duration != 1.5 {
		t.Fatalf("duration = %g, want 1.5", got.Duration)
	}
	if len(events) != 1 || events[0].Kind != TransitionClipped || events[0].Previous != 2 {
		t.Fatalf("events = %+v", events)
	}
}

func TestTrim_Validation(t *testing.T) {
	e, clip := newTestEditor(t)
	p1, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	if _, err := e.InsertClip(0, clip.ID, 6, 0, 4); err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}

	if _, err := e.Trim(p1.ID, 4, 2); !errors.Is(err, ErrInvalidTrim) {
		t.Fatalf("inverted window error = %v", err)
	}
	if _, err := e.Trim(p1.ID, 0, 10.5); !errors.Is(err, ErrInvalidTrim) {
		t.Fatalf("window past clip error = %v", err)
	}
	if _, err := e.Trim(p1.ID, 0, 8); !errors.Is(err, ErrOverlap) {
		t.Fatalf("growing into neighbour error = %v", err)
	}
	if _, err := e.Trim("missing", 0, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing placement error = %v", err)
	}
}

func TestTrim_RoundTrip(t *testing.T) {
	e, clip := newTestEditor(t)
	p, _ := e.InsertClip(0, clip.ID, 2, 1, 9)

	if _, err := e.Trim(p.ID, 3, 6); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	back, err := e.Trim(p.ID, 1, 9)
	if err != nil {
		t.Fatalf("Trim() back error = %v", err)
	}
	if back != p {
		t.Fatalf("round trip = %+v, want %+v", back, p)
	}
}

func TestMove(t *testing.T) {
	e, clip := newTestEditor(t)
	p1, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	p2, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	if _, err := e.Index().AddTransition(p1.ID, p2.ID, TransitionSlide, 1); err != nil {
		t.Fatalf("AddTransition() error = %v", err)
	}

	if _, err := e.Move(p2.ID, 0, 2); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlapping move error = %v", err)
	}
	if _, err := e.Move(p2.ID, 0, -1); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("negative move error = %v", err)
	}

	moved, err := e.Move(p2.ID, 1, 20)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if moved.Track != 1 || moved.Start != 20 {
		t.Fatalf("moved = %+v", moved)
	}
	if e.Timeline().TrackCount() != 2 {
		t.Fatalf("move to next index should create a track")
	}
	if len(e.Index().Transitions()) != 0 {
		t.Fatalf("cross-track move must drop the transition")
	}
	if e.Duration() != 25 {
		t.Fatalf("Duration() = %g, want 25", e.Duration())
	}
}

func TestDelete(t *testing.T) {
	e, clip := newTestEditor(t)
	p1, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	p2, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	e.Index().AddTransition(p1.ID, p2.ID, TransitionFade, 1)
	e.Index().AddEffect(p1.ID, EffectBW, nil)

	if err := e.Delete(p1.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(e.Index().Transitions()) != 0 || len(e.Index().EffectsFor(p1.ID)) != 0 {
		t.Fatalf("delete left dangling associations")
	}
	if err := e.Delete(p1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v", err)
	}
	if err := e.Registry().Unregister(clip.ID); !errors.Is(err, ErrClipInUse) {
		t.Fatalf("Unregister() error = %v, want ErrClipInUse", err)
	}
	e.Delete(p2.ID)
	if err := e.Registry().Unregister(clip.ID); err != nil {
		t.Fatalf("Unregister() after deleting placements: %v", err)
	}
}

func TestVisibleAt_OrdersByZ(t *testing.T) {
	e, clip := newTestEditor(t)
	low, _ := e.InsertClip(0, clip.ID, 0, 0, 10)
	high, _ := e.InsertClip(1, clip.ID, 2, 0, 4)

	layers := e.Timeline().VisibleAt(3)
	if len(layers) != 2 || layers[0].Placement.ID != high.ID || layers[1].Placement.ID != low.ID {
		t.Fatalf("layers = %+v", layers)
	}
	if layers[0].SourceTime() != 1 {
		t.Fatalf("SourceTime() = %g, want 1", layers[0].SourceTime())
	}

	if err := e.ReorderTrack(0, 5); err != nil {
		t.Fatalf("ReorderTrack() error = %v", err)
	}
	layers = e.Timeline().VisibleAt(3)
	if layers[0].Placement.ID != low.ID {
		t.Fatalf("reorder did not raise track 0")
	}

	if got := e.Timeline().VisibleAt(6); len(got) != 1 {
		t.Fatalf("VisibleAt(6) = %+v, want one layer (end is exclusive)", got)
	}
	if got := e.Timeline().VisibleAt(10); len(got) != 0 {
		t.Fatalf("VisibleAt(10) = %+v, want none", got)
	}
}

func TestUndoRedo_RestoresSnapshots(t *testing.T) {
	type step func(t *testing.T, e *Editor, clip *Clip)

	seed := func(t *testing.T, e *Editor, clip *Clip) (Placement, Placement) {
		a, err := e.InsertClip(0, clip.ID, 0, 0, 5)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		b, err := e.InsertClip(0, clip.ID, 5, 0, 5)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		if _, err := e.Index().AddTransition(a.ID, b.ID, TransitionFade, 1); err != nil {
			t.Fatalf("seed transition: %v", err)
		}
		if _, err := e.Index().AddEffect(a.ID, EffectGlitch, nil); err != nil {
			t.Fatalf("seed effect: %v", err)
		}
		return a, b
	}

	tests := []struct {
		name string
		op   step
	}{
		{name: "insert on new track", op: func(t *testing.T, e *Editor, clip *Clip) {
			if _, err := e.InsertClip(1, clip.ID, 3, 0, 2); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "move across tracks", op: func(t *testing.T, e *Editor, clip *Clip) {
			p := e.Timeline().tracks[0].Placements()[1]
			if _, err := e.Move(p.ID, 1, 0); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "trim", op: func(t *testing.T, e *Editor, clip *Clip) {
			p := e.Timeline().tracks[0].Placements()[0]
			if _, err := e.Trim(p.ID, 0, 2); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "split", op: func(t *testing.T, e *Editor, clip *Clip) {
			p := e.Timeline().tracks[0].Placements()[0]
			if _, _, err := e.Split(p.ID, 2.5); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "delete", op: func(t *testing.T, e *Editor, clip *Clip) {
			p := e.Timeline().tracks[0].Placements()[0]
			if err := e.Delete(p.ID); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "reorder", op: func(t *testing.T, e *Editor, clip *Clip) {
			if err := e.ReorderTrack(0, 7); err != nil {
				t.Fatal(err)
			}
		}},
		{name: "volume", op: func(t *testing.T, e *Editor, clip *Clip) {
			p := e.Timeline().tracks[0].Placements()[0]
			if _, err := e.SetVolume(p.ID, 0.3); err != nil {
				t.Fatal(err)
			}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, clip := newTestEditor(t)
			seed(t, e, clip)
			before := snapshotJSON(t, e)

			tc.op(t, e, clip)
			after := snapshotJSON(t, e)
			if after == before {
				t.Fatalf("operation did not change the timeline")
			}

			if _, err := e.Undo(); err != nil {
				t.Fatalf("Undo() error = %v", err)
			}
			if got := snapshotJSON(t, e); got != before {
				t.Fatalf("undo mismatch\n got: %s\nwant: %s", got, before)
			}

			if _, err := e.Redo(); err != nil {
				t.Fatalf("Redo() error = %v", err)
			}
			if got := snapshotJSON(t, e); got != after {
				t.Fatalf("redo mismatch\n got: %s\nwant: %s", got, after)
			}
		})
	}
}

func TestUndo_InsertDropsLazyTrack(t *testing.T) {
	e, clip := newTestEditor(t)
	if _, err := e.InsertClip(0, clip.ID, 0, 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if e.Timeline().TrackCount() != 0 || e.Duration() != 0 {
		t.Fatalf("undo left %d tracks, duration %g", e.Timeline().TrackCount(), e.Duration())
	}
	if _, err := e.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("Undo() on empty history error = %v", err)
	}
	if _, err := e.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if _, err := e.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("Redo() at head error = %v", err)
	}
}

func TestNewEdit_ClearsRedo(t *testing.T) {
	e, clip := newTestEditor(t)
	e.InsertClip(0, clip.ID, 0, 0, 1)
	e.InsertClip(0, clip.ID, 1, 0, 1)
	e.Undo()
	if !e.History().CanRedo() {
		t.Fatalf("expected redo to be available")
	}
	e.InsertClip(0, clip.ID, 5, 0, 1)
	if e.History().CanRedo() {
		t.Fatalf("new edit must clear the redo tail")
	}
}

func TestNonFiniteArguments(t *testing.T) {
	e, clip := newTestEditor(t)
	p, err := e.InsertClip(0, clip.ID, 0, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	next, err := e.InsertClip(0, clip.ID, 4, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	historyLen := e.History().Len()

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"move NaN start", func() error { _, err := e.Move(p.ID, 0, math.NaN()); return err }, ErrInvalidPosition},
		{"move infinite start", func() error { _, err := e.Move(p.ID, 0, math.Inf(1)); return err }, ErrInvalidPosition},
		{"trim NaN in", func() error { _, err := e.Trim(p.ID, math.NaN(), 2); return err }, ErrInvalidTrim},
		{"trim infinite out", func() error { _, err := e.Trim(p.ID, 0, math.Inf(1)); return err }, ErrInvalidTrim},
		{"split NaN", func() error { _, _, err := e.Split(p.ID, math.NaN()); return err }, ErrInvalidSplit},
		{"volume NaN", func() error { _, err := e.SetVolume(p.ID, math.NaN()); return err }, ErrInvalidVolume},
		{"transition NaN duration", func() error {
			_, err := e.Index().AddTransition(p.ID, next.ID, TransitionFade, math.NaN())
			return err
		}, ErrInvalidTransition},
		{"effect NaN param", func() error {
			_, err := e.Index().AddEffect(p.ID, EffectGlitch, map[string]float64{"intensity": math.NaN()})
			return err
		}, ErrInvalidEffect},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.op(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if e.History().Len() != historyLen {
		t.Fatalf("rejected edits were recorded")
	}
	if got, _ := e.Timeline().Placement(p.ID); got != p {
		t.Fatalf("placement changed: %+v", got)
	}
}

func TestSetVolume(t *testing.T) {
	e, clip := newTestEditor(t)
	p, _ := e.InsertClip(0, clip.ID, 0, 0, 6)
	if p.Volume != DefaultVolume {
		t.Fatalf("new placement volume = %g, want %g", p.Volume, DefaultVolume)
	}

	quiet, err := e.SetVolume(p.ID, 0.4)
	if err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if got, _ := e.Timeline().Placement(p.ID); got.Volume != 0.4 || quiet.Volume != 0.4 {
		t.Fatalf("volume = %g, want 0.4", got.Volume)
	}

	left, right, err := e.Split(p.ID, 2)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if left.Volume != 0.4 || right.Volume != 0.4 {
		t.Fatalf("split halves volume = %g, %g", left.Volume, right.Volume)
	}

	e.Undo()
	entry, err := e.Undo()
	if err != nil || entry.Kind() != "volume" {
		t.Fatalf("Undo() = %v, %v", entry, err)
	}
	if got, _ := e.Timeline().Placement(p.ID); got.Volume != DefaultVolume {
		t.Fatalf("undo left volume %g", got.Volume)
	}

	for _, v := range []float64{-0.1, MaxVolume + 0.5, math.Inf(1)} {
		if _, err := e.SetVolume(p.ID, v); !errors.Is(err, ErrInvalidVolume) {
			t.Errorf("SetVolume(%g) error = %v", v, err)
		}
	}
	if _, err := e.SetVolume("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetVolume(missing) error = %v", err)
	}
}

// restorable fails the test when the editor's snapshot cannot be loaded
// back, which is what a reopened project does.
func restorable(t *testing.T, e *Editor) {
	t.Helper()
	var rec Record
	if err := json.Unmarshal([]byte(snapshotJSON(t, e)), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := Restore(rec); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
}

func TestUndoInsert_DropsTransitionAndEffects(t *testing.T) {
	e, clip := newTestEditor(t)
	var events []TransitionEvent
	e.OnTransitionChange(func(ev TransitionEvent) { events = append(events, ev) })

	a, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	b, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	tr, err := e.Index().AddTransition(a.ID, b.ID, TransitionFade, 1)
	if err != nil {
		t.Fatalf("AddTransition() error = %v", err)
	}
	if _, err := e.Index().AddEffect(b.ID, EffectGlitch, nil); err != nil {
		t.Fatalf("AddEffect() error = %v", err)
	}

	if _, err := e.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if e.Timeline().PlacementCount() != 1 || len(e.Index().Transitions()) != 0 {
		t.Fatalf("after undo: %d placements, %d transitions", e.Timeline().PlacementCount(), len(e.Index().Transitions()))
	}
	if len(e.Snapshot().Effects) != 0 || len(e.Index().EffectsFor(b.ID)) != 0 {
		t.Fatalf("effects of the undone placement survived")
	}
	if len(events) != 1 || events[0].Kind != TransitionRemoved || events[0].Transition.ID != tr.ID {
		t.Fatalf("events = %+v", events)
	}
	restorable(t, e)

	if _, err := e.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if e.Timeline().PlacementCount() != 2 {
		t.Fatalf("redo did not bring the placement back")
	}
	restorable(t, e)
}

func TestUndoTrim_RemovesTransitionAcrossGap(t *testing.T) {
	e, clip := newTestEditor(t)
	a, _ := e.InsertClip(0, clip.ID, 0, 0, 3)
	b, _ := e.InsertClip(0, clip.ID, 5, 0, 5)
	if _, err := e.Trim(a.ID, 0, 5); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if _, err := e.Index().AddTransition(a.ID, b.ID, TransitionBlur, 1); err != nil {
		t.Fatalf("AddTransition() error = %v", err)
	}

	if _, err := e.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if got, _ := e.Timeline().Placement(a.ID); got.End() != 3 {
		t.Fatalf("undo trim end = %g, want 3", got.End())
	}
	if n := len(e.Index().Transitions()); n != 0 {
		t.Fatalf("transition across a gap survived undo (%d left)", n)
	}
	restorable(t, e)
}

func TestUndoTrim_ClipsTransitionThatStillFits(t *testing.T) {
	e, clip := newTestEditor(t)
	a, _ := e.InsertClip(0, clip.ID, 0, 0, 5)
	b, _ := e.InsertClip(0, clip.ID, 5, 0, 1)
	if _, err := e.Trim(b.ID, 0, 5); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	tr, err := e.Index().AddTransition(a.ID, b.ID, TransitionFade, 3)
	if err != nil {
		t.Fatalf("AddTransition() error = %v", err)
	}
	var events []TransitionEvent
	e.OnTransitionChange(func(ev TransitionEvent) { events = append(events, ev) })

	if _, err := e.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	got, err := e.Index().Transition(tr.ID)
	if err != nil || got.Duration != 1 {
		t.Fatalf("Transition() = %+v, %v; want duration 1", got, err)
	}
	if len(events) != 1 || events[0].Kind != TransitionClipped || events[0].Previous != 3 {
		t.Fatalf("events = %+v", events)
	}
	restorable(t, e)
}

func TestUndoDelete_FailsWhenClipUnregistered(t *testing.T) {
	e, _ := newTestEditor(t)
	extra, _ := e.Registry().Register(ClipSpec{Kind: ClipImage, SourceRef: "/media/b.png"})
	p, _ := e.InsertClip(0, extra.ID, 0, 0, 2)
	if err := e.Delete(p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := e.Registry().Unregister(extra.ID); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	before := snapshotJSON(t, e)
	if _, err := e.Undo(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Undo() error = %v, want ErrNotFound", err)
	}
	if got := snapshotJSON(t, e); got != before {
		t.Fatalf("failed undo changed the timeline\n got: %s\nwant: %s", got, before)
	}
	if e.History().Cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", e.History().Cursor())
	}
	restorable(t, e)
}

func TestRedoInsert_FailsWhenClipUnregistered(t *testing.T) {
	e, _ := newTestEditor(t)
	extra, _ := e.Registry().Register(ClipSpec{Kind: ClipAudio, SourceRef: "/media/c.wav", Duration: 3})
	e.InsertClip(0, extra.ID, 0, 0, 3)
	e.Undo()
	if err := e.Registry().Unregister(extra.ID); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, err := e.Redo(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Redo() error = %v, want ErrNotFound", err)
	}
	if e.Timeline().PlacementCount() != 0 || !e.History().CanRedo() {
		t.Fatalf("failed redo changed state")
	}
}
