package timeline

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
)

// Editor is the structural edit surface over one timeline. Every operation
// validates completely before writing, so a rejected call leaves the
// timeline, the index and the history untouched.
type Editor struct {
	timeline  *Timeline
	registry  *Registry
	index     *Index
	history   *History
	listeners []func(TransitionEvent)
	logger    *slog.Logger
}

type Option func(*Editor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithHistoryCapacity(capacity int) Option {
	return func(e *Editor) {
		e.history = NewHistory(capacity)
	}
}

// NewEditor creates an empty timeline bound to reg.
func NewEditor(reg *Registry, opts ...Option) *Editor {
	tl := New()
	e := &Editor{
		timeline: tl,
		registry: reg,
		index:    NewIndex(tl),
		history:  NewHistory(DefaultHistoryCapacity),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	reg.Attach(tl)
	return e
}

func (e *Editor) Timeline() *Timeline { return e.timeline }
func (e *Editor) Registry() *Registry { return e.registry }
func (e *Editor) Index() *Index { return e.index }
func (e *Editor) History() *History { return e.history }
func (e *Editor) Duration() float64 { return e.timeline.Duration() }

// OnTransitionChange registers fn for transitions the editor clips or
// removes as a side effect of an edit.
func (e *Editor) OnTransitionChange(fn func(TransitionEvent)) {
	e.listeners = append(e.listeners, fn)
}

// InsertClip places [sourceIn, sourceOut) of a clip at start on a track.
// trackIndex may equal the track count, in which case a track is created.
func (e *Editor) InsertClip(trackIndex int, clipID string, start, sourceIn, sourceOut float64) (Placement, error) {
	if err := e.timeline.checkTrackIndex(trackIndex); err != nil {
		return Placement{}, err
	}
	clip, err := e.registry.Get(clipID)
	if err != nil {
		return Placement{}, err
	}
	if err := checkWindow(clip, sourceIn, sourceOut); err != nil {
		return Placement{}, err
	}
	if err := checkStart(start); err != nil {
		return Placement{}, err
	}

	p := Placement{
		ID:        NewID(),
		Track:     trackIndex,
		ClipID:    clipID,
		Start:     start,
		Duration:  sourceOut - sourceIn,
		SourceIn:  sourceIn,
		SourceOut: sourceOut,
		Volume:    DefaultVolume,
	}
	if !e.timeline.fits(trackIndex, p.Start, p.End(), "") {
		return Placement{}, fmt.Errorf("%w: track %d [%g, %g)", ErrOverlap, trackIndex, p.Start, p.End())
	}

	entry := InsertEntry{Placement: p, NewTrack: e.newTrackRef(trackIndex)}
	if err := e.commit(entry, nil); err != nil {
		return Placement{}, err
	}
	e.logger.Debug("clip inserted", "placement_id", p.ID, "clip_id", clipID, "track", trackIndex, "start", start)
	return p, nil
}

// AppendClip places the whole clip right after the last placement of the
// track.
func (e *Editor) AppendClip(trackIndex int, clipID string) (Placement, error) {
	if err := e.timeline.checkTrackIndex(trackIndex); err != nil {
		return Placement{}, err
	}
	clip, err := e.registry.Get(clipID)
	if err != nil {
		return Placement{}, err
	}
	var start float64
	if trackIndex < e.timeline.TrackCount() {
		start = e.timeline.tracks[trackIndex].End()
	}
	return e.InsertClip(trackIndex, clipID, start, 0, clip.Duration)
}

// Move relocates a placement to another track and/or start time.
func (e *Editor) Move(placementID string, newTrack int, newStart float64) (Placement, error) {
	before, err := e.timeline.Placement(placementID)
	if err != nil {
		return Placement{}, err
	}
	if err := e.timeline.checkTrackIndex(newTrack); err != nil {
		return Placement{}, err
	}
	if err := checkStart(newStart); err != nil {
		return Placement{}, err
	}

	after := before
	after.Track = newTrack
	after.Start = newStart
	if !e.timeline.fits(newTrack, after.Start, after.End(), placementID) {
		return Placement{}, fmt.Errorf("%w: track %d [%g, %g)", ErrOverlap, newTrack, after.Start, after.End())
	}

	diff, events := e.planTransitions(placementID, map[string]Placement{placementID: after}, nil)
	entry := MoveEntry{Before: before, After: after, NewTrack: e.newTrackRef(newTrack), Changes: diff}
	if err := e.commit(entry, events); err != nil {
		return Placement{}, err
	}
	return after, nil
}

// Trim changes the source window. The start stays put, so the end moves to
// start + (newOut - newIn).
func (e *Editor) Trim(placementID string, newIn, newOut float64) (Placement, error) {
	before, err := e.timeline.Placement(placementID)
	if err != nil {
		return Placement{}, err
	}
	clip, err := e.registry.Get(before.ClipID)
	if err != nil {
		return Placement{}, err
	}
	if err := checkWindow(clip, newIn, newOut); err != nil {
		return Placement{}, err
	}

	after := before
	after.SourceIn = newIn
	after.SourceOut = newOut
	after.Duration = newOut - newIn
	if !e.timeline.fits(after.Track, after.Start, after.End(), placementID) {
		return Placement{}, fmt.Errorf("%w: track %d [%g, %g)", ErrOverlap, after.Track, after.Start, after.End())
	}

	diff, events := e.planTransitions(placementID, map[string]Placement{placementID: after}, nil)
	entry := TrimEntry{Before: before, After: after, Changes: diff}
	if err := e.commit(entry, events); err != nil {
		return Placement{}, err
	}
	return after, nil
}

// Split cuts a placement at a local offset into two fresh placements. Both
// halves receive copies of the original effects.
func (e *Editor) Split(placementID string, offset float64) (Placement, Placement, error) {
	orig, err := e.timeline.Placement(placementID)
	if err != nil {
		return Placement{}, Placement{}, err
	}
	if !finite(offset) || offset <= Epsilon || offset >= orig.Duration-Epsilon {
		return Placement{}, Placement{}, fmt.Errorf("%w: %g not inside (0, %g)", ErrInvalidSplit, offset, orig.Duration)
	}

	left := Placement{
		ID:        NewID(),
		Track:     orig.Track,
		ClipID:    orig.ClipID,
		Start:     orig.Start,
		Duration:  offset,
		SourceIn:  orig.SourceIn,
		SourceOut: orig.SourceIn + offset,
		Volume:    orig.Volume,
	}
	right := Placement{
		ID:        NewID(),
		Track:     orig.Track,
		ClipID:    orig.ClipID,
		Start:     left.End(),
		Duration:  orig.Duration - offset,
		SourceIn:  left.SourceOut,
		SourceOut: orig.SourceOut,
		Volume:    orig.Volume,
	}

	effects := e.index.EffectsFor(placementID)
	repoint := func(tr Transition) Transition {
		if tr.To == placementID {
			tr.To = left.ID
		}
		if tr.From == placementID {
			tr.From = right.ID
		}
		return tr
	}
	diff, events := e.planTransitions(placementID, map[string]Placement{left.ID: left, right.ID: right}, repoint)

	entry := SplitEntry{
		Original:        orig,
		Left:            left,
		Right:           right,
		OriginalEffects: effects,
		LeftEffects:     copyEffects(effects, left.ID),
		RightEffects:    copyEffects(effects, right.ID),
		Changes:         diff,
	}
	if err := e.commit(entry, events); err != nil {
		return Placement{}, Placement{}, err
	}
	return left, right, nil
}

// Delete removes a placement together with its effects and transitions.
func (e *Editor) Delete(placementID string) error {
	p, err := e.timeline.Placement(placementID)
	if err != nil {
		return err
	}
	removed := e.index.TransitionsFor(placementID)
	events := make([]TransitionEvent, 0, len(removed))
	for _, tr := range removed {
		events = append(events, TransitionEvent{Kind: TransitionRemoved, Transition: tr})
	}
	entry := DeleteEntry{
		Placement:   p,
		Effects:     e.index.EffectsFor(placementID),
		Transitions: removed,
	}
	return e.commit(entry, events)
}

// SetVolume changes the audio gain of a placement, 0 for silence up to
// MaxVolume.
func (e *Editor) SetVolume(placementID string, volume float64) (Placement, error) {
	before, err := e.timeline.Placement(placementID)
	if err != nil {
		return Placement{}, err
	}
	if !finite(volume) || volume < 0 || volume > MaxVolume {
		return Placement{}, fmt.Errorf("%w: %g outside [0, %g]", ErrInvalidVolume, volume, MaxVolume)
	}
	after := before
	after.Volume = volume
	if err := e.commit(VolumeEntry{Before: before, After: after}, nil); err != nil {
		return Placement{}, err
	}
	return after, nil
}

// ReorderTrack changes the compositing order of a track.
func (e *Editor) ReorderTrack(trackIndex, zOrder int) error {
	tr, err := e.timeline.Track(trackIndex)
	if err != nil {
		return err
	}
	return e.commit(ReorderEntry{Track: trackIndex, From: tr.zOrder, To: zOrder}, nil)
}

// Undo reverts the last applied edit. Transitions and effects added since
// that edit which no longer fit are clipped or dropped and reported through
// OnTransitionChange. Undo fails with ErrNotFound when the edit would bring
// back a placement whose clip has been unregistered.
func (e *Editor) Undo() (Entry, error) {
	return e.replay(e.history.Undo)
}

// Redo reapplies the next edit under the same rules as Undo.
func (e *Editor) Redo() (Entry, error) {
	return e.replay(e.history.Redo)
}

func (e *Editor) replay(step func(func(Entry, Direction) error) (Entry, error)) (Entry, error) {
	var events []TransitionEvent
	entry, err := step(func(en Entry, dir Direction) error {
		for _, p := range revived(en, dir) {
			if _, err := e.registry.Get(p.ClipID); err != nil {
				return fmt.Errorf("cannot restore placement %s: %w", p.ID, err)
			}
		}
		if err := e.apply(en, dir); err != nil {
			return err
		}
		events = e.reconcile()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(entry, events)
	return entry, nil
}

func (e *Editor) commit(entry Entry, events []TransitionEvent) error {
	if err := e.apply(entry, Forward); err != nil {
		return err
	}
	e.history.Record(entry)
	e.notify(entry, events)
	return nil
}

func (e *Editor) notify(entry Entry, events []TransitionEvent) {
	for _, ev := range events {
		e.logger.Info("transition adjusted", "transition_id", ev.Transition.ID, "kind", ev.Kind, "edit", entry.Kind())
		for _, fn := range e.listeners {
			fn(ev)
		}
	}
}

// revived lists the placements that applying entry in dir puts on the
// timeline.
func revived(entry Entry, dir Direction) []Placement {
	switch en := entry.(type) {
	case InsertEntry:
		if dir == Forward {
			return []Placement{en.Placement}
		}
	case MoveEntry:
		return []Placement{pick(dir, en.Before, en.After)}
	case TrimEntry:
		return []Placement{pick(dir, en.Before, en.After)}
	case VolumeEntry:
		return []Placement{pick(dir, en.Before, en.After)}
	case SplitEntry:
		if dir == Forward {
			return []Placement{en.Left, en.Right}
		}
		return []Placement{en.Original}
	case DeleteEntry:
		if dir == Backward {
			return []Placement{en.Placement}
		}
	}
	return nil
}

func pick(dir Direction, before, after Placement) Placement {
	if dir == Forward {
		return after
	}
	return before
}

// reconcile brings the index back in line with the placements on the
// timeline after an undo or redo. Index edits are not part of history, so
// replaying an edit can strand a transition or effect added after it.
func (e *Editor) reconcile() []TransitionEvent {
	var events []TransitionEvent
	for _, tr := range e.index.Transitions() {
		from, errFrom := e.timeline.Placement(tr.From)
		to, errTo := e.timeline.Placement(tr.To)
		next, keep := tr, false
		if errFrom == nil && errTo == nil {
			next, keep = revalidate(tr, from, to)
		}
		switch {
		case !keep:
			delete(e.index.transitions, tr.ID)
			events = append(events, TransitionEvent{Kind: TransitionRemoved, Transition: tr})
		case next != tr:
			e.index.transitions[tr.ID] = next
			events = append(events, TransitionEvent{Kind: TransitionClipped, Transition: next, Previous: tr.Duration})
		}
	}
	for owner := range e.index.effects {
		if _, err := e.timeline.Placement(owner); err != nil {
			e.logger.Debug("dropping effects of missing placement", "placement_id", owner)
			e.index.setEffects(owner, nil)
		}
	}
	return events
}

// apply executes one side of a history entry. It is used for the original
// edit as well as for undo and redo.
func (e *Editor) apply(entry Entry, dir Direction) error {
	tl := e.timeline
	switch en := entry.(type) {
	case InsertEntry:
		if dir == Forward {
			if en.NewTrack != nil {
				tl.appendTrack(*en.NewTrack)
			}
			tl.add(en.Placement)
			return nil
		}
		tl.remove(en.Placement.ID)
		if en.NewTrack != nil {
			return tl.dropLastTrack(en.NewTrack.ID)
		}
		return nil

	case MoveEntry:
		if dir == Forward {
			if en.NewTrack != nil {
				tl.appendTrack(*en.NewTrack)
			}
			tl.remove(en.Before.ID)
			tl.add(en.After)
			e.applyDiff(en.Changes, dir)
			return nil
		}
		tl.remove(en.After.ID)
		tl.add(en.Before)
		e.applyDiff(en.Changes, dir)
		if en.NewTrack != nil {
			return tl.dropLastTrack(en.NewTrack.ID)
		}
		return nil

	case TrimEntry:
		target := en.After
		if dir == Backward {
			target = en.Before
		}
		tl.remove(target.ID)
		tl.add(target)
		e.applyDiff(en.Changes, dir)
		return nil

	case SplitEntry:
		if dir == Forward {
			tl.remove(en.Original.ID)
			tl.add(en.Left)
			tl.add(en.Right)
			e.index.setEffects(en.Original.ID, nil)
			e.index.setEffects(en.Left.ID, en.LeftEffects)
			e.index.setEffects(en.Right.ID, en.RightEffects)
		} else {
			tl.remove(en.Left.ID)
			tl.remove(en.Right.ID)
			tl.add(en.Original)
			e.index.setEffects(en.Left.ID, nil)
			e.index.setEffects(en.Right.ID, nil)
			e.index.setEffects(en.Original.ID, en.OriginalEffects)
		}
		e.applyDiff(en.Changes, dir)
		return nil

	case DeleteEntry:
		if dir == Forward {
			tl.remove(en.Placement.ID)
			e.index.setEffects(en.Placement.ID, nil)
			e.index.dropTransitions(en.Transitions)
			return nil
		}
		tl.add(en.Placement)
		e.index.setEffects(en.Placement.ID, en.Effects)
		e.index.putTransitions(en.Transitions)
		return nil

	case VolumeEntry:
		target := pick(dir, en.Before, en.After)
		tl.remove(target.ID)
		tl.add(target)
		return nil

	case ReorderEntry:
		tr, err := tl.Track(en.Track)
		if err != nil {
			return err
		}
		if dir == Forward {
			tr.zOrder = en.To
		} else {
			tr.zOrder = en.From
		}
		return nil

	default:
		return fmt.Errorf("unknown history entry %T", entry)
	}
}

func (e *Editor) applyDiff(d TransitionDiff, dir Direction) {
	if dir == Forward {
		e.index.dropTransitions(d.Before)
		e.index.putTransitions(d.After)
		return
	}
	e.index.dropTransitions(d.After)
	e.index.putTransitions(d.Before)
}

// planTransitions works out what happens to the transitions touching
// placementID once the edited placements in after are in place. repoint, if
// set, rewrites transition endpoints first.
func (e *Editor) planTransitions(placementID string, after map[string]Placement, repoint func(Transition) Transition) (TransitionDiff, []TransitionEvent) {
	var diff TransitionDiff
	var events []TransitionEvent

	lookup := func(id string) (Placement, bool) {
		if p, ok := after[id]; ok {
			return p, true
		}
		p, err := e.timeline.Placement(id)
		return p, err == nil
	}

	for _, tr := range e.index.TransitionsFor(placementID) {
		next := tr
		if repoint != nil {
			next = repoint(tr)
		}
		from, okFrom := lookup(next.From)
		to, okTo := lookup(next.To)

		keep := false
		if okFrom && okTo {
			next, keep = revalidate(next, from, to)
		}
		if keep && next == tr {
			continue
		}

		diff.Before = append(diff.Before, tr)
		if !keep {
			events = append(events, TransitionEvent{Kind: TransitionRemoved, Transition: tr})
			continue
		}
		diff.After = append(diff.After, next)
		if next.Duration < tr.Duration {
			events = append(events, TransitionEvent{Kind: TransitionClipped, Transition: next, Previous: tr.Duration})
		}
	}
	sort.Slice(diff.After, func(i, j int) bool { return diff.After[i].ID < diff.After[j].ID })
	return diff, events
}

func (e *Editor) newTrackRef(trackIndex int) *TrackRef {
	if trackIndex != e.timeline.TrackCount() {
		return nil
	}
	return &TrackRef{ID: NewID(), ZOrder: trackIndex}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkStart(start float64) error {
	if !finite(start) {
		return fmt.Errorf("%w: start %g is not a finite time", ErrInvalidPosition, start)
	}
	if start < 0 {
		return fmt.Errorf("%w: start %g is negative", ErrInvalidPosition, start)
	}
	return nil
}

func checkWindow(clip *Clip, in, out float64) error {
	if !finite(in) || !finite(out) {
		return fmt.Errorf("%w: source window [%g, %g) is not finite", ErrInvalidTrim, in, out)
	}
	if in < 0 {
		return fmt.Errorf("%w: source in %g is negative", ErrInvalidTrim, in)
	}
	if in >= out {
		return fmt.Errorf("%w: source in %g must be before source out %g", ErrInvalidTrim, in, out)
	}
	if out > clip.Duration+Epsilon {
		return fmt.Errorf("%w: source out %g exceeds clip duration %g", ErrInvalidTrim, out, clip.Duration)
	}
	return nil
}

func copyEffects(list []Effect, placementID string) []Effect {
	out := make([]Effect, len(list))
	for i, fx := range list {
		cp := fx.clone()
		cp.ID = NewID()
		cp.Placement = placementID
		out[i] = cp
	}
	return out
}
