package timeline

import (
	"fmt"
)

// RecordVersion is bumped whenever the Record layout changes. Version 2 added
// placement volume.
const RecordVersion = 2

// Record is the persistent form of an editor: clips, tracks, transitions and
// effects. History is not part of it.
type Record struct {
	Version     int           `json:"version"`
	Clips       []Clip        `json:"clips"`
	Tracks      []TrackRecord `json:"tracks"`
	Transitions []Transition  `json:"transitions"`
	Effects     []Effect      `json:"effects"`
}

type TrackRecord struct {
	ID         string      `json:"id"`
	ZOrder     int         `json:"z_order"`
	Placements []Placement `json:"placements"`
}

// Duration returns the latest placement end in the record.
func (r Record) Duration() float64 {
	var d float64
	for _, tr := range r.Tracks {
		for _, p := range tr.Placements {
			if end := p.End(); end > d {
				d = end
			}
		}
	}
	return d
}

// Clip finds a clip by id.
func (r Record) Clip(id string) (Clip, bool) {
	for _, c := range r.Clips {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

// Snapshot captures the editor state. Two editors in the same state produce
// records that marshal identically.
func (e *Editor) Snapshot() Record {
	rec := Record{
		Version:     RecordVersion,
		Clips:       e.registry.List(),
		Tracks:      make([]TrackRecord, 0, len(e.timeline.tracks)),
		Transitions: e.index.Transitions(),
		Effects:     []Effect{},
	}
	for _, tr := range e.timeline.tracks {
		placements := tr.Placements()
		rec.Tracks = append(rec.Tracks, TrackRecord{ID: tr.id, ZOrder: tr.zOrder, Placements: placements})
		for _, p := range placements {
			rec.Effects = append(rec.Effects, e.index.EffectsFor(p.ID)...)
		}
	}
	return rec
}

// Restore rebuilds an editor from a record, checking every structural
// invariant on the way. The returned editor has an empty history.
func Restore(rec Record, opts ...Option) (*Editor, error) {
	if rec.Version > RecordVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalidRecord, rec.Version, RecordVersion)
	}

	reg := NewRegistry()
	for _, c := range rec.Clips {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: clip without id", ErrInvalidRecord)
		}
		if _, err := reg.Get(c.ID); err == nil {
			return nil, fmt.Errorf("%w: duplicate clip %s", ErrInvalidRecord, c.ID)
		}
		built, err := buildClip(ClipSpec{
			Kind:      c.Kind,
			Name:      c.Name,
			Format:    c.Format,
			Duration:  c.Duration,
			SourceRef: c.SourceRef,
			Text:      c.Text,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: clip %s: %w", ErrInvalidRecord, c.ID, err)
		}
		built.ID = c.ID
		reg.add(built)
	}

	e := NewEditor(reg, opts...)
	tl := e.timeline
	for i, trec := range rec.Tracks {
		if trec.ID == "" {
			return nil, fmt.Errorf("%w: track %d without id", ErrInvalidRecord, i)
		}
		tl.appendTrack(TrackRef{ID: trec.ID, ZOrder: trec.ZOrder})
		for _, p := range trec.Placements {
			if rec.Version < 2 {
				p.Volume = DefaultVolume
			}
			if err := e.restorePlacement(i, p); err != nil {
				return nil, err
			}
		}
	}

	for _, tr := range rec.Transitions {
		if tr.ID == "" {
			return nil, fmt.Errorf("%w: transition without id", ErrInvalidRecord)
		}
		if _, ok := e.index.transitions[tr.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate transition %s", ErrInvalidRecord, tr.ID)
		}
		if _, ok := DefaultTransitionDuration(tr.Kind); !ok {
			return nil, fmt.Errorf("%w: transition %s has unknown kind %q", ErrInvalidRecord, tr.ID, tr.Kind)
		}
		from, err := tl.Placement(tr.From)
		if err != nil {
			return nil, fmt.Errorf("%w: transition %s: %w", ErrInvalidRecord, tr.ID, err)
		}
		to, err := tl.Placement(tr.To)
		if err != nil {
			return nil, fmt.Errorf("%w: transition %s: %w", ErrInvalidRecord, tr.ID, err)
		}
		if err := checkTransition(from, to, tr.Duration); err != nil {
			return nil, fmt.Errorf("%w: transition %s: %w", ErrInvalidRecord, tr.ID, err)
		}
		e.index.transitions[tr.ID] = tr
	}

	for _, fx := range rec.Effects {
		if err := e.restoreEffect(fx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Editor) restorePlacement(track int, p Placement) error {
	if p.ID == "" {
		return fmt.Errorf("%w: placement without id on track %d", ErrInvalidRecord, track)
	}
	if _, ok := e.timeline.byID[p.ID]; ok {
		return fmt.Errorf("%w: duplicate placement %s", ErrInvalidRecord, p.ID)
	}
	clip, err := e.registry.Get(p.ClipID)
	if err != nil {
		return fmt.Errorf("%w: placement %s: %w", ErrInvalidRecord, p.ID, err)
	}
	if err := checkWindow(clip, p.SourceIn, p.SourceOut); err != nil {
		return fmt.Errorf("%w: placement %s: %w", ErrInvalidRecord, p.ID, err)
	}
	if !nearlyEqual(p.Duration, p.SourceOut-p.SourceIn) {
		return fmt.Errorf("%w: placement %s duration %g does not match its source window", ErrInvalidRecord, p.ID, p.Duration)
	}
	if !finite(p.Start) || p.Start < 0 {
		return fmt.Errorf("%w: placement %s has invalid start %g", ErrInvalidRecord, p.ID, p.Start)
	}
	if !finite(p.Volume) || p.Volume < 0 || p.Volume > MaxVolume {
		return fmt.Errorf("%w: placement %s: %w: %g", ErrInvalidRecord, p.ID, ErrInvalidVolume, p.Volume)
	}
	p.Track = track
	if !e.timeline.fits(track, p.Start, p.End(), "") {
		return fmt.Errorf("%w: placement %s: %w", ErrInvalidRecord, p.ID, ErrOverlap)
	}
	e.timeline.add(p)
	return nil
}

func (e *Editor) restoreEffect(fx Effect) error {
	if fx.ID == "" {
		return fmt.Errorf("%w: effect without id", ErrInvalidRecord)
	}
	if _, ok := e.index.effectOwner[fx.ID]; ok {
		return fmt.Errorf("%w: duplicate effect %s", ErrInvalidRecord, fx.ID)
	}
	if _, err := e.timeline.Placement(fx.Placement); err != nil {
		return fmt.Errorf("%w: effect %s: %w", ErrInvalidRecord, fx.ID, err)
	}
	def, ok := LookupEffect(fx.Kind)
	if !ok {
		return fmt.Errorf("%w: effect %s has unknown kind %q", ErrInvalidRecord, fx.ID, fx.Kind)
	}
	values := make(map[string]float64, len(fx.Params))
	for _, p := range fx.Params {
		values[p.Name] = p.Value
	}
	params, err := def.buildParams(values)
	if err != nil {
		return fmt.Errorf("%w: effect %s: %w", ErrInvalidRecord, fx.ID, err)
	}
	fx.Params = params
	e.index.effects[fx.Placement] = append(e.index.effects[fx.Placement], fx)
	e.index.effectOwner[fx.ID] = fx.Placement
	return nil
}
