package timeline

import (
	"fmt"
	"sort"
)

// Track is one compositing layer. Its placements are kept sorted by start
// and never overlap.
type Track struct {
	id         string
	zOrder     int
	placements []*Placement
}

func (tr *Track) ID() string { return tr.id }
func (tr *Track) ZOrder() int { return tr.zOrder }
func (tr *Track) Len() int { return len(tr.placements) }

// Placements returns a copy of the track contents in start order.
func (tr *Track) Placements() []Placement {
	out := make([]Placement, len(tr.placements))
	for i, p := range tr.placements {
		out[i] = *p
	}
	return out
}

// End returns where the last placement on the track finishes.
func (tr *Track) End() float64 {
	if len(tr.placements) == 0 {
		return 0
	}
	return tr.placements[len(tr.placements)-1].End()
}

func (tr *Track) fits(start, end float64, ignoreID string) bool {
	for _, p := range tr.placements {
		if p.ID == ignoreID {
			continue
		}
		if p.overlaps(start, end) {
			return false
		}
	}
	return true
}

func (tr *Track) at(t float64) *Placement {
	i := sort.Search(len(tr.placements), func(i int) bool {
		return tr.placements[i].End()-Epsilon > t
	})
	if i < len(tr.placements) && tr.placements[i].Contains(t) {
		return tr.placements[i]
	}
	return nil
}

func (tr *Track) insert(p *Placement) {
	i := sort.Search(len(tr.placements), func(i int) bool {
		return tr.placements[i].Start > p.Start
	})
	tr.placements = append(tr.placements, nil)
	copy(tr.placements[i+1:], tr.placements[i:])
	tr.placements[i] = p
}

func (tr *Track) remove(id string) {
	for i, p := range tr.placements {
		if p.ID == id {
			tr.placements = append(tr.placements[:i], tr.placements[i+1:]...)
			return
		}
	}
}

// Timeline is the ordered set of tracks. Duration is derived on every read.
type Timeline struct {
	tracks []*Track
	byID   map[string]*Placement
}

func New() *Timeline {
	return &Timeline{byID: make(map[string]*Placement)}
}

// Duration is the latest placement end across all tracks, 0 when empty.
func (t *Timeline) Duration() float64 {
	var d float64
	for _, tr := range t.tracks {
		if end := tr.End(); end > d {
			d = end
		}
	}
	return d
}

func (t *Timeline) TrackCount() int {
	return len(t.tracks)
}

func (t *Timeline) Track(index int) (*Track, error) {
	if index < 0 || index >= len(t.tracks) {
		return nil, fmt.Errorf("%w: %d", ErrTrackNotFound, index)
	}
	return t.tracks[index], nil
}

func (t *Timeline) Tracks() []*Track {
	return append([]*Track(nil), t.tracks...)
}

func (t *Timeline) Placement(id string) (Placement, error) {
	p, ok := t.byID[id]
	if !ok {
		return Placement{}, fmt.Errorf("%w: placement %s", ErrNotFound, id)
	}
	return *p, nil
}

func (t *Timeline) PlacementCount() int {
	return len(t.byID)
}

// ReferencesClip implements ReferenceChecker.
func (t *Timeline) ReferencesClip(clipID string) bool {
	for _, p := range t.byID {
		if p.ClipID == clipID {
			return true
		}
	}
	return false
}

// VisibleAt returns, for every track, the placement containing at, ordered
// top layer first.
func (t *Timeline) VisibleAt(at float64) []Layer {
	var layers []Layer
	for i, tr := range t.tracks {
		p := tr.at(at)
		if p == nil {
			continue
		}
		layers = append(layers, Layer{
			Track:       i,
			TrackID:     tr.id,
			ZOrder:      tr.zOrder,
			Placement:   *p,
			LocalOffset: at - p.Start,
		})
	}
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].ZOrder != layers[j].ZOrder {
			return layers[i].ZOrder > layers[j].ZOrder
		}
		return layers[i].Track > layers[j].Track
	})
	return layers
}

// checkTrackIndex accepts an existing index or len(tracks), which stands for
// a track that will be created lazily.
func (t *Timeline) checkTrackIndex(index int) error {
	if index < 0 || index > len(t.tracks) {
		return fmt.Errorf("%w: %d (have %d)", ErrTrackNotFound, index, len(t.tracks))
	}
	return nil
}

func (t *Timeline) fits(index int, start, end float64, ignoreID string) bool {
	if index == len(t.tracks) {
		return true
	}
	return t.tracks[index].fits(start, end, ignoreID)
}

func (t *Timeline) appendTrack(ref TrackRef) {
	t.tracks = append(t.tracks, &Track{id: ref.ID, zOrder: ref.ZOrder})
}

func (t *Timeline) dropLastTrack(id string) error {
	n := len(t.tracks)
	if n == 0 || t.tracks[n-1].id != id || len(t.tracks[n-1].placements) != 0 {
		return fmt.Errorf("%w: track %s is not the last empty track", ErrTrackNotFound, id)
	}
	t.tracks = t.tracks[:n-1]
	return nil
}

func (t *Timeline) add(p Placement) {
	cp := p
	t.byID[p.ID] = &cp
	t.tracks[p.Track].insert(&cp)
}

func (t *Timeline) remove(id string) {
	p, ok := t.byID[id]
	if !ok {
		return
	}
	t.tracks[p.Track].remove(id)
	delete(t.byID, id)
}
