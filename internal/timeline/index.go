package timeline

import (
	"fmt"
	"math"
	"sort"
)

// Index associates transitions and effects with the placements of one
// timeline.
type Index struct {
	timeline    *Timeline
	transitions map[string]Transition
	effects     map[string][]Effect
	effectOwner map[string]string
}

func NewIndex(tl *Timeline) *Index {
	return &Index{
		timeline:    tl,
		transitions: make(map[string]Transition),
		effects:     make(map[string][]Effect),
		effectOwner: make(map[string]string),
	}
}

// AddTransition links two adjacent placements. A zero duration selects the
// library default for kind.
func (ix *Index) AddTransition(fromID, toID string, kind TransitionKind, duration float64) (Transition, error) {
	def, ok := DefaultTransitionDuration(kind)
	if !ok {
		return Transition{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransition, kind)
	}
	if duration == 0 {
		duration = def
	}
	if !finite(duration) {
		return Transition{}, fmt.Errorf("%w: duration %g is not finite", ErrInvalidTransition, duration)
	}

	from, err := ix.timeline.Placement(fromID)
	if err != nil {
		return Transition{}, err
	}
	to, err := ix.timeline.Placement(toID)
	if err != nil {
		return Transition{}, err
	}
	if err := checkTransition(from, to, duration); err != nil {
		return Transition{}, err
	}

	tr := Transition{ID: NewID(), From: fromID, To: toID, Kind: kind, Duration: duration}
	ix.transitions[tr.ID] = tr
	return tr, nil
}

func (ix *Index) RemoveTransition(id string) error {
	if _, ok := ix.transitions[id]; !ok {
		return fmt.Errorf("%w: transition %s", ErrNotFound, id)
	}
	delete(ix.transitions, id)
	return nil
}

func (ix *Index) Transition(id string) (Transition, error) {
	tr, ok := ix.transitions[id]
	if !ok {
		return Transition{}, fmt.Errorf("%w: transition %s", ErrNotFound, id)
	}
	return tr, nil
}

// Transitions returns every transition sorted by id.
func (ix *Index) Transitions() []Transition {
	out := make([]Transition, 0, len(ix.transitions))
	for _, tr := range ix.transitions {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransitionsFor returns the transitions touching placementID sorted by id.
func (ix *Index) TransitionsFor(placementID string) []Transition {
	var out []Transition
	for _, tr := range ix.transitions {
		if tr.references(placementID) {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddEffect appends an effect; later effects apply after earlier ones.
func (ix *Index) AddEffect(placementID string, kind EffectKind, values map[string]float64) (Effect, error) {
	def, ok := LookupEffect(kind)
	if !ok {
		return Effect{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEffect, kind)
	}
	if _, err := ix.timeline.Placement(placementID); err != nil {
		return Effect{}, err
	}
	params, err := def.buildParams(values)
	if err != nil {
		return Effect{}, err
	}

	e := Effect{ID: NewID(), Placement: placementID, Kind: kind, Params: params}
	ix.effects[placementID] = append(ix.effects[placementID], e)
	ix.effectOwner[e.ID] = placementID
	return e.clone(), nil
}

func (ix *Index) RemoveEffect(id string) error {
	owner, ok := ix.effectOwner[id]
	if !ok {
		return fmt.Errorf("%w: effect %s", ErrNotFound, id)
	}
	list := ix.effects[owner]
	for i, e := range list {
		if e.ID == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(ix.effects, owner)
	} else {
		ix.effects[owner] = list
	}
	delete(ix.effectOwner, id)
	return nil
}

// EffectsFor returns the effects of a placement in composition order.
func (ix *Index) EffectsFor(placementID string) []Effect {
	list := ix.effects[placementID]
	out := make([]Effect, len(list))
	for i, e := range list {
		out[i] = e.clone()
	}
	return out
}

func (ix *Index) putTransitions(list []Transition) {
	for _, tr := range list {
		ix.transitions[tr.ID] = tr
	}
}

func (ix *Index) dropTransitions(list []Transition) {
	for _, tr := range list {
		delete(ix.transitions, tr.ID)
	}
}

// setEffects replaces the effect list of a placement.
func (ix *Index) setEffects(placementID string, list []Effect) {
	for _, e := range ix.effects[placementID] {
		delete(ix.effectOwner, e.ID)
	}
	if len(list) == 0 {
		delete(ix.effects, placementID)
		return
	}
	cp := make([]Effect, len(list))
	for i, e := range list {
		cp[i] = e.clone()
		ix.effectOwner[e.ID] = placementID
	}
	ix.effects[placementID] = cp
}

// checkTransition validates adjacency and duration for a from/to pair.
func checkTransition(from, to Placement, duration float64) error {
	if from.ID == to.ID {
		return fmt.Errorf("%w: placement cannot transition into itself", ErrInvalidTransition)
	}
	if from.Track != to.Track {
		return fmt.Errorf("%w: %d and %d", ErrIncompatibleTracks, from.Track, to.Track)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidTransition)
	}
	if !adjacent(from, to, duration) {
		return fmt.Errorf("%w: placements are not adjacent", ErrInvalidTransition)
	}
	if max := math.Min(from.Duration, to.Duration); duration > max+Epsilon {
		return fmt.Errorf("%w: duration %g exceeds %g", ErrInvalidTransition, duration, max)
	}
	return nil
}

// adjacent accepts a "to" that starts at the end of "from" or overlaps it
// by at most duration.
func adjacent(from, to Placement, duration float64) bool {
	gap := from.End() - to.Start
	return gap >= -Epsilon && gap <= duration+Epsilon
}

// TransitionEventKind distinguishes the side-channel notifications.
type TransitionEventKind string

const (
	TransitionRemoved TransitionEventKind = "removed"
	TransitionClipped TransitionEventKind = "clipped"
)

// TransitionEvent reports a transition the editor changed as a consequence
// of a structural edit.
type TransitionEvent struct {
	Kind       TransitionEventKind `json:"kind"`
	Transition Transition          `json:"transition"`
	Previous   float64             `json:"previous_duration,omitempty"`
}

// revalidate re-checks a transition against edited placements. It returns
// the adjusted transition and false when the transition must be removed.
func revalidate(tr Transition, from, to Placement) (Transition, bool) {
	if from.Track != to.Track || from.ID == to.ID {
		return tr, false
	}
	if !adjacent(from, to, tr.Duration) {
		return tr, false
	}
	max := math.Min(from.Duration, to.Duration)
	if max <= Epsilon {
		return tr, false
	}
	if tr.Duration > max+Epsilon {
		tr.Duration = max
		if !adjacent(from, to, tr.Duration) {
			return tr, false
		}
	}
	return tr, true
}
