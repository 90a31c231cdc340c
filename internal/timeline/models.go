// Package timeline implements the composition engine: the clip registry,
// layered tracks of placements, the transition/effect index, the structural
// editor and its undo/redo history.
//
// Nothing in this package is safe for concurrent use. A session owns one
// Editor and serializes calls to it.
package timeline

import (
	"math"

	"github.com/google/uuid"
)

// Epsilon is the tolerance used when comparing timeline seconds.
const Epsilon = 1e-9

// DefaultVolume is the gain of a new placement; MaxVolume doubles it.
const (
	DefaultVolume = 1.0
	MaxVolume     = 2.0
)

// DefaultStillDuration is the nominal length given to image and text clips
// registered without an explicit duration.
const DefaultStillDuration = 5.0

type ClipKind string

const (
	ClipVideo ClipKind = "video"
	ClipAudio ClipKind = "audio"
	ClipImage ClipKind = "image"
	ClipText  ClipKind = "text"
)

// Clip is an imported media asset. It is immutable once registered.
type Clip struct {
	ID        string   `json:"id"`
	Kind      ClipKind `json:"kind"`
	Name      string   `json:"name,omitempty"`
	Format    string   `json:"format,omitempty"`
	Duration  float64  `json:"duration"`
	SourceRef string   `json:"source_ref,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// IsVisual reports whether the clip produces frames.
func (c Clip) IsVisual() bool {
	return c.Kind == ClipVideo || c.Kind == ClipImage || c.Kind == ClipText
}

// Placement maps a trimmed window of a clip onto a track interval.
// Duration always equals SourceOut - SourceIn.
type Placement struct {
	ID        string  `json:"id"`
	Track     int     `json:"track"`
	ClipID    string  `json:"clip_id"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	SourceIn  float64 `json:"source_in"`
	SourceOut float64 `json:"source_out"`
	Volume    float64 `json:"volume"`
}

// End returns the exclusive end of the placement interval.
func (p Placement) End() float64 {
	return p.Start + p.Duration
}

// Contains reports whether t falls in [Start, End).
func (p Placement) Contains(t float64) bool {
	return t >= p.Start-Epsilon && t < p.End()-Epsilon
}

func (p Placement) overlaps(start, end float64) bool {
	return p.Start < end-Epsilon && start < p.End()-Epsilon
}

// Transition blends two adjacent placements on the same track.
type Transition struct {
	ID       string         `json:"id"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Kind     TransitionKind `json:"kind"`
	Duration float64        `json:"duration"`
}

func (tr Transition) references(placementID string) bool {
	return tr.From == placementID || tr.To == placementID
}

// Param is a single named effect parameter.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Effect is an ordered modifier attached to one placement.
type Effect struct {
	ID        string     `json:"id"`
	Placement string     `json:"placement"`
	Kind      EffectKind `json:"kind"`
	Params    []Param    `json:"params"`
}

// Param returns the value of the named parameter.
func (e Effect) Param(name string) (float64, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

func (e Effect) clone() Effect {
	e.Params = append([]Param(nil), e.Params...)
	return e
}

// Layer is what a single track shows at a given instant.
type Layer struct {
	Track       int       `json:"track"`
	TrackID     string    `json:"track_id"`
	ZOrder      int       `json:"z_order"`
	Placement   Placement `json:"placement"`
	LocalOffset float64   `json:"local_offset"`
}

// SourceTime is the position inside the clip that the layer shows.
func (l Layer) SourceTime() float64 {
	return l.Placement.SourceIn + l.LocalOffset
}

func NewID() string {
	return uuid.NewString()
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}
