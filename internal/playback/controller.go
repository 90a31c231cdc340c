// Package playback drives a clock-based cursor over a timeline and resolves
// what each track shows at the current position.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

var ErrInvalidRate = errors.New("playback rate must be positive")

type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Source is the part of a timeline the controller reads.
type Source interface {
	Duration() float64
	VisibleAt(t float64) []timeline.Layer
}

// PlayState is the observable cursor state.
type PlayState struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	State       State   `json:"state"`
	Rate        float64 `json:"rate"`
}

// Frame is what the timeline shows at one instant, top layer first.
type Frame struct {
	Time   float64          `json:"time"`
	State  State            `json:"state"`
	Layers []timeline.Layer `json:"layers"`
}

// Top returns the highest visible layer.
func (f Frame) Top() (timeline.Layer, bool) {
	if len(f.Layers) == 0 {
		return timeline.Layer{}, false
	}
	return f.Layers[0], true
}

// Controller is not safe for concurrent use. Callers pass the clock reading
// to every operation; the controller never reads the wall clock itself.
type Controller struct {
	source   Source
	state    State
	position float64
	anchor   time.Time
	rate     float64
}

func NewController(source Source) *Controller {
	return &Controller{source: source, state: StateStopped, rate: 1}
}

// Play starts or resumes playback. From Stopped at the end it restarts at 0.
func (c *Controller) Play(now time.Time) {
	if c.state == StatePlaying {
		return
	}
	c.position = c.clamp(c.position)
	if c.state == StateStopped && c.position >= c.source.Duration()-timeline.Epsilon {
		c.position = 0
	}
	c.state = StatePlaying
	c.anchor = now
}

// Pause freezes the cursor. It is a no-op unless playing.
func (c *Controller) Pause(now time.Time) {
	if c.state != StatePlaying {
		return
	}
	c.advance(now)
	if c.state == StatePlaying {
		c.state = StatePaused
	}
}

// Seek moves the cursor, clamped to [0, duration]. NaN is rejected.
func (c *Controller) Seek(t float64, now time.Time) error {
	if math.IsNaN(t) {
		return fmt.Errorf("%w: seek to NaN", timeline.ErrInvalidPosition)
	}
	c.position = c.clamp(t)
	c.anchor = now
	return nil
}

// SetRate changes the speed without a jump at the next tick.
func (c *Controller) SetRate(rate float64, now time.Time) error {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return fmt.Errorf("%w: %g", ErrInvalidRate, rate)
	}
	if c.state == StatePlaying {
		c.advance(now)
	}
	c.rate = rate
	c.anchor = now
	return nil
}

// Stop halts playback and rewinds to 0.
func (c *Controller) Stop() {
	c.state = StateStopped
	c.position = 0
}

// Tick advances the cursor to now and resolves the visible layers.
func (c *Controller) Tick(now time.Time) Frame {
	if c.state == StatePlaying {
		c.advance(now)
	} else {
		c.position = c.clamp(c.position)
	}
	return Frame{
		Time:   c.position,
		State:  c.state,
		Layers: c.source.VisibleAt(c.position),
	}
}

func (c *Controller) CurrentTime() float64 { return c.position }
func (c *Controller) State() State { return c.state }
func (c *Controller) Rate() float64 { return c.rate }

func (c *Controller) Snapshot() PlayState {
	return PlayState{
		CurrentTime: c.position,
		Duration:    c.source.Duration(),
		State:       c.state,
		Rate:        c.rate,
	}
}

func (c *Controller) advance(now time.Time) {
	elapsed := now.Sub(c.anchor).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	c.anchor = now

	duration := c.source.Duration()
	c.position += elapsed * c.rate
	if c.position >= duration-timeline.Epsilon {
		c.position = duration
		c.state = StateStopped
	}
}

func (c *Controller) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if d := c.source.Duration(); t > d {
		return d
	}
	return t
}

// Preview renders every visible layer of frame. Renderer failures are
// returned unchanged.
func Preview(ctx context.Context, r render.Renderer, frame Frame) ([]render.FrameHandle, error) {
	handles := make([]render.FrameHandle, 0, len(frame.Layers))
	for _, layer := range frame.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := r.RenderFrame(ctx, layer.Placement, layer.LocalOffset)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
