// Package render defines the frame-producing collaborator used by preview.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

var ErrRenderFailure = errors.New("render failed")

// FrameHandle is an opaque reference to a produced frame. The engine never
// looks at pixel data.
type FrameHandle struct {
	PlacementID string  `json:"placement_id"`
	ClipID      string  `json:"clip_id"`
	SourceTime  float64 `json:"source_time"`
	Path        string  `json:"path,omitempty"`
}

type Renderer interface {
	RenderFrame(ctx context.Context, p timeline.Placement, localOffset float64) (FrameHandle, error)
}

// StubRenderer returns descriptor handles without producing any output.
type StubRenderer struct {
	logger *slog.Logger
}

func NewStubRenderer(logger *slog.Logger) *StubRenderer {
	return &StubRenderer{logger: logger}
}

func (r *StubRenderer) RenderFrame(ctx context.Context, p timeline.Placement, localOffset float64) (FrameHandle, error) {
	if err := ctx.Err(); err != nil {
		return FrameHandle{}, err
	}
	if localOffset < 0 || localOffset > p.Duration {
		return FrameHandle{}, fmt.Errorf("%w: offset %g outside placement %s", ErrRenderFailure, localOffset, p.ID)
	}
	if r.logger != nil {
		r.logger.Debug("render stub: frame requested", "placement_id", p.ID, "offset", localOffset)
	}
	return FrameHandle{
		PlacementID: p.ID,
		ClipID:      p.ClipID,
		SourceTime:  p.SourceIn + localOffset,
	}, nil
}
