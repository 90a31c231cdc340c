package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// ClipResolver looks up the clip behind a placement.
type ClipResolver interface {
	Get(id string) (*timeline.Clip, error)
}

// CommandRunner runs an external binary. Tests replace it.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegRenderer extracts still frames from video and image clips with the
// ffmpeg binary. Audio and text clips have no frame to extract.
type FFmpegRenderer struct {
	clips      ClipResolver
	ffmpegPath string
	outputDir  string
	run        CommandRunner
	logger     *slog.Logger
}

func NewFFmpegRenderer(clips ClipResolver, ffmpegPath, outputDir string, logger *slog.Logger) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegRenderer{
		clips:      clips,
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
		run:        execRunner,
		logger:     logger,
	}
}

// WithRunner swaps the command runner.
func (r *FFmpegRenderer) WithRunner(run CommandRunner) *FFmpegRenderer {
	r.run = run
	return r
}

func (r *FFmpegRenderer) RenderFrame(ctx context.Context, p timeline.Placement, localOffset float64) (FrameHandle, error) {
	clip, err := r.clips.Get(p.ClipID)
	if err != nil {
		return FrameHandle{}, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}
	if clip.Kind != timeline.ClipVideo && clip.Kind != timeline.ClipImage {
		return FrameHandle{}, fmt.Errorf("%w: %s clip %s has no frames", ErrRenderFailure, clip.Kind, clip.ID)
	}
	if localOffset < 0 || localOffset > p.Duration {
		return FrameHandle{}, fmt.Errorf("%w: offset %g outside placement %s", ErrRenderFailure, localOffset, p.ID)
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return FrameHandle{}, fmt.Errorf("%w: create output dir: %w", ErrRenderFailure, err)
	}

	sourceTime := p.SourceIn + localOffset
	out := filepath.Join(r.outputDir, fmt.Sprintf("%s_%d.png", p.ID, int64(sourceTime*1000)))
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if clip.Kind == timeline.ClipVideo {
		args = append(args, "-ss", strconv.FormatFloat(sourceTime, 'f', 3, 64))
	}
	args = append(args, "-i", clip.SourceRef, "-frames:v", "1", out)

	if r.logger != nil {
		r.logger.Debug("rendering frame", "placement_id", p.ID, "source_time", sourceTime, "output", out)
	}
	if output, err := r.run(ctx, r.ffmpegPath, args...); err != nil {
		return FrameHandle{}, fmt.Errorf("%w: ffmpeg: %w: %s", ErrRenderFailure, err, output)
	}

	return FrameHandle{
		PlacementID: p.ID,
		ClipID:      p.ClipID,
		SourceTime:  sourceTime,
		Path:        out,
	}, nil
}
