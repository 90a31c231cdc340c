package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// CommandRunner runs an external binary, handing each stdout line to
// onStdout, and returns what the command wrote to stderr. Tests replace it.
type CommandRunner func(ctx context.Context, name string, args []string, onStdout func(string)) ([]byte, error)

func execRunner(ctx context.Context, name string, args []string, onStdout func(string)) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onStdout != nil {
			onStdout(scanner.Text())
		}
	}
	scanErr := scanner.Err()
	if err := cmd.Wait(); err != nil {
		return stderr.Bytes(), err
	}
	if scanErr != nil {
		return stderr.Bytes(), fmt.Errorf("scan output: %w", scanErr)
	}
	return stderr.Bytes(), nil
}

// FFmpegExporter encodes the base visual track of a snapshot with ffmpeg.
// Gaps between placements are filled with black. Audio clips on any track
// are mixed in at their placement volume. Upper visual tracks, text
// overlays and the sound of video clips are not composited.
type FFmpegExporter struct {
	ffmpegPath string
	run        CommandRunner
	logger     *slog.Logger
}

func NewFFmpegExporter(ffmpegPath string, logger *slog.Logger) *FFmpegExporter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegExporter{ffmpegPath: ffmpegPath, run: execRunner, logger: logger}
}

// WithRunner swaps the command runner.
func (e *FFmpegExporter) WithRunner(run CommandRunner) *FFmpegExporter {
	e.run = run
	return e
}

func (e *FFmpegExporter) Export(ctx context.Context, snapshot timeline.Record, settings Settings, progress ProgressFunc) (*Artifact, error) {
	if !settings.Format.IsVideo() {
		return nil, fmt.Errorf("%w: %s is not a video format", ErrExportFailure, settings.Format)
	}
	res, ok := LookupResolution(settings.Resolution)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrExportFailure, settings.Resolution)
	}

	final := outputPath(settings)
	tmp := filepath.Join(filepath.Dir(final), ".partial-"+filepath.Base(final))
	args, segments, err := BuildEncodeArgs(snapshot, settings, res, tmp)
	if err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("encoding timeline", "output", final, "segments", segments, "format", settings.Format)
	}
	total := encodedDuration(snapshot)
	out, err := e.run(ctx, e.ffmpegPath, args, func(line string) {
		if done, ok := parseProgressLine(line); ok && total > 0 {
			progress.report(int(done / total * 100))
		}
	})
	if err != nil {
		os.Remove(tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: ffmpeg: %w: %s", ErrExportFailure, err, tail(out, 512))
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: %w", ErrExportFailure, err)
	}
	var size int64
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	return &Artifact{
		Path:      final,
		Format:    settings.Format,
		SizeBytes: size,
		Duration:  snapshot.Duration(),
		Events:    segments,
	}, nil
}

var errNothingToEncode = errors.New("timeline has no visual placements")

// BuildEncodeArgs assembles the ffmpeg command line for the lowest track
// that carries video or image placements.
func BuildEncodeArgs(rec timeline.Record, s Settings, res Resolution, output string) ([]string, int, error) {
	base := baseVisualTrack(rec)
	if base == nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrExportFailure, errNothingToEncode)
	}

	fps := strconv.Itoa(s.FrameRate)
	size := fmt.Sprintf("%dx%d", res.Width, res.Height)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostats", "-progress", "pipe:1"}
	var filters []string
	var labels []string
	input := 0

	addGap := func(d float64) {
		args = append(args, "-f", "lavfi", "-t", seconds(d), "-i", "color=c=black:s="+size+":r="+fps)
		label := fmt.Sprintf("[v%d]", input)
		filters = append(filters, fmt.Sprintf("[%d:v]setsar=1%s", input, label))
		labels = append(labels, label)
		input++
	}

	cursor := 0.0
	for _, p := range base.Placements {
		clip, ok := rec.Clip(p.ClipID)
		if !ok || (clip.Kind != timeline.ClipVideo && clip.Kind != timeline.ClipImage) {
			continue
		}
		if gap := p.Start - cursor; gap > timeline.Epsilon {
			addGap(gap)
		}
		if clip.Kind == timeline.ClipImage {
			args = append(args, "-loop", "1", "-t", seconds(p.Duration), "-i", clip.SourceRef)
		} else {
			args = append(args, "-ss", seconds(p.SourceIn), "-t", seconds(p.Duration), "-i", clip.SourceRef)
		}
		label := fmt.Sprintf("[v%d]", input)
		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%s%s",
			input, res.Width, res.Height, res.Width, res.Height, fps, label))
		labels = append(labels, label)
		input++
		cursor = p.End()
	}

	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[out]", strings.Join(labels, ""), len(labels)))

	var mix []string
	for _, tr := range rec.Tracks {
		for _, p := range tr.Placements {
			clip, ok := rec.Clip(p.ClipID)
			if !ok || clip.Kind != timeline.ClipAudio || p.Start >= cursor-timeline.Epsilon {
				continue
			}
			args = append(args, "-ss", seconds(p.SourceIn), "-t", seconds(p.Duration), "-i", clip.SourceRef)
			label := fmt.Sprintf("[a%d]", input)
			filters = append(filters, fmt.Sprintf("[%d:a]volume=%.2f,adelay=%d:all=1%s",
				input, p.Volume, int64(p.Start*1000), label))
			mix = append(mix, label)
			input++
		}
	}
	if len(mix) > 0 {
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0,apad[aout]",
			strings.Join(mix, ""), len(mix)))
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[out]",
		"-c:v", s.Format.Codec(),
		"-b:v", strconv.Itoa(s.Quality.Bitrate())+"k",
		"-r", fps,
	)
	if len(mix) > 0 {
		// apad keeps the mix running; -shortest ends it with the video.
		args = append(args, "-map", "[aout]", "-c:a", s.Format.AudioCodec(), "-shortest")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-f", string(s.Format), output)
	return args, len(labels), nil
}

// encodedDuration is the length of the concatenated base track, the value
// ffmpeg progress is measured against.
func encodedDuration(rec timeline.Record) float64 {
	base := baseVisualTrack(rec)
	if base == nil {
		return 0
	}
	var end float64
	for _, p := range base.Placements {
		if c, ok := rec.Clip(p.ClipID); ok && (c.Kind == timeline.ClipVideo || c.Kind == timeline.ClipImage) {
			end = p.End()
		}
	}
	return end
}

// parseProgressLine reads the encoded position from one line of
// "-progress pipe:1" output.
func parseProgressLine(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || (key != "out_time_us" && key != "out_time_ms") {
		return 0, false
	}
	// Both keys carry microseconds.
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return float64(us) / 1e6, true
}

func baseVisualTrack(rec timeline.Record) *timeline.TrackRecord {
	var best *timeline.TrackRecord
	for i := range rec.Tracks {
		tr := &rec.Tracks[i]
		visual := false
		for _, p := range tr.Placements {
			if c, ok := rec.Clip(p.ClipID); ok && (c.Kind == timeline.ClipVideo || c.Kind == timeline.ClipImage) {
				visual = true
				break
			}
		}
		if visual && (best == nil || tr.ZOrder < best.ZOrder) {
			best = tr
		}
	}
	return best
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
