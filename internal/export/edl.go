package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// GenerateEDL renders a snapshot as a CMX3600 edit decision list. Every
// video and image placement becomes a V event and every audio placement an
// A event; text overlays have no source media and are listed as comments.
// A placement entered through a transition is written as a dissolve.
func GenerateEDL(rec timeline.Record, title string, fps int) (string, int) {
	return generateEDL(rec, title, fps, nil)
}

// generateEDL calls step after each placement with the number written so
// far and the total.
func generateEDL(rec timeline.Record, title string, fps int, step func(done, total int)) (string, int) {
	if fps <= 0 {
		fps = 30
	}

	incoming := make(map[string]timeline.Transition, len(rec.Transitions))
	for _, tr := range rec.Transitions {
		incoming[tr.To] = tr
	}
	effects := make(map[string][]timeline.Effect)
	for _, fx := range rec.Effects {
		effects[fx.Placement] = append(effects[fx.Placement], fx)
	}

	lines := []string{
		fmt.Sprintf("TITLE: %s", title),
		"FCM: NON-DROP FRAME",
		"",
	}

	total := 0
	for _, track := range rec.Tracks {
		total += len(track.Placements)
	}

	event, done := 0, 0
	for ti, track := range rec.Tracks {
		for _, p := range track.Placements {
			done++
			if step != nil {
				step(done, total)
			}
			clip, ok := rec.Clip(p.ClipID)
			if !ok {
				continue
			}
			if clip.Kind == timeline.ClipText {
				lines = append(lines, fmt.Sprintf("* TEXT OVERLAY TRACK %d %s-%s:  %s",
					ti+1, secondsToTimecode(p.Start, fps), secondsToTimecode(p.End(), fps), clip.Text))
				continue
			}

			event++
			channel := "V"
			if clip.Kind == timeline.ClipAudio {
				channel = "A"
			}
			timecodes := strings.Join([]string{
				secondsToTimecode(p.SourceIn, fps),
				secondsToTimecode(p.SourceOut, fps),
				secondsToTimecode(p.Start, fps),
				secondsToTimecode(p.End(), fps),
			}, " ")

			if tr, ok := incoming[p.ID]; ok {
				frames := int(math.Round(tr.Duration * float64(fps)))
				lines = append(lines, fmt.Sprintf("%03d  %-8s %-5s D    %03d %s", event, "AX", channel, frames, timecodes))
				lines = append(lines, fmt.Sprintf("* TRANSITION:  %s", tr.Kind))
			} else {
				lines = append(lines, fmt.Sprintf("%03d  %-8s %-5s C        %s", event, "AX", channel, timecodes))
			}
			lines = append(lines,
				fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
				fmt.Sprintf("* SOURCE FILE:  %s", clip.SourceRef),
			)
			if clip.Kind == timeline.ClipAudio && p.Volume != timeline.DefaultVolume {
				lines = append(lines, fmt.Sprintf("* AUDIO LEVEL:  %.2f", p.Volume))
			}
			for _, fx := range effects[p.ID] {
				lines = append(lines, fmt.Sprintf("* EFFECT:  %s%s", fx.Kind, formatParams(fx.Params)))
			}
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n"), event
}

func formatParams(params []timeline.Param) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%g", p.Name, p.Value)
	}
	return " " + strings.Join(parts, " ")
}

func secondsToTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalMinutes/60, totalMinutes%60, secs, frames)
}

// EDLExporter writes the snapshot as an EDL file in the settings output
// directory.
type EDLExporter struct {
	logger *slog.Logger
}

func NewEDLExporter(logger *slog.Logger) *EDLExporter {
	return &EDLExporter{logger: logger}
}

func (e *EDLExporter) Export(ctx context.Context, snapshot timeline.Record, settings Settings, progress ProgressFunc) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, events := generateEDL(snapshot, settings.Title, settings.FrameRate, func(done, total int) {
		progress.report(done * 90 / total)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := outputPath(settings)
	n, err := writeAtomic(path, []byte(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailure, err)
	}
	if e.logger != nil {
		e.logger.Info("edl written", "path", path, "events", events)
	}
	return &Artifact{
		Path:      path,
		Format:    FormatEDL,
		SizeBytes: n,
		Duration:  snapshot.Duration(),
		Events:    events,
	}, nil
}
