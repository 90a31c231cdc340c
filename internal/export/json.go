package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// JSONExporter writes the snapshot record itself, wrapped with the settings
// it was exported with.
type JSONExporter struct{}

type jsonDocument struct {
	Settings Settings        `json:"settings"`
	Timeline timeline.Record `json:"timeline"`
}

func (JSONExporter) Export(ctx context.Context, snapshot timeline.Record, settings Settings, progress ProgressFunc) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(jsonDocument{Settings: settings, Timeline: snapshot}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrExportFailure, err)
	}
	progress.report(50)

	path := outputPath(settings)
	n, err := writeAtomic(path, append(body, '\n'))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailure, err)
	}
	return &Artifact{Path: path, Format: FormatJSON, SizeBytes: n, Duration: snapshot.Duration()}, nil
}
