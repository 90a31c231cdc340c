package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

var ErrExportFailure = errors.New("export failed")

// Artifact describes a finished export.
type Artifact struct {
	Path      string  `json:"path"`
	Format    Format  `json:"format"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration"`
	Events    int     `json:"events"`
}

// ProgressFunc receives a completion percentage between 0 and 99. The
// runner records 100 itself once the artifact is in place.
type ProgressFunc func(percent int)

func (f ProgressFunc) report(percent int) {
	if f == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	f(percent)
}

// Exporter writes one snapshot. Implementations must stop when ctx is
// canceled and leave no partial file behind. progress may be nil.
type Exporter interface {
	Export(ctx context.Context, snapshot timeline.Record, settings Settings, progress ProgressFunc) (*Artifact, error)
}

// outputPath names the file an export writes.
func outputPath(s Settings) string {
	name := SafeFileName(s.Title, 120)
	if name == "" {
		name = "timeline"
	}
	return filepath.Join(s.OutputDir, name+"."+string(s.Format))
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, err := tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename %s: %w", path, err)
	}
	return int64(n), nil
}

// Set dispatches to an exporter by format.
type Set map[Format]Exporter

func (s Set) Export(ctx context.Context, snapshot timeline.Record, settings Settings, progress ProgressFunc) (*Artifact, error) {
	exp, ok := s[settings.Format]
	if !ok {
		return nil, fmt.Errorf("%w: no exporter for %q", ErrExportFailure, settings.Format)
	}
	return exp.Export(ctx, snapshot, settings, progress)
}
