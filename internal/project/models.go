// Package project manages named editing sessions: each project owns one
// timeline editor and playback controller, persisted to SQLite.
package project

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project")
	ErrMarkerNotFound  = errors.New("marker not found")
)

var AspectRatios = []string{"16:9", "9:16", "1:1", "4:3"}

type Settings struct {
	Resolution  string `json:"resolution"`
	FrameRate   int    `json:"frame_rate"`
	AspectRatio string `json:"aspect_ratio"`
}

func DefaultSettings() Settings {
	return Settings{Resolution: "1080p", FrameRate: 30, AspectRatio: "16:9"}
}

// WithDefaults fills zero fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	def := DefaultSettings()
	if s.Resolution == "" {
		s.Resolution = def.Resolution
	}
	if s.FrameRate == 0 {
		s.FrameRate = def.FrameRate
	}
	if s.AspectRatio == "" {
		s.AspectRatio = def.AspectRatio
	}
	return s
}

func (s Settings) Validate() error {
	if _, ok := export.LookupResolution(s.Resolution); !ok {
		return fmt.Errorf("%w: unknown resolution %q", ErrInvalidProject, s.Resolution)
	}
	if !export.SupportedFrameRate(s.FrameRate) {
		return fmt.Errorf("%w: unsupported frame rate %d", ErrInvalidProject, s.FrameRate)
	}
	for _, ar := range AspectRatios {
		if ar == s.AspectRatio {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidProject, s.AspectRatio)
}

type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Settings   Settings  `json:"settings"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

type Marker struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Time      float64   `json:"time"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatTime renders seconds as m:ss, truncating fractions.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
