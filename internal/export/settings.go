// Package export turns immutable timeline snapshots into files. Exports run
// as background jobs so a long render never holds an editing session.
package export

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSettings = errors.New("invalid export settings")

type Format string

const (
	FormatMP4  Format = "mp4"
	FormatMOV  Format = "mov"
	FormatWebM Format = "webm"
	FormatEDL  Format = "edl"
	FormatJSON Format = "json"
)

func Formats() []Format {
	return []Format{FormatMP4, FormatMOV, FormatWebM, FormatEDL, FormatJSON}
}

// Codec returns the video encoder ffmpeg uses for a container format.
func (f Format) Codec() string {
	switch f {
	case FormatMP4:
		return "libx264"
	case FormatMOV:
		return "prores_ks"
	case FormatWebM:
		return "libvpx-vp9"
	default:
		return ""
	}
}

// AudioCodec returns the audio encoder paired with Codec.
func (f Format) AudioCodec() string {
	switch f {
	case FormatMP4:
		return "aac"
	case FormatMOV:
		return "pcm_s16le"
	case FormatWebM:
		return "libopus"
	default:
		return ""
	}
}

// IsVideo reports whether the format is an encoded video container.
func (f Format) IsVideo() bool {
	return f.Codec() != ""
}

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// Bitrates are in kbit/s.
var qualityBitrates = map[Quality]int{
	QualityLow:    1500,
	QualityMedium: 4000,
	QualityHigh:   8000,
	QualityUltra:  12000,
}

func Qualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra}
}

func (q Quality) Bitrate() int {
	return qualityBitrates[q]
}

type Resolution struct {
	Label  string `json:"label"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var resolutions = []Resolution{
	{Label: "360p", Width: 640, Height: 360},
	{Label: "480p", Width: 854, Height: 480},
	{Label: "720p", Width: 1280, Height: 720},
	{Label: "1080p", Width: 1920, Height: 1080},
	{Label: "4K", Width: 3840, Height: 2160},
}

// LookupResolution matches a label case-insensitively.
func LookupResolution(label string) (Resolution, bool) {
	for _, r := range resolutions {
		if strings.EqualFold(r.Label, label) {
			return r, true
		}
	}
	return Resolution{}, false
}

func Resolutions() []Resolution {
	return append([]Resolution(nil), resolutions...)
}

var frameRates = []int{24, 30, 60}

// Settings selects how a snapshot is exported.
type Settings struct {
	Format     Format  `json:"format"`
	Quality    Quality `json:"quality"`
	Resolution string  `json:"resolution"`
	FrameRate  int     `json:"frame_rate"`
	Title      string  `json:"title,omitempty"`
	OutputDir  string  `json:"output_dir,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{Format: FormatMP4, Quality: QualityHigh, Resolution: "1080p", FrameRate: 30}
}

// WithDefaults fills empty fields from def.
func (s Settings) WithDefaults(def Settings) Settings {
	if s.Format == "" {
		s.Format = def.Format
	}
	if s.Quality == "" {
		s.Quality = def.Quality
	}
	if s.Resolution == "" {
		s.Resolution = def.Resolution
	}
	if s.FrameRate == 0 {
		s.FrameRate = def.FrameRate
	}
	if s.OutputDir == "" {
		s.OutputDir = def.OutputDir
	}
	return s
}

func (s Settings) Validate() error {
	switch s.Format {
	case FormatMP4, FormatMOV, FormatWebM, FormatEDL, FormatJSON:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidSettings, s.Format)
	}
	if _, ok := qualityBitrates[s.Quality]; !ok {
		return fmt.Errorf("%w: unknown quality %q", ErrInvalidSettings, s.Quality)
	}
	if _, ok := LookupResolution(s.Resolution); !ok {
		return fmt.Errorf("%w: unknown resolution %q", ErrInvalidSettings, s.Resolution)
	}
	if !SupportedFrameRate(s.FrameRate) {
		return fmt.Errorf("%w: unsupported frame rate %d", ErrInvalidSettings, s.FrameRate)
	}
	return nil
}

func SupportedFrameRate(fps int) bool {
	for _, f := range frameRates {
		if f == fps {
			return true
		}
	}
	return false
}

// EstimateSize returns the expected output size in bytes for an encoded
// export of the given length, counting a kbit as 1024 bits.
func EstimateSize(durationSeconds float64, q Quality) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64(float64(q.Bitrate()) * 1024 / 8 * durationSeconds)
}
