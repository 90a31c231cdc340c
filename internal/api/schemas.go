package api

import (
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string       `json:"state"`
	LastError     string       `json:"last_error,omitempty"`
	ProjectsCount int          `json:"projects_count"`
	JobsRunning   int          `json:"jobs_running"`
	JobsPending   int          `json:"jobs_pending"`
	ActiveJob     *JobResponse `json:"active_job,omitempty"`
}

type ProjectRequest struct {
	Name     string           `json:"name"`
	Settings project.Settings `json:"settings"`
}

type ProjectResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Settings   project.Settings `json:"settings"`
	Duration   float64          `json:"duration,omitempty"`
	Length     string           `json:"length,omitempty"`
	CreatedAt  string           `json:"created_at"`
	ModifiedAt string           `json:"modified_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type ProjectDetailResponse struct {
	ProjectResponse
	Timeline timeline.Record `json:"timeline"`
	CanUndo  bool            `json:"can_undo"`
	CanRedo  bool            `json:"can_redo"`
}

type ClipRequest struct {
	Kind      timeline.ClipKind `json:"kind"`
	Name      string            `json:"name,omitempty"`
	Format    string            `json:"format,omitempty"`
	Duration  float64           `json:"duration"`
	SourceRef string            `json:"source_ref,omitempty"`
	Text      string            `json:"text,omitempty"`
}

type ClipsResponse struct {
	Clips []timeline.Clip `json:"clips"`
}

type InsertRequest struct {
	Track     int     `json:"track"`
	ClipID    string  `json:"clip_id"`
	Start     float64 `json:"start"`
	SourceIn  float64 `json:"source_in"`
	SourceOut float64 `json:"source_out"`
	// Append places the whole clip after the track's last placement and
	// ignores Start and the source window.
	Append bool `json:"append,omitempty"`
}

type MoveRequest struct {
	Track int     `json:"track"`
	Start float64 `json:"start"`
}

type TrimRequest struct {
	SourceIn  float64 `json:"source_in"`
	SourceOut float64 `json:"source_out"`
}

// VolumeRequest sets a placement's audio gain, 0 to 2 with 1 unchanged.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

type SplitRequest struct {
	Offset float64 `json:"offset"`
}

type ReorderRequest struct {
	ZOrder int `json:"z_order"`
}

// EditResponse carries the placements an edit produced, the new timeline
// duration and any transitions the edit removed or shortened.
type EditResponse struct {
	Placements []timeline.Placement       `json:"placements,omitempty"`
	Duration   float64                    `json:"duration"`
	Events     []timeline.TransitionEvent `json:"transition_events,omitempty"`
}

type TransitionRequest struct {
	From     string                  `json:"from"`
	To       string                  `json:"to"`
	Kind     timeline.TransitionKind `json:"kind"`
	Duration float64                 `json:"duration,omitempty"`
}

type EffectRequest struct {
	PlacementID string              `json:"placement_id"`
	Kind        timeline.EffectKind `json:"kind"`
	Params      map[string]float64  `json:"params,omitempty"`
}

type HistoryResponse struct {
	Entries  []string `json:"entries"`
	Cursor   int      `json:"cursor"`
	Capacity int      `json:"capacity"`
	CanUndo  bool     `json:"can_undo"`
	CanRedo  bool     `json:"can_redo"`
}

type HistoryStepResponse struct {
	Kind     string  `json:"kind"`
	Duration float64 `json:"duration"`
}

type VisibleResponse struct {
	Time   float64          `json:"time"`
	Layers []timeline.Layer `json:"layers"`
}

type PlaybackRequest struct {
	Action project.PlaybackAction `json:"action"`
	Value  float64                `json:"value,omitempty"`
}

type FrameResponse struct {
	Time     float64              `json:"time"`
	Position string               `json:"position"`
	State    playback.State       `json:"state"`
	Layers   []timeline.Layer     `json:"layers"`
	Handles  []render.FrameHandle `json:"handles,omitempty"`
}

type MarkerRequest struct {
	Time  float64 `json:"time"`
	Label string  `json:"label"`
}

type MarkersResponse struct {
	Markers []*project.Marker `json:"markers"`
}

type LibraryResponse struct {
	Transitions []TransitionPreset    `json:"transitions"`
	Effects     []timeline.EffectSpec `json:"effects"`
}

type TransitionPreset struct {
	Kind            timeline.TransitionKind `json:"kind"`
	DefaultDuration float64                 `json:"default_duration"`
}

type ExportRequest struct {
	Format     export.Format  `json:"format,omitempty"`
	Quality    export.Quality `json:"quality,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
	FrameRate  int            `json:"frame_rate,omitempty"`
	Title      string         `json:"title,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty"`
}

type PresetsResponse struct {
	Formats     []export.Format     `json:"formats"`
	Qualities   []QualityPreset     `json:"qualities"`
	Resolutions []export.Resolution `json:"resolutions"`
}

type QualityPreset struct {
	Quality     export.Quality `json:"quality"`
	BitrateKbps int            `json:"bitrate_kbps"`
}

type EstimateResponse struct {
	Duration      float64 `json:"duration"`
	Quality       string  `json:"quality"`
	SizeBytes     int64   `json:"size_bytes"`
	SizeFormatted string  `json:"size_formatted"`
}

type JobResponse struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id"`
	Status     string          `json:"status"`
	Settings   export.Settings `json:"settings"`
	Progress   int             `json:"progress"`
	OutputPath string          `json:"output_path,omitempty"`
	SizeBytes  int64           `json:"size_bytes,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID,
		Name:       p.Name,
		Settings:   p.Settings,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		ModifiedAt: p.ModifiedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *export.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		Status:     string(j.Status),
		Settings:   j.Settings,
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		SizeBytes:  j.SizeBytes,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

func FrameToResponse(f playback.Frame, handles []render.FrameHandle) FrameResponse {
	layers := f.Layers
	if layers == nil {
		layers = []timeline.Layer{}
	}
	return FrameResponse{
		Time:     f.Time,
		Position: project.FormatTime(f.Time),
		State:    f.State,
		Layers:   layers,
		Handles:  handles,
	}
}
