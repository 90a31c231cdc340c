package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{timeline.ErrInvalidRecord, http.StatusUnprocessableEntity, "INVALID_RECORD"},
	{project.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
	{project.ErrMarkerNotFound, http.StatusNotFound, "MARKER_NOT_FOUND"},
	{export.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
	{timeline.ErrTrackNotFound, http.StatusNotFound, "TRACK_NOT_FOUND"},
	{timeline.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{timeline.ErrOverlap, http.StatusConflict, "OVERLAP"},
	{timeline.ErrIncompatibleTracks, http.StatusConflict, "INCOMPATIBLE_TRACKS"},
	{timeline.ErrClipInUse, http.StatusConflict, "CLIP_IN_USE"},
	{timeline.ErrNothingToUndo, http.StatusConflict, "NOTHING_TO_UNDO"},
	{timeline.ErrNothingToRedo, http.StatusConflict, "NOTHING_TO_REDO"},
	{export.ErrJobFinished, http.StatusConflict, "JOB_FINISHED"},
	{timeline.ErrInvalidTrim, http.StatusBadRequest, "INVALID_TRIM"},
	{timeline.ErrInvalidSplit, http.StatusBadRequest, "INVALID_SPLIT"},
	{timeline.ErrInvalidTransition, http.StatusBadRequest, "INVALID_TRANSITION"},
	{timeline.ErrInvalidEffect, http.StatusBadRequest, "INVALID_EFFECT"},
	{timeline.ErrInvalidPosition, http.StatusBadRequest, "INVALID_POSITION"},
	{timeline.ErrInvalidAsset, http.StatusBadRequest, "INVALID_ASSET"},
	{timeline.ErrInvalidVolume, http.StatusBadRequest, "INVALID_VOLUME"},
	{playback.ErrInvalidRate, http.StatusBadRequest, "INVALID_RATE"},
	{playback.ErrNoMedia, http.StatusNotFound, "NO_MEDIA"},
	{project.ErrInvalidProject, http.StatusBadRequest, "INVALID_PROJECT"},
	{project.ErrInvalidMarker, http.StatusBadRequest, "INVALID_MARKER"},
	{project.ErrInvalidAction, http.StatusBadRequest, "INVALID_ACTION"},
	{project.ErrExportsDisabled, http.StatusServiceUnavailable, "EXPORTS_DISABLED"},
	{export.ErrInvalidSettings, http.StatusBadRequest, "INVALID_SETTINGS"},
	{export.ErrInvalidOutputDir, http.StatusBadRequest, "INVALID_OUTPUT_DIR"},
	{render.ErrRenderFailure, http.StatusBadGateway, "RENDER_FAILED"},
}

// statusFor maps an error to its HTTP status and code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeServiceError writes err using the mapping table. Unmapped errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		WriteError(w, status, "internal error", code)
		return
	}
	WriteError(w, status, err.Error(), code)
}
