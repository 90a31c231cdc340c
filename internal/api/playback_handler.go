package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, err := cfg.Projects.Frame(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, FrameToResponse(frame, nil))
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlaybackRequest
		if !decodeBody(w, r, &req) {
			return
		}

		frame, err := cfg.Projects.Control(r.Context(), chi.URLParam(r, "id"), req.Action, req.Value)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, FrameToResponse(frame, nil))
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, handles, err := cfg.Projects.Preview(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, FrameToResponse(frame, handles))
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Media == nil {
			WriteError(w, http.StatusNotFound, "media serving is disabled", "NOT_FOUND")
			return
		}

		clipID := chi.URLParam(r, "clipID")
		var clip *timeline.Clip
		err := cfg.Projects.View(r.Context(), chi.URLParam(r, "id"), func(s *project.Session) error {
			var err error
			clip, err = s.Registry().Get(clipID)
			return err
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		// Streaming happens outside the session lock; clip is a copy.
		if err := cfg.Media.ServeClip(w, r, *clip); err != nil {
			cfg.Logger.Warn("media error", "error", err, "clip_id", clipID)
			writeServiceError(w, cfg.Logger, err)
		}
	}
}

func listMarkersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		markers, err := cfg.Projects.ListMarkers(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if markers == nil {
			markers = []*project.Marker{}
		}
		WriteJSON(w, http.StatusOK, MarkersResponse{Markers: markers})
	}
}

func addMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MarkerRequest
		if !decodeBody(w, r, &req) {
			return
		}

		m, err := cfg.Projects.AddMarker(r.Context(), chi.URLParam(r, "id"), req.Time, req.Label)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, m)
	}
}

func removeMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Projects.RemoveMarker(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "markerID"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
