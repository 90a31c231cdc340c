package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/library", libraryHandler(cfg))
	r.Get("/export/presets", presetsHandler(cfg))

	r.Group(func(r chi.Router) {
		if cfg.Tokens != nil {
			r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))
		}

		r.Get("/status", statusHandler(cfg))
		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Patch("/", updateProjectHandler(cfg))
			r.Delete("/", deleteProjectHandler(cfg))
			r.Post("/save", saveProjectHandler(cfg))
			r.Get("/timeline", timelineHandler(cfg))
			r.Get("/visible", visibleHandler(cfg))

			r.Get("/clips", listClipsHandler(cfg))
			r.Post("/clips", registerClipHandler(cfg))
			r.Delete("/clips/{clipID}", unregisterClipHandler(cfg))
			r.Get("/clips/{clipID}/media", mediaHandler(cfg))

			r.Post("/placements", insertHandler(cfg))
			r.Post("/placements/{placementID}/move", moveHandler(cfg))
			r.Post("/placements/{placementID}/trim", trimHandler(cfg))
			r.Post("/placements/{placementID}/split", splitHandler(cfg))
			r.Put("/placements/{placementID}/volume", volumeHandler(cfg))
			r.Delete("/placements/{placementID}", deletePlacementHandler(cfg))
			r.Put("/tracks/{index}/z", reorderTrackHandler(cfg))

			r.Post("/transitions", addTransitionHandler(cfg))
			r.Delete("/transitions/{transitionID}", removeTransitionHandler(cfg))
			r.Post("/effects", addEffectHandler(cfg))
			r.Delete("/effects/{effectID}", removeEffectHandler(cfg))

			r.Get("/history", historyHandler(cfg))
			r.Post("/undo", undoHandler(cfg))
			r.Post("/redo", redoHandler(cfg))

			r.Get("/playback", frameHandler(cfg))
			r.Post("/playback", playbackHandler(cfg))
			r.Get("/preview", previewHandler(cfg))

			r.Get("/markers", listMarkersHandler(cfg))
			r.Post("/markers", addMarkerHandler(cfg))
			r.Delete("/markers/{markerID}", removeMarkerHandler(cfg))

			r.Get("/exports", listProjectExportsHandler(cfg))
			r.Post("/exports", submitExportHandler(cfg))
			r.Get("/exports/estimate", estimateHandler(cfg))
		})

		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{jobID}", getExportHandler(cfg))
		r.Post("/exports/{jobID}/cancel", cancelExportHandler(cfg))
	})

	return r
}

// decodeBody reads a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func libraryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := LibraryResponse{Effects: timeline.EffectLibrary()}
		for _, kind := range timeline.TransitionKinds() {
			d, _ := timeline.DefaultTransitionDuration(kind)
			resp.Transitions = append(resp.Transitions, TransitionPreset{Kind: kind, DefaultDuration: d})
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projects, _ := cfg.Projects.List(ctx)
		resp := StatusResponse{State: "idle", ProjectsCount: len(projects)}

		if cfg.Jobs != nil {
			jobs, _ := cfg.Jobs.ListJobs(ctx, "", 20)
			for _, j := range jobs {
				switch j.Status {
				case export.JobRunning:
					resp.State = "exporting"
					resp.JobsRunning++
					active := JobToResponse(j)
					resp.ActiveJob = &active
				case export.JobPending:
					resp.JobsPending++
				case export.JobFailed:
					if resp.LastError == "" {
						resp.LastError = j.Error
					}
				}
			}
		}
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			resp.State = "paused"
		}
		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Projects.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p, err := cfg.Projects.Create(r.Context(), req.Name, req.Settings)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp ProjectDetailResponse
		err := cfg.Projects.View(r.Context(), chi.URLParam(r, "id"), func(s *project.Session) error {
			p := s.Project()
			e := s.Editor()
			resp.ProjectResponse = ProjectToResponse(&p)
			resp.Duration = e.Duration()
			resp.Length = project.FormatTime(resp.Duration)
			resp.Timeline = e.Snapshot()
			resp.CanUndo = e.History().CanUndo()
			resp.CanRedo = e.History().CanRedo()
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Settings)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Projects.Save(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		p, err := cfg.Projects.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := cfg.Projects.Snapshot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}
