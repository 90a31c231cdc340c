package api

import (
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func presetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := PresetsResponse{
			Formats:     export.Formats(),
			Resolutions: export.Resolutions(),
		}
		for _, q := range export.Qualities() {
			resp.Qualities = append(resp.Qualities, QualityPreset{Quality: q, BitrateKbps: q.Bitrate()})
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}

		job, err := cfg.Projects.RequestExport(r.Context(), chi.URLParam(r, "id"), export.Settings{
			Format:     req.Format,
			Quality:    req.Quality,
			Resolution: req.Resolution,
			FrameRate:  req.FrameRate,
			Title:      req.Title,
			OutputDir:  req.OutputDir,
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func estimateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := export.Quality(r.URL.Query().Get("quality"))
		if q == "" {
			q = export.QualityHigh
		}
		if q.Bitrate() == 0 {
			WriteError(w, http.StatusBadRequest, "unknown quality "+strconv.Quote(string(q)), "INVALID_SETTINGS")
			return
		}

		rec, err := cfg.Projects.Snapshot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		size := export.EstimateSize(rec.Duration(), q)
		WriteJSON(w, http.StatusOK, EstimateResponse{
			Duration:      rec.Duration(),
			Quality:       string(q),
			SizeBytes:     size,
			SizeFormatted: humanize.Bytes(uint64(size)),
		})
	}
}

func listProjectExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")
		if _, err := cfg.Projects.Get(r.Context(), projectID); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeJobs(cfg, w, r, projectID)
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJobs(cfg, w, r, r.URL.Query().Get("project_id"))
	}
}

func writeJobs(cfg ServerConfig, w http.ResponseWriter, r *http.Request, projectID string) {
	if cfg.Jobs == nil {
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: []JobResponse{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := cfg.Jobs.ListJobs(r.Context(), projectID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
		return
	}

	resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, j := range jobs {
		resp.Jobs[i] = JobToResponse(j)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Jobs == nil {
			writeServiceError(w, cfg.Logger, export.ErrJobNotFound)
			return
		}
		job, err := cfg.Jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			writeServiceError(w, cfg.Logger, export.ErrJobNotFound)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			writeServiceError(w, cfg.Logger, export.ErrJobNotFound)
			return
		}
		id := chi.URLParam(r, "jobID")
		if err := cfg.Runner.Cancel(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		job, err := cfg.Jobs.GetJob(r.Context(), id)
		if err != nil || job == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}
