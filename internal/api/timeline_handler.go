package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// runEdit applies fn to the project editor and writes an EditResponse.
func runEdit(cfg ServerConfig, w http.ResponseWriter, r *http.Request, status int, fn func(*timeline.Editor) ([]timeline.Placement, error)) {
	var resp EditResponse
	events, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
		placements, err := fn(e)
		if err != nil {
			return err
		}
		resp.Placements = placements
		resp.Duration = e.Duration()
		return nil
	})
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return
	}
	resp.Events = events
	WriteJSON(w, status, resp)
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp ClipsResponse
		err := cfg.Projects.View(r.Context(), chi.URLParam(r, "id"), func(s *project.Session) error {
			resp.Clips = s.Registry().List()
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func registerClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var clip *timeline.Clip
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			var err error
			clip, err = e.Registry().Register(timeline.ClipSpec{
				Kind:      req.Kind,
				Name:      req.Name,
				Format:    req.Format,
				Duration:  req.Duration,
				SourceRef: req.SourceRef,
				Text:      req.Text,
			})
			return err
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, clip)
	}
}

func unregisterClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			return e.Registry().Unregister(clipID)
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func insertHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InsertRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ClipID == "" {
			WriteError(w, http.StatusBadRequest, "clip_id is required", "BAD_REQUEST")
			return
		}

		runEdit(cfg, w, r, http.StatusCreated, func(e *timeline.Editor) ([]timeline.Placement, error) {
			var (
				p   timeline.Placement
				err error
			)
			if req.Append {
				p, err = e.AppendClip(req.Track, req.ClipID)
			} else {
				p, err = e.InsertClip(req.Track, req.ClipID, req.Start, req.SourceIn, req.SourceOut)
			}
			if err != nil {
				return nil, err
			}
			return []timeline.Placement{p}, nil
		})
	}
}

func moveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "placementID")
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			p, err := e.Move(id, req.Track, req.Start)
			if err != nil {
				return nil, err
			}
			return []timeline.Placement{p}, nil
		})
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "placementID")
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			p, err := e.Trim(id, req.SourceIn, req.SourceOut)
			if err != nil {
				return nil, err
			}
			return []timeline.Placement{p}, nil
		})
	}
}

func volumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Volume == nil {
			WriteError(w, http.StatusBadRequest, "volume is required", "BAD_REQUEST")
			return
		}
		id := chi.URLParam(r, "placementID")
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			p, err := e.SetVolume(id, *req.Volume)
			if err != nil {
				return nil, err
			}
			return []timeline.Placement{p}, nil
		})
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "placementID")
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			left, right, err := e.Split(id, req.Offset)
			if err != nil {
				return nil, err
			}
			return []timeline.Placement{left, right}, nil
		})
	}
}

func deletePlacementHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "placementID")
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			return nil, e.Delete(id)
		})
	}
}

func reorderTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "track index must be an integer", "BAD_REQUEST")
			return
		}
		var req ReorderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		runEdit(cfg, w, r, http.StatusOK, func(e *timeline.Editor) ([]timeline.Placement, error) {
			return nil, e.ReorderTrack(index, req.ZOrder)
		})
	}
}

func addTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransitionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var tr timeline.Transition
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			var err error
			tr, err = e.Index().AddTransition(req.From, req.To, req.Kind, req.Duration)
			return err
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, tr)
	}
}

func removeTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "transitionID")
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			return e.Index().RemoveTransition(id)
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addEffectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EffectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var fx timeline.Effect
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			var err error
			fx, err = e.Index().AddEffect(req.PlacementID, req.Kind, req.Params)
			return err
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, fx)
	}
}

func removeEffectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "effectID")
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			return e.Index().RemoveEffect(id)
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp HistoryResponse
		err := cfg.Projects.View(r.Context(), chi.URLParam(r, "id"), func(s *project.Session) error {
			h := s.Editor().History()
			resp = HistoryResponse{
				Entries:  h.Labels(),
				Cursor:   h.Cursor(),
				Capacity: h.Capacity(),
				CanUndo:  h.CanUndo(),
				CanRedo:  h.CanRedo(),
			}
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyStepHandler(cfg, (*timeline.Editor).Undo)
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyStepHandler(cfg, (*timeline.Editor).Redo)
}

func historyStepHandler(cfg ServerConfig, step func(*timeline.Editor) (timeline.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp HistoryStepResponse
		_, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(e *timeline.Editor) error {
			entry, err := step(e)
			if err != nil {
				return err
			}
			resp = HistoryStepResponse{Kind: entry.Kind(), Duration: e.Duration()}
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func visibleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid t: %q", r.URL.Query().Get("t")), "BAD_REQUEST")
			return
		}

		resp := VisibleResponse{Time: at}
		err = cfg.Projects.View(r.Context(), chi.URLParam(r, "id"), func(s *project.Session) error {
			resp.Layers = s.Editor().Timeline().VisibleAt(at)
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if resp.Layers == nil {
			resp.Layers = []timeline.Layer{}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
