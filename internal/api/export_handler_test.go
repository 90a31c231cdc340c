package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func TestPresets(t *testing.T) {
	env := newTestEnv(t)
	var resp PresetsResponse
	rr := env.do(t, http.MethodGet, "/export/presets", nil, &resp)
	expectStatus(t, rr, http.StatusOK, "")

	if len(resp.Formats) != 5 || len(resp.Qualities) != 4 || len(resp.Resolutions) != 5 {
		t.Fatalf("presets = %+v", resp)
	}
	for _, q := range resp.Qualities {
		if q.Quality == export.QualityHigh && q.BitrateKbps != 8000 {
			t.Errorf("high bitrate = %d, want 8000", q.BitrateKbps)
		}
	}
}

func TestEstimate(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "Estimate")
	clip := env.registerVideo(t, p.ID, 10)
	env.insert(t, p.ID, InsertRequest{ClipID: clip.ID, SourceOut: 10})

	var est EstimateResponse
	rr := env.do(t, http.MethodGet, "/projects/"+p.ID+"/exports/estimate", nil, &est)
	expectStatus(t, rr, http.StatusOK, "")
	if est.Quality != "high" || est.Duration != 10 || est.SizeBytes != 8000*1024/8*10 {
		t.Fatalf("estimate = %+v", est)
	}
	if !strings.HasSuffix(est.SizeFormatted, "MB") {
		t.Errorf("size_formatted = %q", est.SizeFormatted)
	}

	rr = env.do(t, http.MethodGet, "/projects/"+p.ID+"/exports/estimate?quality=lossless", nil, nil)
	expectStatus(t, rr, http.StatusBadRequest, "INVALID_SETTINGS")
}

func TestSubmitAndCancelExport(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "Cancel Me")

	var job JobResponse
	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/exports", ExportRequest{}, &job)
	expectStatus(t, rr, http.StatusAccepted, "")
	if job.Status != string(export.JobPending) || job.Settings.Format != export.FormatEDL || job.Settings.Title != "Cancel Me" {
		t.Fatalf("job = %+v", job)
	}

	rr = env.do(t, http.MethodPost, "/exports/"+job.ID+"/cancel", nil, &job)
	expectStatus(t, rr, http.StatusAccepted, "")
	if job.Status != string(export.JobCanceled) {
		t.Fatalf("status after cancel = %s", job.Status)
	}

	rr = env.do(t, http.MethodPost, "/exports/"+job.ID+"/cancel", nil, nil)
	expectStatus(t, rr, http.StatusConflict, "JOB_FINISHED")
	rr = env.do(t, http.MethodPost, "/exports/missing/cancel", nil, nil)
	expectStatus(t, rr, http.StatusNotFound, "JOB_NOT_FOUND")
	rr = env.do(t, http.MethodGet, "/exports/missing", nil, nil)
	expectStatus(t, rr, http.StatusNotFound, "JOB_NOT_FOUND")
}

func TestSubmitExport_Validation(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "Bad Settings")
	base := "/projects/" + p.ID + "/exports"

	tests := []struct {
		name string
		req  ExportRequest
		code string
	}{
		{"unknown format", ExportRequest{Format: "avi"}, "INVALID_SETTINGS"},
		{"unknown quality", ExportRequest{Quality: "lossless"}, "INVALID_SETTINGS"},
		{"unsupported fps", ExportRequest{FrameRate: 25}, "INVALID_SETTINGS"},
		{"missing dir", ExportRequest{OutputDir: "/nonexistent/exports"}, "INVALID_OUTPUT_DIR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, base, tc.req, nil)
			expectStatus(t, rr, http.StatusBadRequest, tc.code)
		})
	}

	rr := env.do(t, http.MethodPost, "/projects/nope/exports", ExportRequest{}, nil)
	expectStatus(t, rr, http.StatusNotFound, "PROJECT_NOT_FOUND")
}

func TestExport_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "Final Cut")
	clip := env.registerVideo(t, p.ID, 10)
	env.insert(t, p.ID, InsertRequest{ClipID: clip.ID, SourceOut: 6})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.cfg.Runner.Start(ctx)

	var job JobResponse
	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/exports", ExportRequest{Format: export.FormatEDL, FrameRate: 24}, &job)
	expectStatus(t, rr, http.StatusAccepted, "")

	// Later edits must not reach the queued export.
	env.insert(t, p.ID, InsertRequest{ClipID: clip.ID, Append: true})

	deadline := time.Now().Add(5 * time.Second)
	for {
		var got JobResponse
		env.do(t, http.MethodGet, "/exports/"+job.ID, nil, &got)
		if got.Status == string(export.JobCompleted) {
			if !strings.HasSuffix(got.OutputPath, ".edl") || got.SizeBytes == 0 {
				t.Fatalf("completed job = %+v", got)
			}
			break
		}
		if got.Status == string(export.JobFailed) {
			t.Fatalf("export failed: %s", got.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("export still %s after deadline", got.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	var list JobsResponse
	env.do(t, http.MethodGet, "/projects/"+p.ID+"/exports", nil, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID {
		t.Fatalf("project jobs = %+v", list)
	}
	env.do(t, http.MethodGet, "/exports?project_id=other", nil, &list)
	if len(list.Jobs) != 0 {
		t.Fatalf("jobs for other project = %+v", list)
	}
}

func TestStatus_CountsPendingJobs(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "Status")
	env.do(t, http.MethodPost, "/projects/"+p.ID+"/exports", ExportRequest{}, nil)

	var status StatusResponse
	rr := env.do(t, http.MethodGet, "/status", nil, &status)
	expectStatus(t, rr, http.StatusOK, "")
	if status.State != "idle" || status.ProjectsCount != 1 || status.JobsPending != 1 {
		t.Fatalf("status = %+v", status)
	}

	env.cfg.Runner.Pause()
	env.do(t, http.MethodGet, "/status", nil, &status)
	if status.State != "paused" {
		t.Fatalf("state = %s, want paused", status.State)
	}
}
