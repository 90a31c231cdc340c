package playback

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"empty header", "", 1000, 0, 0, true, nil},
		{"full range", "bytes=0-999", 1000, 0, 999, false, nil},
		{"open end", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix", "bytes=-500", 1000, 500, 999, false, nil},
		{"end clamped", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix larger than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"first of many", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},
		{"start past end", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"inverted", "bytes=50-10", 1000, 0, 0, false, ErrUnsatisfiable},
		{"wrong unit", "chars=0-100", 1000, 0, 0, false, ErrInvalidRange},
		{"no dash", "bytes=100", 1000, 0, 0, false, ErrInvalidRange},
		{"bad start", "bytes=abc-100", 1000, 0, 0, false, ErrInvalidRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseByteRange() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteRange() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseByteRange() = %+v, want nil", got)
				}
				return
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Fatalf("ParseByteRange() = %d-%d, want %d-%d", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestMediaServer_ServeClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	clip := timeline.Clip{ID: "c1", Kind: timeline.ClipVideo, SourceRef: path, Duration: 1}
	srv := NewMediaServer(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	if err := srv.ServeClip(rec, req, clip); err != nil {
		t.Fatalf("ServeClip() error = %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "0123456789" {
		t.Fatalf("full response = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=2-4")
	if err := srv.ServeClip(rec, req, clip); err != nil {
		t.Fatalf("ServeClip() error = %v", err)
	}
	if rec.Code != http.StatusPartialContent || rec.Body.String() != "234" {
		t.Fatalf("range response = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-4/10" {
		t.Fatalf("Content-Range = %q", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=20-")
	srv.ServeClip(rec, req, clip)
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("unsatisfiable status = %d", rec.Code)
	}

	text := timeline.Clip{ID: "t1", Kind: timeline.ClipText, Text: "hi"}
	if err := srv.ServeClip(httptest.NewRecorder(), req, text); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("text clip error = %v", err)
	}
	missing := timeline.Clip{ID: "c2", Kind: timeline.ClipVideo, SourceRef: filepath.Join(t.TempDir(), "gone.mp4")}
	if err := srv.ServeClip(httptest.NewRecorder(), req, missing); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("missing file error = %v", err)
	}
}
