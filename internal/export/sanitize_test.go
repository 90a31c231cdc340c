package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "control chars dropped", in: " A\nB\rC\tD\x00 ", maxLen: 100, want: "ABCD"},
		{name: "allowed kept", in: "Cut 02 -_,()", maxLen: 100, want: "Cut 02 -_,()"},
		{name: "disallowed replaced", in: `trailer<>|"v2`, maxLen: 100, want: "trailer____v2"},
		{name: "path separators", in: "../../etc/passwd", maxLen: 100, want: "_.._etc_passwd"},
		{name: "truncated", in: "abcdefghijklmnopqrstuvwxyz", maxLen: 10, want: "abcdefghij"},
		{name: "unicode letters", in: "Épisode 1", maxLen: 0, want: "Épisode 1"},
		{name: "only dots", in: "...", maxLen: 10, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SafeFileName(tc.in, tc.maxLen); got != tc.want {
				t.Fatalf("SafeFileName(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := CheckOutputDir(dir); err != nil {
		t.Fatalf("CheckOutputDir(%q) error = %v", dir, err)
	}

	bad := []string{
		"",
		"relative/dir",
		"/tmp/../etc",
		dir + "/",
		filepath.Join(dir, "missing"),
		file,
	}
	for _, path := range bad {
		if err := CheckOutputDir(path); !errors.Is(err, ErrInvalidOutputDir) {
			t.Fatalf("CheckOutputDir(%q) error = %v, want ErrInvalidOutputDir", path, err)
		}
	}
}
