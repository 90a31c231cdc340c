package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrInvalidOutputDir = errors.New("invalid output directory")

// SafeFileName maps a project title onto a portable file name. Control
// characters are dropped and anything outside a small allow-list becomes
// '_'. maxLen counts runes; 0 means unlimited.
func SafeFileName(title string, maxLen int) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, title)

	name := strings.Trim(strings.TrimSpace(mapped), ".")
	if runes := []rune(name); maxLen > 0 && len(runes) > maxLen {
		name = strings.TrimSpace(string(runes[:maxLen]))
	}
	return name
}

// CheckOutputDir accepts an existing, clean, absolute directory.
func CheckOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidOutputDir)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: %s is not absolute", ErrInvalidOutputDir, dir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: path traversal in %s", ErrInvalidOutputDir, dir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: %s is not a clean path", ErrInvalidOutputDir, dir)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s does not exist", ErrInvalidOutputDir, dir)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrInvalidOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidOutputDir, dir)
	}
	return nil
}
