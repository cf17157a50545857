package glyph

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"errors"
	"fmt"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"os"
	"path/filepath"
)

// Font is a parsed TrueType/OpenType font.
type Font struct {
	Path string
	sfnt *opentype.Font
}

// LoadFont reads the font at path. Relative paths are looked up in
// searchDirs in order (usually the XDG font directories).
// Every failure is reported as *xkbtray.FontLoadError.
func LoadFont(path string, searchDirs []string) (*Font, error) {
	if path == "" {
		return nil, &xkbtray.FontLoadError{Path: path, Err: errors.New("no font path configured")}
	}

	resolved, err := resolveFontPath(path, searchDirs)
	if err != nil {
		return nil, &xkbtray.FontLoadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &xkbtray.FontLoadError{Path: resolved, Err: err}
	}

	return ParseFont(resolved, data)
}

// ParseFont parses font data already in memory. name is only used in errors.
func ParseFont(name string, data []byte) (*Font, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, &xkbtray.FontLoadError{Path: name, Err: fmt.Errorf("parse: %w", err)}
	}

	return &Font{Path: name, sfnt: parsed}, nil
}

// Face creates a sized face. Faces are not safe for concurrent use.
func (f *Font) Face(opts Options) (font.Face, error) {
	face, err := opentype.NewFace(f.sfnt, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     opts.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

func resolveFontPath(path string, searchDirs []string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("not found in working directory or %d font dirs", len(searchDirs))
}
