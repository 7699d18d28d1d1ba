package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists the file extensions served by a directory source.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// DirectorySource replays the images of a directory in lexical order and then
// reports ErrEndOfStream.
type DirectorySource struct {
	dir   string
	files []string
	pos   int
	seq   uint64
}

// OpenDirectory lists supported images in dir. An unreadable directory or one
// without any image is unavailable.
func OpenDirectory(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSupportedImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrSourceUnavailable, dir)
	}
	sort.Strings(files)

	slog.Debug("Opened image directory", "dir", dir, "images", len(files))
	return &DirectorySource{dir: dir, files: files}, nil
}

// Next decodes the next image file.
func (s *DirectorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.files) {
		return Frame{}, ErrEndOfStream
	}

	path := s.files[s.pos]
	s.pos++

	img, err := loadImage(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %w", ErrReadFailed, path, err)
	}

	s.seq++
	return Frame{Image: img, Seq: s.seq, Timestamp: time.Now(), Source: filepath.Base(path)}, nil
}

// Name returns the directory path.
func (s *DirectorySource) Name() string { return s.dir }

// Len returns the number of images the source will replay.
func (s *DirectorySource) Len() int { return len(s.files) }

// Close is a no-op; files are opened per frame.
func (s *DirectorySource) Close() error { return nil }

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("Error closing image file", "path", path, "error", err)
		}
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
