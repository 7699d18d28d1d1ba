package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"
)

var (
	// ErrSourceUnavailable is returned when a camera, file or directory cannot be opened.
	ErrSourceUnavailable = errors.New("capture: source unavailable")
	// ErrReadFailed is returned when a read attempt yields no frame.
	ErrReadFailed = errors.New("capture: frame read failed")
	// ErrEndOfStream is returned once a file-backed source has no more frames.
	ErrEndOfStream = errors.New("capture: end of stream")
)

// Frame is a single captured image together with its position in the stream.
type Frame struct {
	Image     image.Image
	Seq       uint64
	Timestamp time.Time
	Source    string
}

// Source yields sequential frames from a camera, a video file or an image directory.
// A Source is not safe for concurrent use; the pipeline worker is its only reader.
type Source interface {
	// Next blocks until a frame is available, the stream ends or ctx is cancelled.
	Next(ctx context.Context) (Frame, error)
	// Name identifies the source in logs and result rows.
	Name() string
	// Close releases the underlying device or file handles.
	Close() error
}

// Open picks a backend for spec. Directories are served by the image directory
// source, everything else (camera indices, video files, stream URLs) goes to the
// video backend.
func Open(spec string) (Source, error) {
	if spec == "" {
		return nil, fmt.Errorf("%w: empty source", ErrSourceUnavailable)
	}
	if fi, err := os.Stat(spec); err == nil && fi.IsDir() {
		return OpenDirectory(spec)
	}
	return OpenVideo(spec)
}

// IsTerminal reports whether err ends the stream for the pipeline.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrReadFailed) ||
		errors.Is(err, ErrSourceUnavailable)
}
