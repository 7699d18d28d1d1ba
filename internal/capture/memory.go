package capture

import (
	"context"
	"image"
	"sync"
	"time"
)

// MemorySource serves a fixed list of images, then ErrEndOfStream.
type MemorySource struct {
	name   string
	images []image.Image

	mu     sync.Mutex
	pos    int
	closed bool
}

// NewMemorySource creates a source over images.
func NewMemorySource(name string, images ...image.Image) *MemorySource {
	return &MemorySource{name: name, images: images}
}

// Next returns the next image. A nil entry is reported as ErrReadFailed so tests
// can simulate a device that stops delivering data.
func (s *MemorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrSourceUnavailable
	}
	if s.pos >= len(s.images) {
		return Frame{}, ErrEndOfStream
	}

	img := s.images[s.pos]
	s.pos++
	if img == nil {
		return Frame{}, ErrReadFailed
	}
	return Frame{Image: img, Seq: uint64(s.pos), Timestamp: time.Now(), Source: s.name}, nil
}

// Name returns the name given at construction.
func (s *MemorySource) Name() string { return s.name }

// Close marks the source closed.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *MemorySource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
