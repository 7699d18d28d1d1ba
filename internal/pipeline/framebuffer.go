package pipeline

import (
	"image"
	"sync"
	"time"
)

// FrameBuffer is a single-slot mailbox holding the latest annotated frame.
// Publishing overwrites the slot; a frame replaced before anyone read it
// counts as a drop.
type FrameBuffer struct {
	mu        sync.Mutex
	frame     image.Image
	seq       uint64
	at        time.Time
	unread    bool
	published uint64
	drops     uint64
}

// BufferStats is a snapshot of FrameBuffer counters.
type BufferStats struct {
	Published uint64    `json:"published"`
	Drops     uint64    `json:"drops"`
	LastSeq   uint64    `json:"last_seq"`
	LastAt    time.Time `json:"last_at"`
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer { return &FrameBuffer{} }

// Publish stores img as the latest frame. It never blocks on readers.
func (b *FrameBuffer) Publish(img image.Image, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unread {
		b.drops++
	}
	b.frame, b.seq, b.at = img, seq, time.Now()
	b.unread = true
	b.published++
}

// Latest returns the most recent frame and its sequence number. ok is false
// until the first Publish.
func (b *FrameBuffer) Latest() (img image.Image, seq uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, 0, false
	}
	b.unread = false
	return b.frame, b.seq, true
}

// Stats returns the buffer counters.
func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{Published: b.published, Drops: b.drops, LastSeq: b.seq, LastAt: b.at}
}
