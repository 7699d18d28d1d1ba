// Package extract crops detected regions out of frames and optionally persists
// them as PNG files.
package extract

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/disintegration/imaging"
)

// Naming strategies for persisted crops.
const (
	// NamingTimestamp uses second granularity. Two crops saved within the same
	// second share a name and the later one overwrites the earlier one.
	NamingTimestamp = "timestamp"
	// NamingSequence appends a process-wide counter so names never collide.
	NamingSequence = "sequence"
)

// DefaultOutputDir is where crops are written when persistence is enabled.
const DefaultOutputDir = "detected_labels"

const timestampLayout = "20060102_150405"

// Options configures an Extractor.
type Options struct {
	// OutputDir enables persistence when non-empty. It is created on first write.
	OutputDir string
	// Naming selects NamingTimestamp or NamingSequence.
	Naming string
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Region is the crop of a frame for one detection.
type Region struct {
	Image image.Image
	// Box is the clamped crop rectangle in frame coordinates.
	Box image.Rectangle
	// Name identifies the region in result rows.
	Name string
	// Path is the file the crop was written to, empty when not persisted.
	Path string
}

// Empty reports whether the clamped box has no area.
func (r Region) Empty() bool { return r.Box.Empty() }

// sequence is shared by all extractors so names stay unique process-wide.
var sequence atomic.Uint64

// Extractor clamps, crops and optionally saves regions.
type Extractor struct {
	opts    Options
	dirOnce sync.Once
	dirErr  error
}

// New creates an Extractor. Unknown naming strategies fall back to NamingSequence.
func New(opts Options) *Extractor {
	if opts.Naming != NamingTimestamp {
		opts.Naming = NamingSequence
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Extractor{opts: opts}
}

// Persisting reports whether crops are written to disk.
func (e *Extractor) Persisting() bool { return e.opts.OutputDir != "" }

// Extract crops box out of frame. The box is clamped to the frame first, so the
// crop never indexes outside the frame. An empty clamped box yields an empty
// region that is not persisted.
func (e *Extractor) Extract(frame image.Image, box image.Rectangle) (Region, error) {
	if frame == nil {
		return Region{}, fmt.Errorf("extract: nil frame")
	}

	clamped := utils.ClampRect(box.Canon(), frame.Bounds())
	name := e.nextName()
	region := Region{Box: clamped, Name: name, Image: utils.CropImageRect(frame, clamped)}
	if clamped.Empty() || !e.Persisting() {
		return region, nil
	}

	path, err := e.save(region)
	if err != nil {
		return region, err
	}
	region.Path = path
	return region, nil
}

func (e *Extractor) nextName() string {
	ts := e.opts.Clock().Format(timestampLayout)
	if e.opts.Naming == NamingTimestamp {
		return "label_" + ts + ".png"
	}
	return fmt.Sprintf("label_%s_%06d.png", ts, sequence.Add(1))
}

func (e *Extractor) save(region Region) (string, error) {
	e.dirOnce.Do(func() {
		e.dirErr = os.MkdirAll(e.opts.OutputDir, 0o750)
	})
	if e.dirErr != nil {
		return "", fmt.Errorf("extract: create output dir: %w", e.dirErr)
	}

	path := filepath.Join(e.opts.OutputDir, region.Name)
	if err := imaging.Save(region.Image, path); err != nil {
		return "", fmt.Errorf("extract: save %s: %w", path, err)
	}
	slog.Debug("Saved region", "path", path, "box", region.Box)
	return path, nil
}
