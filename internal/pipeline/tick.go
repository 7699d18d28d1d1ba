package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/MeKo-Tech/labelscan/internal/sink"
)

// tick processes one frame. It returns an error only for terminal capture
// failures; everything else is logged and counted.
func (c *Controller) tick(ctx context.Context, src capture.Source) error {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	frame, err := src.Next(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		if capture.IsTerminal(err) {
			return err
		}
		return fmt.Errorf("%w: %w", capture.ErrReadFailed, err)
	}
	framesTotal.Inc()
	c.count(func(s *Stats) { s.Frames++ })

	dets := c.detect(ctx, frame)

	if c.cfg.Mode.PerRegion() {
		for _, d := range dets {
			c.decodeRegion(ctx, frame, d)
		}
	} else {
		c.decodeFrame(ctx, frame)
	}

	c.show(frame, dets)
	return nil
}

func (c *Controller) detect(ctx context.Context, frame capture.Frame) []detector.Detection {
	if c.comp.Detector == nil {
		return nil
	}
	dets, err := c.comp.Detector.Detect(ctx, frame.Image)
	if err != nil {
		slog.Warn("Detection failed", "frame", frame.Seq, "error", err)
		c.count(func(s *Stats) { s.DetectErrors++ })
		return nil
	}
	detectionsTotal.Add(float64(len(dets)))
	c.count(func(s *Stats) { s.Detections += uint64(len(dets)) })
	return dets
}

// decodeRegion extracts and decodes one detection. Overlapping detections are
// handled independently.
func (c *Controller) decodeRegion(ctx context.Context, frame capture.Frame, d detector.Detection) {
	region, err := c.comp.Extractor.Extract(frame.Image, d.Box)
	if err != nil {
		slog.Warn("Failed to persist region", "frame", frame.Seq, "box", d.Box, "error", err)
		c.count(func(s *Stats) { s.ExtractErrors++ })
	}
	results := c.comp.Decoder.Region(ctx, region.Image)
	c.recordAttempt(len(results))
	for _, res := range results {
		c.appendResult(region.Name, res)
	}
}

func (c *Controller) decodeFrame(ctx context.Context, frame capture.Frame) {
	results := c.comp.Decoder.Frame(ctx, frame.Image)
	c.recordAttempt(len(results))
	for _, res := range results {
		c.appendResult(frame.Source, res)
	}
}

func (c *Controller) recordAttempt(found int) {
	outcome := "empty"
	if found > 0 {
		outcome = "content"
	}
	decodesTotal.WithLabelValues(outcome).Inc()
	c.count(func(s *Stats) { s.Decodes++ })
}

func (c *Controller) appendResult(source string, res decode.Result) {
	if res.Content == "" {
		return
	}
	rec := sink.Record{
		Source:    source,
		Content:   res.Content,
		Method:    res.Method,
		Symbology: res.Symbology,
		Timestamp: time.Now(),
	}
	if err := c.comp.Sink.Append(rec); err != nil {
		slog.Error("Failed to append record", "source", source, "error", err)
		sinkErrorsTotal.Inc()
		c.count(func(s *Stats) { s.WriteErrors++ })
		return
	}
	slog.Debug("Recorded content", "source", source, "method", res.Method, "content", res.Content)
	recordsTotal.WithLabelValues(string(res.Method)).Inc()
	c.count(func(s *Stats) { s.Records++ })
}

func (c *Controller) show(frame capture.Frame, dets []detector.Detection) {
	var out image.Image = c.comp.Annotator.Annotate(frame.Image, dets)
	out = render.ForDisplay(out, c.cfg.DisplayWidth, c.cfg.DisplayHeight)
	c.frames.Publish(out, frame.Seq)
	c.comp.Display.Show(out)
}

func (c *Controller) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}
