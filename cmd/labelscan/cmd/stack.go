package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/extract"
	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/MeKo-Tech/labelscan/internal/sink"
)

// stack is a controller with the resources it was built from.
type stack struct {
	ctrl    *pipeline.Controller
	sink    sink.Sink
	closers []func() error
}

// Close releases the controller (which closes the sink) and then the
// detector and OCR engine.
func (s *stack) Close() error {
	var first error
	if s.ctrl != nil {
		first = s.ctrl.Close()
	} else if s.sink != nil {
		first = s.sink.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newStack builds every pipeline component from cfg. Per-region modes need the
// detector model; frame-barcode mode uses it for the overlay only when present.
func newStack(cfg *config.Config, display pipeline.Display) (*stack, error) {
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	s := &stack{}
	fail := func(err error) (*stack, error) {
		_ = s.Close()
		return nil, err
	}

	det, err := newDetector(cfg, pcfg.Mode)
	if err != nil {
		return fail(err)
	}
	comp := pipeline.Components{
		Extractor: extract.New(cfg.ToExtractOptions()),
		Annotator: render.New(render.DefaultStyle()),
		Display:   display,
	}
	if det != nil {
		s.closers = append(s.closers, det.Close)
		comp.Detector = det
	}

	dec, closers, err := newDecoder(cfg, pcfg.Mode)
	s.closers = append(s.closers, closers...)
	if err != nil {
		return fail(err)
	}
	comp.Decoder = dec

	sopts, err := cfg.ToSinkOptions()
	if err != nil {
		return fail(err)
	}
	s.sink, err = sink.Open(sopts)
	if err != nil {
		return fail(err)
	}
	comp.Sink = s.sink

	s.ctrl, err = pipeline.New(pcfg, comp)
	if err != nil {
		return fail(err)
	}
	slog.Info("Pipeline ready",
		"mode", pcfg.Mode,
		"detector", det != nil,
		"sink", s.sink.Path(),
		"crops", cfg.ToExtractOptions().OutputDir)
	return s, nil
}

func newDetector(cfg *config.Config, mode decode.Mode) (*detector.YOLO, error) {
	dcfg := cfg.ToDetectorConfig()
	if !mode.PerRegion() {
		if err := models.ValidateModelExists(dcfg.ModelPath); err != nil {
			slog.Info("No detector model, frames are shown without boxes", "model", dcfg.ModelPath)
			return nil, nil
		}
	}
	det, err := detector.NewYOLO(dcfg)
	if err != nil {
		return nil, fmt.Errorf("load detector %s: %w", dcfg.ModelPath, err)
	}
	return det, nil
}

// newDecoder builds the OCR engine for per-region modes and the barcode
// reader for the fallback and frame modes.
func newDecoder(cfg *config.Config, mode decode.Mode) (decode.Decoder, []func() error, error) {
	dec := decode.Decoder{Mode: mode}
	var closers []func() error
	if mode != decode.ModeFrameBarcode {
		engine, err := decode.NewTesseract(cfg.ToEngineOptions())
		if err != nil {
			return dec, nil, fmt.Errorf("mode %s needs OCR: %w", mode, err)
		}
		ocr := decode.NewOCR(engine, decode.DefaultCleanOptions(), cfg.Decode.Enhance)
		closers = append(closers, ocr.Close)
		dec.OCR = ocr
	}
	if mode != decode.ModeRegionOCR {
		opts, err := cfg.ToBarcodeOptions()
		if err != nil {
			return dec, closers, err
		}
		dec.Barcodes = decode.NewBarcodes(nil, opts, cfg.Decode.Enhance)
	}
	return dec, closers, nil
}

// endedNormally reports whether a run finished because the source ran out.
func endedNormally(err error) bool {
	return err == nil || errors.Is(err, capture.ErrEndOfStream)
}
