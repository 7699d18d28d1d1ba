// Package decode turns image regions into text or barcode payloads.
//
// Decoders never fail: engine errors and panics are logged and reported as an
// empty result, so a bad region can never stop the pipeline.
package decode

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Method records which engine produced a result.
type Method string

const (
	MethodOCR     Method = "OCR"
	MethodBarcode Method = "BARCODE"
)

// Mode selects how the pipeline decodes a frame.
type Mode string

const (
	// ModeRegionOCR runs OCR on every detected region.
	ModeRegionOCR Mode = "region-ocr"
	// ModeRegionFallback tries barcodes on every region and falls back to OCR.
	ModeRegionFallback Mode = "region-fallback"
	// ModeFrameBarcode tries barcodes on the whole frame and falls back to OCR on it.
	ModeFrameBarcode Mode = "frame-barcode"
)

// ParseMode validates a configured mode. Empty selects ModeRegionOCR.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeRegionOCR, nil
	case ModeRegionOCR, ModeRegionFallback, ModeFrameBarcode:
		return m, nil
	default:
		return "", fmt.Errorf("unknown decode mode %q (want %s, %s or %s)",
			s, ModeRegionOCR, ModeRegionFallback, ModeFrameBarcode)
	}
}

// PerRegion reports whether the mode decodes each detection separately.
func (m Mode) PerRegion() bool { return m != ModeFrameBarcode }

// Symbol is one decoded barcode.
type Symbol struct {
	Symbology string
	Payload   string
}

// Result is the content found in one image by one method.
type Result struct {
	Method    Method
	Symbology string
	Content   string
}

// TextDecoder extracts text from an image. It returns "" when nothing is found
// or the engine fails.
type TextDecoder interface {
	DecodeText(ctx context.Context, img image.Image) string
}

// BarcodeDecoder finds barcodes in an image. Zero symbols means none were found.
type BarcodeDecoder interface {
	DecodeBarcodes(ctx context.Context, img image.Image) []Symbol
}

// TextFunc adapts a function to TextDecoder.
type TextFunc func(ctx context.Context, img image.Image) string

// DecodeText calls f.
func (f TextFunc) DecodeText(ctx context.Context, img image.Image) string { return f(ctx, img) }

// BarcodeFunc adapts a function to BarcodeDecoder.
type BarcodeFunc func(ctx context.Context, img image.Image) []Symbol

// DecodeBarcodes calls f.
func (f BarcodeFunc) DecodeBarcodes(ctx context.Context, img image.Image) []Symbol { return f(ctx, img) }

// usable reports whether img has pixels to decode.
func usable(img image.Image) bool {
	return img != nil && !img.Bounds().Empty()
}
