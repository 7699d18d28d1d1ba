package decode

import (
	"context"
	"image"
)

// Fallback tries barcodes first and runs OCR only when none were found.
type Fallback struct {
	Barcodes BarcodeDecoder
	OCR      TextDecoder
}

// Decode returns one result per barcode, or a single OCR result when no
// barcode was found and OCR produced text. It returns nil when both are empty.
func (f Fallback) Decode(ctx context.Context, img image.Image) []Result {
	if f.Barcodes != nil {
		if symbols := f.Barcodes.DecodeBarcodes(ctx, img); len(symbols) > 0 {
			out := make([]Result, 0, len(symbols))
			for _, s := range symbols {
				out = append(out, Result{Method: MethodBarcode, Symbology: s.Symbology, Content: s.Payload})
			}
			return out
		}
	}
	if f.OCR == nil {
		return nil
	}
	if text := f.OCR.DecodeText(ctx, img); text != "" {
		return []Result{{Method: MethodOCR, Content: text}}
	}
	return nil
}

// Decoder applies a Mode to regions and frames.
type Decoder struct {
	Mode     Mode
	OCR      TextDecoder
	Barcodes BarcodeDecoder
}

// Region decodes one detected region. Every call is exactly one decode attempt;
// the returned results are the non-empty contents it produced.
func (d Decoder) Region(ctx context.Context, img image.Image) []Result {
	switch d.Mode {
	case ModeRegionFallback:
		return Fallback{Barcodes: d.Barcodes, OCR: d.OCR}.Decode(ctx, img)
	default:
		if d.OCR == nil {
			return nil
		}
		if text := d.OCR.DecodeText(ctx, img); text != "" {
			return []Result{{Method: MethodOCR, Content: text}}
		}
		return nil
	}
}

// Frame decodes a whole frame with barcode first and OCR as fallback.
func (d Decoder) Frame(ctx context.Context, img image.Image) []Result {
	return Fallback{Barcodes: d.Barcodes, OCR: d.OCR}.Decode(ctx, img)
}
