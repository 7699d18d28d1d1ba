package decode

import (
	"context"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/labelscan/internal/barcode"
)

// Barcodes is the barcode variant of the content decoder.
type Barcodes struct {
	backend barcode.Backend
	opts    barcode.Options
	enhance bool
}

// NewBarcodes wraps backend. When enhance is set and the raw image yields no
// symbol, the enhanced image is tried once more.
func NewBarcodes(backend barcode.Backend, opts barcode.Options, enhance bool) *Barcodes {
	if backend == nil {
		backend = barcode.NewBackend()
	}
	return &Barcodes{backend: backend, opts: opts, enhance: enhance}
}

// DecodeBarcodes returns every symbol found in img. Backend errors and panics
// are logged and reported as no symbols.
func (b *Barcodes) DecodeBarcodes(ctx context.Context, img image.Image) (out []Symbol) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Barcode backend panicked", "panic", r)
			out = nil
		}
	}()

	if !usable(img) {
		return nil
	}
	out = b.decode(ctx, img)
	if len(out) == 0 && b.enhance {
		out = b.decode(ctx, Enhance(img))
	}
	return out
}

func (b *Barcodes) decode(ctx context.Context, img image.Image) []Symbol {
	results, err := b.backend.Decode(ctx, img, b.opts)
	if err != nil {
		slog.Debug("Barcode decode failed", "error", err)
		return nil
	}
	out := make([]Symbol, 0, len(results))
	for _, r := range results {
		if r.Value == "" {
			continue
		}
		out = append(out, Symbol{Symbology: r.Type.String(), Payload: r.Value})
	}
	return out
}
