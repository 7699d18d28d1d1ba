package decode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func countingText(text string, calls *int) TextFunc {
	return func(context.Context, image.Image) string {
		*calls++
		return text
	}
}

func fixedSymbols(symbols ...Symbol) BarcodeFunc {
	return func(context.Context, image.Image) []Symbol { return symbols }
}

func TestFallback_BarcodeWins(t *testing.T) {
	ocrCalls := 0
	f := Fallback{
		Barcodes: fixedSymbols(Symbol{"QRCODE", "a"}, Symbol{"EAN13", "4006381333931"}),
		OCR:      countingText("text", &ocrCalls),
	}
	got := f.Decode(context.Background(), region(4, 4))
	assert.Equal(t, []Result{
		{Method: MethodBarcode, Symbology: "QRCODE", Content: "a"},
		{Method: MethodBarcode, Symbology: "EAN13", Content: "4006381333931"},
	}, got)
	assert.Zero(t, ocrCalls, "OCR only runs when no barcode was found")
}

func TestFallback_OCRWhenNoBarcode(t *testing.T) {
	ocrCalls := 0
	f := Fallback{Barcodes: fixedSymbols(), OCR: countingText("LOT 7", &ocrCalls)}
	assert.Equal(t, []Result{{Method: MethodOCR, Content: "LOT 7"}}, f.Decode(context.Background(), region(4, 4)))
	assert.Equal(t, 1, ocrCalls)
}

func TestFallback_NothingFound(t *testing.T) {
	ocrCalls := 0
	f := Fallback{Barcodes: fixedSymbols(), OCR: countingText("", &ocrCalls)}
	assert.Nil(t, f.Decode(context.Background(), region(4, 4)))
	assert.Nil(t, Fallback{}.Decode(context.Background(), region(4, 4)))
}

func TestDecoder_Modes(t *testing.T) {
	ctx := context.Background()
	ocrCalls := 0
	d := Decoder{
		Mode:     ModeRegionOCR,
		OCR:      countingText("TXT", &ocrCalls),
		Barcodes: fixedSymbols(Symbol{"QRCODE", "q"}),
	}

	assert.Equal(t, []Result{{Method: MethodOCR, Content: "TXT"}}, d.Region(ctx, region(4, 4)))

	d.Mode = ModeRegionFallback
	assert.Equal(t, MethodBarcode, d.Region(ctx, region(4, 4))[0].Method)

	d.Mode = ModeFrameBarcode
	assert.Equal(t, "q", d.Frame(ctx, region(4, 4))[0].Content)
	assert.Equal(t, 1, ocrCalls)

	assert.Nil(t, Decoder{}.Region(ctx, region(4, 4)))
}
