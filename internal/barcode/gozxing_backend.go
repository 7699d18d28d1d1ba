package barcode

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type gozxingBackend struct{}

// Decode runs every enabled reader over img and merges distinct results.
// Each reader is wrapped so that several symbols of one format are all found.
func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) (out []Result, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	// Apply ROI if requested and valid
	if !opts.ROI.Empty() {
		if roiImg, ok := subImage(img, opts.ROI); ok {
			img = roiImg
		}
	}

	// gozxing panics on some degenerate inputs; treat that as nothing found.
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Barcode reader panicked", "panic", r)
			out, err = nil, nil
		}
	}()

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, fmt.Errorf("barcode: binarize: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	seen := make(map[string]struct{})
	for _, f := range enabledFormats(opts.Formats) {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		reader := newReader(f)
		if reader == nil {
			continue
		}
		results, derr := multi.NewGenericMultipleBarcodeReader(reader).DecodeMultiple(bitmap, hints)
		if derr != nil {
			continue
		}
		for _, r := range results {
			if r == nil {
				continue
			}
			format := mapFormatFromZXing(r.GetBarcodeFormat())
			key := format.String() + "\x00" + r.GetText()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			points := resultPoints(r)
			out = append(out, Result{
				Type:   format,
				Value:  r.GetText(),
				Points: points,
				BBox:   rectFromPoints(points),
			})
		}
	}
	return out, nil
}

func enabledFormats(formats []Format) []Format {
	if len(formats) == 0 {
		return AllFormats()
	}
	return formats
}

// newReader returns a fresh single-format reader, or nil for a format gozxing
// cannot read. Readers keep per-decode state,
// so they are not shared between calls.
func newReader(f Format) gozxing.Reader {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case FormatAztec:
		return aztec.NewAztecReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatEAN8:
		return oned.NewEAN8Reader()
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatUPCA:
		return oned.NewUPCAReader()
	case FormatUPCE:
		return oned.NewUPCEReader()
	case FormatITF:
		return oned.NewITFReader()
	case FormatCodabar:
		return oned.NewCodaBarReader()
	default:
		return nil
	}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}

func resultPoints(r *gozxing.Result) []Point {
	pts := r.GetResultPoints()
	if len(pts) == 0 {
		return nil
	}
	points := make([]Point, 0, len(pts))
	for _, p := range pts {
		if p == nil {
			continue
		}
		points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
	}
	return points
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// subImage returns the ROI of img, copying when the image cannot slice itself.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	dst := image.NewRGBA(image.Rect(0, 0, rb.Dx(), rb.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rb.Min, draw.Src)
	return dst, true
}
