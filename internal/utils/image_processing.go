package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/labelscan/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// LetterboxColor is the padding gray used by YOLO exports.
var LetterboxColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox describes how a frame was placed into a square model input.
type Letterbox struct {
	Scale float64
	PadX  int
	PadY  int
	Size  int
}

// ToSource maps a box in model input coordinates back to frame coordinates.
func (l Letterbox) ToSource(b Box) Box {
	if l.Scale == 0 {
		return b
	}
	px, py := float64(l.PadX), float64(l.PadY)
	return NewBox(
		(b.MinX-px)/l.Scale, (b.MinY-py)/l.Scale,
		(b.MaxX-px)/l.Scale, (b.MaxY-py)/l.Scale,
	)
}

// LetterboxImage scales img to fit a size x size canvas keeping the aspect ratio
// and centers it on gray padding.
func LetterboxImage(img image.Image, size int) (*image.NRGBA, Letterbox, error) {
	if img == nil {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("invalid size %d", size)}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("empty image")}
	}

	scale := float64(size) / float64(w)
	if s := float64(size) / float64(h); s < scale {
		scale = s
	}
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	padX := (size - nw) / 2
	padY := (size - nh) / 2
	canvas := imaging.New(size, size, LetterboxColor)
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, Letterbox{Scale: scale, PadX: padX, PadY: padY, Size: size}, nil
}

// NormalizeImagePooled converts img to an NCHW float32 tensor in [0,1] using a pooled
// buffer. The caller returns the buffer via mempool.PutFloat32.
func NormalizeImagePooled(img *image.NRGBA) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	plane := width * height
	data := mempool.GetFloat32(3 * plane)
	for y := range height {
		row := img.Pix[y*img.Stride:]
		for x := range width {
			i := x * 4
			idx := y*width + x
			data[idx] = float32(row[i]) / 255.0
			data[plane+idx] = float32(row[i+1]) / 255.0
			data[2*plane+idx] = float32(row[i+2]) / 255.0
		}
	}
	return data, width, height, nil
}
