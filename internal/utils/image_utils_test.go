package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBox_Orders(t *testing.T) {
	b := NewBox(10, 20, 2, 4)
	assert.Equal(t, Box{MinX: 2, MinY: 4, MaxX: 10, MaxY: 20}, b)
	assert.InDelta(t, 8.0, b.Width(), 1e-9)
	assert.InDelta(t, 16.0, b.Height(), 1e-9)
}

func TestBoxFromCenter(t *testing.T) {
	b := BoxFromCenter(50, 40, 20, 10)
	assert.Equal(t, Box{MinX: 40, MinY: 35, MaxX: 60, MaxY: 45}, b)
}

func TestIoU(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.InDelta(t, 0.0, a.IoU(NewBox(20, 20, 30, 30)), 1e-9)
	// half overlap: inter 50, union 150
	assert.InDelta(t, 1.0/3.0, a.IoU(NewBox(5, 0, 15, 10)), 1e-9)
}

func TestClampRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"inside", image.Rect(10, 10, 20, 20), image.Rect(10, 10, 20, 20)},
		{"negative origin", image.Rectangle{Min: image.Pt(-5, -7), Max: image.Pt(10, 10)}, image.Rect(0, 0, 10, 10)},
		{"past far edge", image.Rect(90, 40, 130, 80), image.Rect(90, 40, 100, 50)},
		{"fully outside", image.Rect(200, 200, 300, 300), image.Rect(100, 50, 100, 50)},
		{"inverted", image.Rectangle{Min: image.Pt(30, 30), Max: image.Pt(10, 10)}, image.Rect(30, 30, 30, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampRect(tt.in, bounds))
		})
	}
}

func TestClampRect_NeverLeavesBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("clamped rectangle lies within frame bounds", prop.ForAll(
		func(w, h, x1, y1, x2, y2 int) bool {
			bounds := image.Rect(0, 0, w, h)
			r := ClampRect(image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}, bounds)
			return r.Min.X >= 0 && r.Min.Y >= 0 && r.Max.X <= w && r.Max.Y <= h &&
				r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
		},
		gen.IntRange(1, 400),
		gen.IntRange(1, 400),
		gen.IntRange(-500, 500),
		gen.IntRange(-500, 500),
		gen.IntRange(-500, 500),
		gen.IntRange(-500, 500),
	))

	properties.TestingRun(t)
}

func TestCropImageRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	img.Set(5, 5, color.RGBA{R: 255, A: 255})

	crop := CropImageRect(img, image.Rect(4, 4, 8, 8))
	assert.Equal(t, image.Rect(0, 0, 4, 4), crop.Bounds())
	r, _, _, _ := crop.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	empty := CropImageRect(img, image.Rect(20, 20, 30, 30))
	assert.True(t, empty.Bounds().Empty())
}

func TestFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	out := Fit(img, 1100, 580)
	assert.Equal(t, 1100, out.Bounds().Dx())
	assert.Equal(t, 580, out.Bounds().Dy())
	assert.Same(t, img, Fit(img, 200, 100).(*image.RGBA))
	assert.Same(t, img, Fit(img, 0, 0).(*image.RGBA))
}

func TestLetterboxImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 640))
	out, lb, err := LetterboxImage(img, 640)
	require.NoError(t, err)
	assert.Equal(t, 640, out.Bounds().Dx())
	assert.Equal(t, 640, out.Bounds().Dy())
	assert.InDelta(t, 0.5, lb.Scale, 1e-9)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 160, lb.PadY)

	// model-space box maps back to frame space
	src := lb.ToSource(NewBox(100, 260, 200, 360))
	assert.InDelta(t, 200.0, src.MinX, 1e-9)
	assert.InDelta(t, 200.0, src.MinY, 1e-9)
	assert.InDelta(t, 400.0, src.MaxX, 1e-9)
	assert.InDelta(t, 400.0, src.MaxY, 1e-9)

	_, _, err = LetterboxImage(nil, 640)
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "letterbox", ipe.Operation)
}

func TestNormalizeImagePooled(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.Set(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})

	data, w, h, err := NormalizeImagePooled(img)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	require.Len(t, data, 6)
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[1], 1e-6)
	assert.InDelta(t, 1.0, data[3], 1e-6)
	assert.InDelta(t, 0.2, data[4], 1e-6)
}
