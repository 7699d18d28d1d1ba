package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test frame sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
)

// CreateTestImage creates a solid image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// GenerateTextImage renders text centered in black on a white image.
func GenerateTextImage(text string, size ImageSize) *image.RGBA {
	img := CreateTestImage(size.Width, size.Height, color.White)
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((size.Width-textWidth)/2, (size.Height+textHeight)/2)
	drawer.DrawString(text)
	return img
}

// EncodeQR renders payload as a QR symbol of roughly size x size pixels,
// including the quiet zone.
func EncodeQR(payload string, size int) (*image.RGBA, error) {
	matrix, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, err
	}
	return toRGBA(matrix), nil
}

// EncodeCode128 renders payload as a Code 128 symbol.
func EncodeCode128(payload string, width, height int) (*image.RGBA, error) {
	matrix, err := oned.NewCode128Writer().Encode(payload, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		return nil, err
	}
	return toRGBA(matrix), nil
}

// QRCode is EncodeQR failing the test on error.
func QRCode(t *testing.T, payload string, size int) image.Image {
	t.Helper()
	img, err := EncodeQR(payload, size)
	require.NoError(t, err, "encode QR payload")
	return img
}

// Code128 is EncodeCode128 failing the test on error.
func Code128(t *testing.T, payload string, width, height int) image.Image {
	t.Helper()
	img, err := EncodeCode128(payload, width, height)
	require.NoError(t, err, "encode Code128 payload")
	return img
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// FrameWith pastes symbol onto a white frame at (x, y).
func FrameWith(symbol image.Image, size ImageSize, x, y int) *image.RGBA {
	frame := CreateTestImage(size.Width, size.Height, color.White)
	r := symbol.Bounds()
	draw.Draw(frame, image.Rect(x, y, x+r.Dx(), y+r.Dy()), symbol, r.Min, draw.Src)
	return frame
}

// SideBySideQR renders each payload as a QR symbol of the given size and
// lays them out left to right on one white frame, vertically centered.
func SideBySideQR(t *testing.T, frame ImageSize, symbolSize int, payloads ...string) *image.RGBA {
	t.Helper()
	out := CreateTestImage(frame.Width, frame.Height, color.White)
	slot := frame.Width / max(len(payloads), 1)
	y := (frame.Height - symbolSize) / 2
	for i, payload := range payloads {
		symbol := QRCode(t, payload, symbolSize)
		x := i*slot + (slot-symbolSize)/2
		r := symbol.Bounds()
		draw.Draw(out, image.Rect(x, y, x+r.Dx(), y+r.Dy()), symbol, r.Min, draw.Src)
	}
	return out
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}
