package decode

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	gaussian3x3 = [9]float64{1, 2, 1, 2, 4, 2, 1, 2, 1}
	sharpen3x3  = [9]float64{-1, -1, -1, -1, 9, -1, -1, -1, -1}
)

const (
	thresholdBlock = 11
	thresholdC     = 2
)

// Enhance prepares a low-contrast label for decoding: grayscale, 3x3 Gaussian
// blur, sharpening, then an adaptive Gaussian threshold over an 11px
// neighbourhood with offset 2. The result is black text on white.
func Enhance(img image.Image) image.Image {
	if !usable(img) {
		return img
	}
	gray := imaging.Grayscale(img)
	blurred := imaging.Convolve3x3(gray, gaussian3x3, &imaging.ConvolveOptions{Normalize: true})
	sharp := imaging.Convolve3x3(blurred, sharpen3x3, nil)
	return adaptiveThreshold(sharp, thresholdBlock, thresholdC)
}

// adaptiveThreshold compares every pixel with the Gaussian-weighted mean of its
// block x block neighbourhood; pixels brighter than mean-c become white.
func adaptiveThreshold(src *image.NRGBA, block int, c float64) *image.Gray {
	// sigma OpenCV derives for a kernel of this size
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	mean := imaging.Blur(src, sigma)

	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			j := mean.PixOffset(mean.Bounds().Min.X+x, mean.Bounds().Min.Y+y)
			v := color.Gray{}
			if float64(src.Pix[i]) > float64(mean.Pix[j])-c {
				v.Y = 255
			}
			out.SetGray(x, y, v)
		}
	}
	return out
}
