package utils

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// BoxFromCenter builds a box from a center point and a size, the layout YOLO heads emit.
func BoxFromCenter(cx, cy, w, h float64) Box {
	return NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU computes intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	ix1 := math.Max(b.MinX, o.MinX)
	iy1 := math.Max(b.MinY, o.MinY)
	ix2 := math.Min(b.MaxX, o.MaxX)
	iy2 := math.Min(b.MaxY, o.MaxY)
	inter := NewBox(ix1, iy1, math.Max(ix1, ix2), math.Max(iy1, iy2)).Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ToRect converts the box to an integer rectangle clamped to bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

// ClampRect clips rect so x1,y1 >= bounds.Min and x2,y2 <= bounds.Max.
// Inverted or fully outside rectangles collapse to an empty rectangle inside bounds.
func ClampRect(rect, bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(rect.Min.X, bounds.Min.X, bounds.Max.X)
	y1 := clampInt(rect.Min.Y, bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(rect.Max.X, bounds.Min.X, bounds.Max.X)
	y2 := clampInt(rect.Max.Y, bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CropImageRect crops an image using an integer rectangle, intersecting with bounds.
// The result is rebased to the origin.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// Fit resizes img to exactly width x height, the fixed display size of the viewer.
func Fit(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}
