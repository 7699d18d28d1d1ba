// Package render draws detections onto frames for the display surface.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Default display surface size.
const (
	DisplayWidth  = 1100
	DisplayHeight = 580
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Magenta is the default box and caption color.
var Magenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// Style controls how detections are drawn.
type Style struct {
	Color       color.Color
	TextColor   color.Color
	LineWidth   float64 // full rectangle outline
	CornerWidth float64 // emphasized corners
	CornerLen   float64 // max corner arm length, capped at half the box side
	FontSize    float64
	Padding     float64 // caption background padding
	// CaptionMinY keeps captions of boxes at the top edge on screen.
	CaptionMinY int
}

// DefaultStyle draws a thin outline with thick corners and a filled caption.
func DefaultStyle() Style {
	return Style{
		Color:       Magenta,
		TextColor:   color.White,
		LineWidth:   1,
		CornerWidth: 5,
		CornerLen:   30,
		FontSize:    18,
		Padding:     5,
		CaptionMinY: 35,
	}
}

// Annotator draws detections with a fixed style.
type Annotator struct {
	style Style
}

// New returns an Annotator with style.
func New(style Style) *Annotator {
	return &Annotator{style: style}
}

// Annotate returns a copy of img with every detection drawn on it. img is not modified.
func (a *Annotator) Annotate(img image.Image, dets []detector.Detection) *image.RGBA {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: a.style.FontSize}))
	origin := img.Bounds().Min
	for _, d := range dets {
		box := d.Box.Sub(origin)
		a.cornerRect(dc, box)
		a.caption(dc, d.Caption(), max(0, box.Min.X), max(a.style.CaptionMinY, box.Min.Y))
	}
	out, ok := dc.Image().(*image.RGBA)
	if !ok {
		b := dc.Image().Bounds()
		out = image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Set(x, y, dc.Image().At(x, y))
			}
		}
	}
	return out
}

func (a *Annotator) cornerRect(dc *gg.Context, r image.Rectangle) {
	if r.Empty() {
		return
	}
	x1, y1 := float64(r.Min.X), float64(r.Min.Y)
	x2, y2 := float64(r.Max.X), float64(r.Max.Y)

	dc.SetColor(a.style.Color)
	dc.SetLineWidth(a.style.LineWidth)
	dc.DrawRectangle(x1, y1, x2-x1, y2-y1)
	dc.Stroke()

	l := math.Min(a.style.CornerLen, math.Min(x2-x1, y2-y1)/2)
	dc.SetLineWidth(a.style.CornerWidth)
	for _, c := range [][4]float64{
		{x1, y1, 1, 1},
		{x2, y1, -1, 1},
		{x1, y2, 1, -1},
		{x2, y2, -1, -1},
	} {
		x, y, dx, dy := c[0], c[1], c[2], c[3]
		dc.DrawLine(x, y, x+dx*l, y)
		dc.DrawLine(x, y, x, y+dy*l)
		dc.Stroke()
	}
}

// caption draws text on a filled background with its baseline at (x, y).
func (a *Annotator) caption(dc *gg.Context, text string, x, y int) {
	w, h := dc.MeasureString(text)
	p := a.style.Padding
	fx, fy := float64(x), float64(y)

	dc.SetColor(a.style.Color)
	dc.DrawRectangle(fx-p, fy-h-p, w+2*p, h+2*p)
	dc.Fill()

	dc.SetColor(a.style.TextColor)
	dc.DrawString(text, fx, fy)
}

// ForDisplay scales img to the display surface size.
func ForDisplay(img image.Image, width, height int) image.Image {
	return utils.Fit(img, width, height)
}
