package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var loadSVGFont = sync.OnceValues(chart.GetDefaultFont)

// Placeholder returns an image of the renderer's size carrying msg in
// place of a chart.
func (r *Renderer) Placeholder(msg string) ([]byte, error) {
	if r.Format == SVG {
		return r.svgPlaceholder(msg)
	}
	return r.pngPlaceholder(msg)
}

func (r *Renderer) pngPlaceholder(msg string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 248, G: 248, B: 248, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.RGBA{R: 90, G: 90, B: 90, A: 255}), Face: face}
	tw := dr.MeasureString(msg).Ceil()
	x := max((r.Width-tw)/2, 4)
	y := (r.Height + face.Metrics().Ascent.Ceil()) / 2
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(msg)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) svgPlaceholder(msg string) ([]byte, error) {
	f, err := loadSVGFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	cv, err := chart.SVG(r.Width, r.Height)
	if err != nil {
		return nil, err
	}
	cv.SetFont(f)
	cv.SetFontSize(12)
	cv.SetFontColor(drawing.ColorFromHex("5A5A5A"))
	box := cv.MeasureText(msg)
	cv.Text(msg, max((r.Width-box.Width())/2, 4), (r.Height+box.Height())/2)

	var buf bytes.Buffer
	if err := cv.Save(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
