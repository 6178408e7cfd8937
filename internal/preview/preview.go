// Package preview renders a geometry overview PNG per simulation so an
// exported bundle can be sanity checked without opening the layout in
// the editor. Polygon groups get distinct colors, ports are marked as
// diamonds.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"sort"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/kqclabs/kqc/internal/manifest"
)

// maxEdge bounds the longest image edge in pixels.
const maxEdge = 800

var (
	background = color.RGBA{R: 0x10, G: 0x14, B: 0x1c, A: 0xff}
	boxOutline = color.RGBA{R: 0x3a, G: 0x41, B: 0x52, A: 0xff}
	portMarker = color.RGBA{R: 0xff, G: 0x45, B: 0x5a, A: 0xff}

	// groupPalette cycles over polygon groups in sorted name order.
	groupPalette = []color.RGBA{
		{R: 0x4c, G: 0x9f, B: 0xff, A: 0xff},
		{R: 0x57, G: 0xc7, B: 0x8a, A: 0xff},
		{R: 0xe5, G: 0xb5, B: 0x4d, A: 0xff},
		{R: 0xb3, G: 0x7e, B: 0xe0, A: 0xff},
		{R: 0x46, G: 0xc3, B: 0xc3, A: 0xff},
	}
)

// Render draws one simulation onto a fresh image. The layout's y axis
// points up, the image's down, so coordinates are flipped.
func Render(sim *manifest.Simulation) (*image.RGBA, error) {
	box := sim.Box
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, fmt.Errorf("preview %s: degenerate bounding box", sim.Name)
	}

	scale := maxEdge / box.Width()
	if box.Height() > box.Width() {
		scale = maxEdge / box.Height()
	}
	w := int(box.Width()*scale + 0.5)
	h := int(box.Height()*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	toPixel := func(p manifest.Point) (float64, float64) {
		return (p[0] - box.Min[0]) * scale, (box.Max[1] - p[1]) * scale
	}

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)

	groups := make([]string, 0, len(sim.Polygons))
	for name := range sim.Polygons {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	for i, name := range groups {
		scanner.SetColor(groupPalette[i%len(groupPalette)])
		for _, polygon := range sim.Polygons[name] {
			if len(polygon) < 3 {
				continue
			}
			x, y := toPixel(polygon[0])
			filler.Start(rasterx.ToFixedP(x, y))
			for _, p := range polygon[1:] {
				x, y := toPixel(p)
				filler.Line(rasterx.ToFixedP(x, y))
			}
			filler.Stop(true)
		}
		filler.Draw()
		filler.Clear()
	}

	drawFrame(img, boxOutline)

	for _, port := range sim.Ports {
		x, y := toPixel(port.SignalLocation)
		drawDiamond(filler, scanner, x, y)
	}

	return img, nil
}

// WritePNG renders the simulation and writes it to path.
func WritePNG(path string, sim *manifest.Simulation) error {
	img, err := Render(sim)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview %s: %w", sim.Name, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode preview %s: %w", sim.Name, err)
	}
	return f.Close()
}

// drawFrame traces the simulation box as a one pixel border.
func drawFrame(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.SetRGBA(x, b.Min.Y, c)
		img.SetRGBA(x, b.Max.Y-1, c)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.SetRGBA(b.Min.X, y, c)
		img.SetRGBA(b.Max.X-1, y, c)
	}
}

func drawDiamond(filler *rasterx.Filler, scanner rasterx.Scanner, x, y float64) {
	r := fixed.I(5)
	c := rasterx.ToFixedP(x, y)
	scanner.SetColor(portMarker)
	filler.Start(fixed.Point26_6{X: c.X, Y: c.Y - r})
	filler.Line(fixed.Point26_6{X: c.X + r, Y: c.Y})
	filler.Line(fixed.Point26_6{X: c.X, Y: c.Y + r})
	filler.Line(fixed.Point26_6{X: c.X - r, Y: c.Y})
	filler.Stop(true)
	filler.Draw()
	filler.Clear()
}
