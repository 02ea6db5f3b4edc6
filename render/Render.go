// Package render draws solutions and training curves to PNG images
package render

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/vrprl/stop"
	"gonum.org/v1/gonum/floats"
)

const (
	Width  = 800
	Height = 600
	margin = 40.0
)

// palette cycles over the tours of a solution
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// viewport maps problem coordinates onto the image, preserving the
// aspect ratio
type viewport struct {
	minX, minY float64
	scale      float64
}

func newViewport(xs, ys []float64) viewport {
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	spanX := math.Max(maxX-minX, 1e-9)
	spanY := math.Max(maxY-minY, 1e-9)
	scale := math.Min((Width-2*margin)/spanX, (Height-2*margin)/spanY)

	return viewport{minX: minX, minY: minY, scale: scale}
}

// pixel returns the image coordinates of (x, y). Image y grows downward.
func (v viewport) pixel(x, y float64) (float64, float64) {
	return margin + (x-v.minX)*v.scale, Height - margin - (y-v.minY)*v.scale
}

// Tours draws the stops of reg and the tours of a solution and saves
// the image to filename
func Tours(reg *stop.Registry, tours []stop.Tour, filename string) error {
	n := reg.Len()
	xs, ys := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		s := reg.Stop(i)
		xs[i], ys[i] = s.X, s.Y
	}
	v := newViewport(xs, ys)

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for t, tour := range tours {
		if len(tour) < 2 {
			continue
		}
		dc.ClearPath()
		x, y := v.pixel(xs[tour[0]], ys[tour[0]])
		dc.MoveTo(x, y)
		for _, i := range tour[1:] {
			x, y = v.pixel(xs[i], ys[i])
			dc.LineTo(x, y)
		}
		dc.SetHexColor(palette[t%len(palette)])
		dc.SetLineWidth(2.0)
		dc.Stroke()
	}

	dc.SetRGB(0.2, 0.2, 0.2)
	for i := 0; i < n; i++ {
		if i == reg.DepotIndex() {
			continue
		}
		x, y := v.pixel(xs[i], ys[i])
		dc.DrawCircle(x, y, 3)
		dc.Fill()
	}

	x, y := v.pixel(xs[reg.DepotIndex()], ys[reg.DepotIndex()])
	dc.SetRGB(0.8, 0, 0)
	dc.DrawRectangle(x-6, y-6, 12, 12)
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("tours: %d  distance: %.2f", len(tours),
		reg.TotalDistance(tours)), margin, margin/2)

	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("render tours: %w", err)
	}
	return nil
}

// Training draws the cost of every episode and its moving average and
// saves the image to filename
func Training(costs, smoothed []float64, filename string) error {
	if len(costs) == 0 {
		return fmt.Errorf("render training: no episodes")
	}

	lo, hi := floats.Min(costs), floats.Max(costs)
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}
	stepX := (Width - 2*margin) / math.Max(float64(len(costs)-1), 1)
	pixel := func(i int, c float64) (float64, float64) {
		return margin + float64(i)*stepX,
			Height - margin - (c-lo)/(hi-lo)*(Height-2*margin)
	}

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1.0)
	dc.DrawLine(margin, Height-margin, Width-margin, Height-margin)
	dc.DrawLine(margin, margin, margin, Height-margin)
	dc.Stroke()

	line := func(values []float64) {
		dc.ClearPath()
		for i, c := range values {
			x, y := pixel(i, c)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	dc.SetRGBA(0.12, 0.47, 0.71, 0.4)
	line(costs)
	if len(smoothed) > 0 {
		dc.SetRGB(0.84, 0.15, 0.16)
		dc.SetLineWidth(2.0)
		line(smoothed)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%.2f", hi), 2, margin)
	dc.DrawString(fmt.Sprintf("%.2f", lo), 2, Height-margin)
	dc.DrawString(fmt.Sprintf("episodes: %d", len(costs)), Width/2,
		Height-margin/3)

	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("render training: %w", err)
	}
	return nil
}
