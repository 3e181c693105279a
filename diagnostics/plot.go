package diagnostics

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is one labelled line of a figure
type Curve struct {
	Label  string
	X, Y   []float64
	Dashed bool
}

// CorrelationCurve places r(m) at separations m*spacing
func CorrelationCurve(label string, r []float64, spacing float64) (c Curve) {
	c = Curve{Label: label, X: make([]float64, len(r)), Y: r}
	for m := range r {
		c.X[m] = float64(m) * spacing
	}
	return
}

// SavePlot writes the curves to fileName, the format follows the extension (png, svg, pdf)
func SavePlot(fileName, title, xLabel, yLabel string, curves ...Curve) (err error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	for i, c := range curves {
		if len(c.X) != len(c.Y) {
			return fmt.Errorf("curve %q has %d x and %d y values", c.Label, len(c.X), len(c.Y))
		}
		pts := make(plotter.XYs, len(c.X))
		for j := range c.X {
			pts[j].X, pts[j].Y = c.X[j], c.Y[j]
		}
		var line *plotter.Line
		if line, err = plotter.NewLine(pts); err != nil {
			return
		}
		line.Color = plotutil.Color(i)
		if c.Dashed {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		p.Legend.Add(c.Label, line)
	}
	p.Legend.Top = true
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}

// SeriesCurves turns named per step series into curves over the step index, ordered by name
func SeriesCurves(steps []float64, series map[string][]float64) (curves []Curve) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		curves = append(curves, Curve{Label: name, X: steps, Y: series[name]})
	}
	return
}
