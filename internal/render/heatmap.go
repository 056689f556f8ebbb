package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

// HeatmapTitle is the caption drawn above the correlation heatmap.
const HeatmapTitle = "Correlation Matrix between Weather Attributes and Crop Yield"

const (
	heatmapWidth  = 8 * vg.Inch
	heatmapHeight = 5 * vg.Inch
	paletteSize   = 255
)

// Heatmap draws correlation matrices as annotated PNG images.
type Heatmap struct{}

// NewHeatmap returns a heatmap renderer.
func NewHeatmap() *Heatmap { return &Heatmap{} }

// Heatmap renders corr on a diverging blue-red scale fixed to [-1, 1]. Each
// cell is annotated with its coefficient to two decimals; undefined cells
// are grey and left blank.
func (h *Heatmap) Heatmap(corr report.Correlation) ([]byte, error) {
	n := len(corr.Columns)
	if n == 0 {
		return nil, fmt.Errorf("heatmap: empty correlation matrix")
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)

	p := plot.New()
	p.Title.Text = HeatmapTitle
	p.Title.TextStyle.Font.Size = vg.Points(13)

	grid := corrGrid{corr: corr}
	hm := plotter.NewHeatMap(grid, cmap.Palette(paletteSize))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 0xd0}
	p.Add(hm)

	labels, err := cellLabels(grid)
	if err != nil {
		return nil, fmt.Errorf("heatmap labels: %w", err)
	}
	if labels != nil {
		p.Add(labels)
	}

	xTicks := make(plot.ConstantTicks, n)
	yTicks := make(plot.ConstantTicks, n)
	for i, col := range corr.Columns {
		xTicks[i] = plot.Tick{Value: float64(i), Label: col}
		yTicks[i] = plot.Tick{Value: grid.Y(n - 1 - i), Label: col}
	}
	p.X.Tick.Marker = xTicks
	p.Y.Tick.Marker = yTicks
	p.X.Tick.Label.Rotation = math.Pi / 8
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Padding, p.Y.Padding = 0, 0

	wt, err := p.WriterTo(heatmapWidth, heatmapHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("heatmap canvas: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("heatmap encode: %w", err)
	}
	return buf.Bytes(), nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Matrix row 0 is
// drawn at the top.
type corrGrid struct {
	corr report.Correlation
}

func (g corrGrid) Dims() (c, r int) {
	n := len(g.corr.Columns)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := len(g.corr.Columns)
	return g.corr.At(n-1-r, c)
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

func cellLabels(g corrGrid) (*plotter.Labels, error) {
	cols, rows := g.Dims()
	var data plotter.XYLabels
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := g.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			data.XYs = append(data.XYs, plotter.XY{X: g.X(c), Y: g.Y(r)})
			data.Labels = append(data.Labels, fmt.Sprintf("%.2f", v))
		}
	}
	if len(data.Labels) == 0 {
		return nil, nil
	}

	labels, err := plotter.NewLabels(data)
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	return labels, nil
}
