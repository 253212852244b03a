package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/synapse-data/gaze.report/internal/security"
	"github.com/synapse-data/gaze.report/internal/units"
)

// ScaloPlotter renders scalogram surfaces and feature time series to PNG
// files for offline analysis runs.
type ScaloPlotter struct {
	outputDir  string
	sampleRate float64
}

// NewScaloPlotter creates a plotter writing into outputDir. A zero sample
// rate takes the headset default.
func NewScaloPlotter(outputDir string, sampleRate float64) *ScaloPlotter {
	if sampleRate <= 0 {
		sampleRate = units.DefaultSampleRate
	}
	return &ScaloPlotter{outputDir: outputDir, sampleRate: sampleRate}
}

// scaloGrid adapts a scalogram surface (rows = scales, columns = time) to
// the heat map grid interface.
type scaloGrid struct {
	surface [][]float64
	dt      float64
}

func (g scaloGrid) Dims() (int, int)   { return len(g.surface[0]), len(g.surface) }
func (g scaloGrid) Z(c, r int) float64 { return g.surface[r][c] }
func (g scaloGrid) X(c int) float64    { return float64(c) * g.dt }
func (g scaloGrid) Y(r int) float64    { return float64(r + 1) }

// PlotScalogram writes a heat map of the surface (rows indexed by wavelet
// scale, columns by sample time) and returns the file path.
func (sp *ScaloPlotter) PlotScalogram(name string, surface [][]float64) (string, error) {
	if len(surface) == 0 || len(surface[0]) == 0 {
		return "", fmt.Errorf("empty scalogram surface")
	}
	name = security.SanitizeFilename(name)
	if err := os.MkdirAll(sp.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scalogram - %s", name)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Scale"

	grid := scaloGrid{surface: surface, dt: 1 / sp.sampleRate}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(hm)

	file := filepath.Join(sp.outputDir, fmt.Sprintf("%s_scalogram.png", name))
	if err := p.Save(10*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save scalogram: %w", err)
	}
	return file, nil
}

// PlotFeatureSeries writes one line plot per feature metric for the given
// history and returns the number of plots generated.
func (sp *ScaloPlotter) PlotFeatureSeries(name string, history []FeaturePoint) (int, error) {
	if len(history) == 0 {
		return 0, nil
	}
	name = security.SanitizeFilename(name)
	if err := os.MkdirAll(sp.outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	count := 0
	for metric, pick := range metricPickers {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - %s", name, metric)
		p.X.Label.Text = "Tick"
		p.Y.Label.Text = metric

		y1Pts := make(plotter.XYs, len(history))
		y2Pts := make(plotter.XYs, len(history))
		for i, pt := range history {
			a, b := pick(pt)
			y1Pts[i] = plotter.XY{X: float64(i), Y: a}
			y2Pts[i] = plotter.XY{X: float64(i), Y: b}
		}

		y1Line, err := plotter.NewLine(y1Pts)
		if err != nil {
			return count, fmt.Errorf("%s: %w", metric, err)
		}
		y1Line.Width = vg.Points(1)
		y2Line, err := plotter.NewLine(y2Pts)
		if err != nil {
			return count, fmt.Errorf("%s: %w", metric, err)
		}
		y2Line.Width = vg.Points(1)
		y2Line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

		p.Add(y1Line, y2Line)
		p.Legend.Add("Y1", y1Line)
		p.Legend.Add("Y2", y2Line)

		file := filepath.Join(sp.outputDir, fmt.Sprintf("%s_%s.png", name, metric))
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save %s: %w", metric, err)
		}
		count++
	}
	return count, nil
}
