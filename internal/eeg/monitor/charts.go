package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/synapse-data/gaze.report/internal/httputil"
)

// handleFeatureChart renders an HTML line chart of the retained feature
// history using go-echarts. Debugging-only endpoint, no auth.
// Query params:
//   - metric (optional; max_coeff|amplitude|auc|velocity|energy, default
//     max_coeff)
//   - points (optional; tail length, default all retained)
func (ws *WebServer) handleFeatureChart(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "max_coeff"
	}
	pick, ok := metricPickers[metric]
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown metric %q", metric))
		return
	}

	history := ws.History()
	if n := r.URL.Query().Get("points"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 && v < len(history) {
			history = history[len(history)-v:]
		}
	}
	if len(history) == 0 {
		httputil.NotFound(w, "no feature history yet")
		return
	}

	x := make([]string, len(history))
	y1 := make([]opts.LineData, len(history))
	y2 := make([]opts.LineData, len(history))
	for i, pt := range history {
		x[i] = pt.TS.Format("15:04:05.000")
		a, b := pick(pt)
		y1[i] = opts.LineData{Value: a}
		y2[i] = opts.LineData{Value: b}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gaze Features", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Feature history", Subtitle: fmt.Sprintf("metric=%s points=%d", metric, len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: metric}),
	)
	line.SetXAxis(x).
		AddSeries("Y1 (horizontal)", y1).
		AddSeries("Y2 (vertical)", y2)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var metricPickers = map[string]func(FeaturePoint) (float64, float64){
	"max_coeff": func(p FeaturePoint) (float64, float64) { return p.Y1.MaxCoeff, p.Y2.MaxCoeff },
	"amplitude": func(p FeaturePoint) (float64, float64) { return p.Y1.Amplitude, p.Y2.Amplitude },
	"auc":       func(p FeaturePoint) (float64, float64) { return p.Y1.AUC, p.Y2.AUC },
	"velocity":  func(p FeaturePoint) (float64, float64) { return p.Y1.Velocity, p.Y2.Velocity },
	"energy":    func(p FeaturePoint) (float64, float64) { return p.Y1.Energy, p.Y2.Energy },
}
