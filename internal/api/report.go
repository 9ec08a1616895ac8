package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/atelier-data/bodyfit/internal/httputil"
	"github.com/atelier-data/bodyfit/internal/store"
)

// RenderReport renders a stored run as a standalone HTML measurement
// report: the tape measurements against the recommended gown size, and
// the fit confidence as a gauge. Shared by the report endpoint and the
// report CLI command.
func RenderReport(run *store.Run) ([]byte, error) {
	if run.Result == nil {
		return nil, fmt.Errorf("run %s has no stored result", run.ID)
	}
	res := run.Result

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fit report", Width: "700px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Measurements vs gown size",
			Subtitle: fmt.Sprintf("run %s / %s / US %d", run.ID, res.Classification.Type, res.Size.US),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cm"}),
	)
	bar.SetXAxis([]string{"bust", "waist", "hips"}).
		AddSeries("body", []opts.BarData{
			{Value: round1(res.Measurements.BustCM)},
			{Value: round1(res.Measurements.WaistCM)},
			{Value: round1(res.Measurements.HipsCM)},
		}).
		AddSeries(fmt.Sprintf("US %d", res.Size.US), []opts.BarData{
			{Value: round1(res.Size.BustCM)},
			{Value: round1(res.Size.WaistCM)},
			{Value: round1(res.Size.HipsCM)},
		})

	gauge := charts.NewGauge()
	gauge.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Fit confidence",
			Subtitle: fmt.Sprintf("residual %.1f mm, flags %v", run.ResidualMM, run.Flags),
		}),
	)
	gauge.AddSeries("confidence", []opts.GaugeData{
		{Name: "confidence", Value: round1(run.Confidence * 100)},
	})

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Fit report %s", run.ID))
	page.AddCharts(bar, gauge)

	if len(res.Stages) > 0 {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Stage timing",
				Subtitle: fmt.Sprintf("%d ICP + %d shape iterations", res.Align.Iterations, res.ShapeIterations),
			}),
			charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
		)
		names := make([]string, len(res.Stages))
		data := make([]opts.LineData, len(res.Stages))
		for i, st := range res.Stages {
			names[i] = st.Stage
			data[i] = opts.LineData{Value: round1(st.Millis)}
		}
		line.SetXAxis(names).AddSeries("wall time", data)
		page.AddCharts(line)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) reportFit(w http.ResponseWriter, id string) {
	run, err := s.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	doc, err := RenderReport(run)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(doc)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
