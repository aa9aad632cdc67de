// Command meshreport renders pipeline run artifacts for inspection: an HTML
// report of per-step metrics built with ECharts, and optionally a top-down
// preview PNG of a mesh.
//
// Usage:
//
//	meshreport -metrics processed/scan1.metrics.json -out report.html
//	meshreport -preview processed/scan1.ply -out preview.png
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/meshpipe"
)

const maxPreviewPoints = 20000

func main() {
	var (
		metricsPath = flag.String("metrics", "", "metrics JSON file from a pipeline run")
		previewPath = flag.String("preview", "", "mesh file to render as a top-down scatter PNG")
		outPath     = flag.String("out", "", "output file (.html for -metrics, .png for -preview)")
	)
	flag.Parse()

	if *outPath == "" || (*metricsPath == "" && *previewPath == "") {
		fmt.Fprintln(os.Stderr, "usage: meshreport -metrics run.metrics.json -out report.html")
		fmt.Fprintln(os.Stderr, "       meshreport -preview scan.ply -out preview.png")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *metricsPath != "" {
		if err := renderReport(*metricsPath, *outPath); err != nil {
			log.Fatalf("Failed to render metrics report: %v", err)
		}
		log.Printf("Wrote metrics report to %s", *outPath)
	}
	if *previewPath != "" {
		if err := renderPreview(*previewPath, *outPath); err != nil {
			log.Fatalf("Failed to render preview: %v", err)
		}
		log.Printf("Wrote preview to %s", *outPath)
	}
}

// renderReport builds the HTML metrics report: vertex/face counts before and
// after each step, per-step processing time, and the cache hit/miss split
// when the run recorded cache counters.
func renderReport(metricsPath, outPath string) error {
	report, err := meshpipe.ReadRunReport(metricsPath)
	if err != nil {
		return err
	}
	metrics := report.Steps
	if len(metrics) == 0 {
		return fmt.Errorf("no step metrics in %s", metricsPath)
	}

	steps := make([]string, 0, len(metrics))
	for name := range metrics {
		steps = append(steps, name)
	}
	sort.Strings(steps)

	inV := make([]opts.BarData, 0, len(steps))
	outV := make([]opts.BarData, 0, len(steps))
	inF := make([]opts.BarData, 0, len(steps))
	outF := make([]opts.BarData, 0, len(steps))
	times := make([]opts.BarData, 0, len(steps))
	for _, name := range steps {
		m := metrics[name]
		inV = append(inV, opts.BarData{Value: m.InputVertices})
		outV = append(outV, opts.BarData{Value: m.OutputVertices})
		inF = append(inF, opts.BarData{Value: m.InputFaces})
		outF = append(outF, opts.BarData{Value: m.OutputFaces})
		times = append(times, opts.BarData{Value: m.ProcessingTime})
	}

	sizes := charts.NewBar()
	sizes.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pipeline Report", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mesh Size per Step", Subtitle: metricsPath}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	sizes.SetXAxis(steps).
		AddSeries("vertices in", inV).
		AddSeries("vertices out", outV).
		AddSeries("faces in", inF).
		AddSeries("faces out", outF)

	timing := charts.NewBar()
	timing.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Processing Time per Step (s)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	timing.SetXAxis(steps).
		AddSeries("seconds", times,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(sizes, timing)

	if report.Cache != nil {
		pie := charts.NewPie()
		pie.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "500px", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Cache Hits and Misses",
				Subtitle: fmt.Sprintf("%d entries, %.0f%% hit rate", report.Cache.Entries, report.Cache.HitRate*100),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		pie.AddSeries("cache", []opts.PieData{
			{Name: "hits", Value: report.Cache.Hits},
			{Name: "misses", Value: report.Cache.Misses},
		}).SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
		)
		page.AddCharts(pie)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()
	return page.Render(f)
}

// renderPreview draws the mesh's vertices projected onto the XY plane.
func renderPreview(meshPath, outPath string) error {
	m, err := mesh.NewLoader(0).Load(meshPath)
	if err != nil {
		return err
	}

	stride := 1
	if n := m.VertexCount(); n > maxPreviewPoints {
		stride = n/maxPreviewPoints + 1
	}
	pts := make(plotter.XYs, 0, m.VertexCount()/stride+1)
	for i := 0; i < len(m.Vertices); i += stride {
		v := m.Vertices[i]
		pts = append(pts, plotter.XY{X: v[0], Y: v[1]})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d vertices, %d faces)", meshPath, m.VertexCount(), m.FaceCount())
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("building scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 158, B: 137, A: 255}
	p.Add(scatter)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}
