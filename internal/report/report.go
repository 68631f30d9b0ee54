// Package report renders block-usage charts for a completed placement run.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
	"github.com/banshee-data/cloudblocks/internal/fsutil"
	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/palette"
	"github.com/banshee-data/cloudblocks/internal/placement"
	"github.com/banshee-data/cloudblocks/internal/security"
)

// ErrEmptyReport is returned when a run placed no blocks.
var ErrEmptyReport = errors.New("report: no placed blocks")

// Usage is the placement count of a single block.
type Usage struct {
	Block string
	Count int
	RGB   colorspace.RGB
}

// Hex returns the block color as #rrggbb.
func (u Usage) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", u.RGB.R, u.RGB.G, u.RGB.B)
}

// SortUsage orders block counts by count descending, then block name.
// Blocks missing from pal are drawn grey.
func SortUsage(counts map[string]int, pal *palette.Palette) []Usage {
	out := make([]Usage, 0, len(counts))
	for name, n := range counts {
		u := Usage{Block: name, Count: n, RGB: colorspace.RGB{R: 128, G: 128, B: 128}}
		if pal != nil {
			if info, ok := pal.Lookup(name); ok {
				u.RGB = info.RGB
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Block < out[j].Block
	})
	return out
}

// Files lists the paths a Writer produced.
type Files struct {
	PNG  string
	HTML string
}

// Writer renders run reports into Dir.
type Writer struct {
	FS  fsutil.FileSystem
	Dir string
	// Validate, when set, is called for every output path before it is
	// created. security.ValidatePathWithinDirectory is the usual choice
	// on a real filesystem.
	Validate func(path, dir string) error
}

// Write renders the usage PNG and the HTML dashboard for sum.
func (w *Writer) Write(sum placement.Summary, pal *palette.Palette, source string) (Files, error) {
	usage := SortUsage(sum.Usage, pal)
	if len(usage) == 0 {
		return Files{}, ErrEmptyReport
	}
	if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create report dir: %w", err)
	}

	pngPath, err := w.path(sum.RunID + "-usage.png")
	if err != nil {
		return Files{}, err
	}
	htmlPath, err := w.path(sum.RunID + "-report.html")
	if err != nil {
		return Files{}, err
	}

	p, err := UsagePlot(usage, fmt.Sprintf("Block usage %s", source))
	if err != nil {
		return Files{}, err
	}
	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return Files{}, fmt.Errorf("failed to render usage plot: %w", err)
	}
	if _, err := fsutil.WriteTo(w.FS, pngPath, wt); err != nil {
		return Files{}, err
	}

	page := Dashboard(sum, usage, source)
	f, err := w.FS.Create(htmlPath)
	if err != nil {
		return Files{}, fmt.Errorf("create %s: %w", htmlPath, err)
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return Files{}, fmt.Errorf("failed to render dashboard: %w", err)
	}
	if err := f.Close(); err != nil {
		return Files{}, fmt.Errorf("close %s: %w", htmlPath, err)
	}

	monitoring.Logf("report: wrote %s and %s", pngPath, htmlPath)
	return Files{PNG: pngPath, HTML: htmlPath}, nil
}

func (w *Writer) path(name string) (string, error) {
	p, err := security.JoinWithin(w.Dir, name)
	if err != nil {
		return "", err
	}
	if w.Validate != nil {
		if err := w.Validate(p, w.Dir); err != nil {
			return "", err
		}
	}
	return p, nil
}

// UsagePlot builds a bar chart with one bar per block, each bar drawn in
// its block's own color.
func UsagePlot(usage []Usage, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Blocks placed"

	names := make([]string, len(usage))
	for i, u := range usage {
		names[i] = u.Block
		bars, err := plotter.NewBarChart(plotter.Values{float64(u.Count)}, vg.Points(14))
		if err != nil {
			return nil, fmt.Errorf("failed to build bar for %s: %w", u.Block, err)
		}
		bars.XMin = float64(i)
		bars.Color = color.RGBA{R: u.RGB.R, G: u.RGB.G, B: u.RGB.B, A: 255}
		bars.LineStyle.Width = vg.Points(0.5)
		p.Add(bars)
	}
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

// Dashboard builds the HTML page: block usage plus run outcome counts.
func Dashboard(sum placement.Summary, usage []Usage, source string) *components.Page {
	names := make([]string, len(usage))
	data := make([]opts.BarData, len(usage))
	for i, u := range usage {
		names[i] = u.Block
		data[i] = opts.BarData{Name: u.Block, Value: u.Count, ItemStyle: &opts.ItemStyle{Color: u.Hex()}}
	}

	usageBar := charts.NewBar()
	usageBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "cloudblocks run " + sum.RunID, Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Block usage", Subtitle: fmt.Sprintf("source=%s run=%s", source, sum.RunID)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	usageBar.SetXAxis(names).
		AddSeries("blocks", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	outcomes := charts.NewBar()
	outcomes.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Outcomes", Subtitle: fmt.Sprintf("state=%s duration=%s", sum.State, sum.Duration)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	outcomes.SetXAxis([]string{"Planned", "Placed", "Failed", "Skipped"}).
		AddSeries("commands", []opts.BarData{
			{Value: sum.Planned},
			{Value: sum.Placed},
			{Value: sum.Failed},
			{Value: sum.Skipped},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.SetPageTitle("cloudblocks run " + sum.RunID)
	page.AddCharts(usageBar, outcomes)
	return page
}
