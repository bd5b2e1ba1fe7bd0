package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"raceline/environment/racing"
	"raceline/environment/track"
	"raceline/experiment/tracker"
)

// writeCurves renders reward, steps, and loss training curves as PNGs
func writeCurves(dir string, episodes []tracker.EpisodeStats) error {
	curves := []struct {
		name  string
		value func(tracker.EpisodeStats) float64
	}{
		{"reward", func(e tracker.EpisodeStats) float64 { return e.Reward }},
		{"steps", func(e tracker.EpisodeStats) float64 { return float64(e.Steps) }},
		{"loss", func(e tracker.EpisodeStats) float64 { return e.MeanLoss }},
	}

	for _, curve := range curves {
		pts := make(plotter.XYs, len(episodes))
		for i, e := range episodes {
			pts[i] = plotter.XY{X: float64(e.Episode), Y: curve.value(e)}
		}

		p := plot.New()
		p.Title.Text = curve.name + " per episode"
		p.X.Label.Text = "episode"
		p.Y.Label.Text = curve.name

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("could not plot %v: %v", curve.name, err)
		}
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
		p.Add(plotter.NewGrid())

		path := filepath.Join(dir, curve.name+".png")
		if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
			return fmt.Errorf("could not save %v: %v", path, err)
		}
	}
	return nil
}

// writeReport emits an interactive HTML report with the per-episode
// reward curve and the per-window finish rate
func writeReport(path string, episodes []tracker.EpisodeStats,
	windows []windowSummary) error {
	rewardXs := make([]string, len(episodes))
	rewardData := make([]opts.LineData, len(episodes))
	for i, e := range episodes {
		rewardXs[i] = strconv.Itoa(e.Episode)
		rewardData[i] = opts.LineData{Value: e.Reward}
	}

	reward := charts.NewLine()
	reward.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Reward per episode"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	reward.SetXAxis(rewardXs).
		AddSeries("reward", rewardData,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	rateXs := make([]string, len(windows))
	rateData := make([]opts.LineData, len(windows))
	for i, w := range windows {
		rateXs[i] = strconv.Itoa(w.LastEpisode)
		rateData[i] = opts.LineData{Value: w.FinishRate}
	}

	rate := charts.NewLine()
	rate.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Finish rate per window"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	rate.SetXAxis(rateXs).AddSeries("finish rate", rateData)

	page := components.NewPage()
	page.AddCharts(reward, rate)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %v: %v", path, err)
	}
	defer file.Close()
	return page.Render(file)
}

// writeWorkbook writes the window summaries to an Excel workbook
func writeWorkbook(path string, windows []windowSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Windows"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("could not create sheet: %v", err)
	}
	f.DeleteSheet("Sheet1")

	headers := []string{"first_episode", "last_episode", "mean_reward",
		"mean_steps", "mean_loss", "mean_laps", "finish_rate"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("could not write header: %v", err)
		}
	}

	for row, w := range windows {
		values := []interface{}{w.FirstEpisode, w.LastEpisode,
			w.MeanReward, w.MeanSteps, w.MeanLoss, w.MeanLaps,
			w.FinishRate}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("could not write row %d: %v", row, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("could not save %v: %v", path, err)
	}
	return nil
}

// renderTrack draws the surface map with the checkpoint ring and start
// pose, for checking track assets by eye
func renderTrack(trackPath, outPath string) error {
	m, err := track.Load(trackPath)
	if err != nil {
		return fmt.Errorf("could not load track: %v", err)
	}

	dc := gg.NewContext(m.Width(), m.Height())
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			switch m.At(float64(x), float64(y)) {
			case track.Road:
				dc.SetRGB255(70, 70, 70)
			case track.Grass:
				dc.SetRGB255(34, 177, 76)
			default:
				dc.SetRGB255(15, 15, 15)
			}
			dc.SetPixel(x, y)
		}
	}

	dc.SetRGB255(255, 215, 0)
	dc.SetLineWidth(2)
	for i, cp := range racing.DefaultCheckpoints() {
		dc.DrawLine(cp.Start.X, cp.Start.Y, cp.End.X, cp.End.Y)
		dc.Stroke()
		mid := cp.Mid()
		dc.DrawStringAnchored(strconv.Itoa(i), mid.X, mid.Y, 0.5, 0.5)
	}

	dc.SetRGB255(220, 40, 40)
	dc.DrawCircle(racing.DefaultStart.X, racing.DefaultStart.Y, 4)
	dc.Fill()

	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("could not save %v: %v", outPath, err)
	}
	return nil
}
