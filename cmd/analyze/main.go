// Command analyze summarizes recorded training runs: windowed
// statistics, training-curve plots (PNG), an interactive HTML report,
// a summary workbook, and an optional render of the track itself.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"raceline/experiment/tracker"
)

func main() {
	var (
		dbPath    = flag.String("db", "", "sqlite database written by the trainer")
		runID     = flag.String("run", "", "run to analyze, defaults to the most recent")
		statsDir  = flag.String("stats", "", "directory of training_stats_*.csv files")
		trackPath = flag.String("track", "", "track surface map to render (optional)")
		outDir    = flag.String("out", "analysis", "output directory")
		window    = flag.Int("window", 50, "episodes per summary window")
	)
	flag.Parse()

	if *dbPath == "" && *statsDir == "" {
		log.Fatal("analyze: one of -db or -stats is required")
	}
	if *window <= 0 {
		log.Fatal("analyze: window must be positive")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("analyze: could not create output directory: %v", err)
	}

	var episodes []tracker.EpisodeStats
	var err error
	if *dbPath != "" {
		episodes, err = loadSQLite(*dbPath, *runID)
	} else {
		episodes, err = loadCSVDir(*statsDir)
	}
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	if len(episodes) == 0 {
		log.Fatal("analyze: no episodes found")
	}
	log.Printf("loaded %d episodes", len(episodes))

	windows := summarize(episodes, *window)

	if first, last, ok := trend(windows); ok {
		log.Printf("reward %.1f -> %.1f  steps %.0f -> %.0f  "+
			"finish rate %.2f -> %.2f (first vs last window of %d)",
			first.MeanReward, last.MeanReward, first.MeanSteps,
			last.MeanSteps, first.FinishRate, last.FinishRate, *window)
	}

	if err := writeCurves(*outDir, episodes); err != nil {
		log.Fatalf("analyze: %v", err)
	}
	log.Printf("wrote training curves to %v", *outDir)

	reportPath := filepath.Join(*outDir, "report.html")
	if err := writeReport(reportPath, episodes, windows); err != nil {
		log.Fatalf("analyze: %v", err)
	}
	log.Printf("wrote %v", reportPath)

	workbookPath := filepath.Join(*outDir, "summary.xlsx")
	if err := writeWorkbook(workbookPath, windows); err != nil {
		log.Fatalf("analyze: %v", err)
	}
	log.Printf("wrote %v", workbookPath)

	if *trackPath != "" {
		renderPath := filepath.Join(*outDir, "track_render.png")
		if err := renderTrack(*trackPath, renderPath); err != nil {
			log.Fatalf("analyze: %v", err)
		}
		log.Printf("wrote %v", renderPath)
	}
}
