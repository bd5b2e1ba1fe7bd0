package tracker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var csvHeader = []string{
	"episode", "reward", "steps", "mean_loss", "laps", "finished",
	"epsilon", "learning_rate",
}

// CSV writes one statistics file per milestone window. Episodes
// accumulate in memory until Flush, which writes
// training_stats_<episode>.csv to the tracker's directory and starts a
// new window.
type CSV struct {
	dir    string
	window []EpisodeStats
}

// NewCSV returns a CSV tracker writing into dir, creating the
// directory if needed
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newcsv: could not create stats "+
			"directory: %v", err)
	}
	return &CSV{dir: dir}, nil
}

// Track caches the statistics of one episode
func (c *CSV) Track(stats EpisodeStats) error {
	c.window = append(c.window, stats)
	return nil
}

// Flush writes the current window to training_stats_<episode>.csv and
// clears it. Flushing an empty window writes nothing.
func (c *CSV) Flush(episode int) error {
	if len(c.window) == 0 {
		return nil
	}

	path := filepath.Join(c.dir,
		fmt.Sprintf("training_stats_%d.csv", episode))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flush: could not create %v: %v", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("flush: could not write header: %v", err)
	}
	for _, stats := range c.window {
		record := []string{
			strconv.Itoa(stats.Episode),
			strconv.FormatFloat(stats.Reward, 'f', 4, 64),
			strconv.Itoa(stats.Steps),
			strconv.FormatFloat(stats.MeanLoss, 'f', 6, 64),
			strconv.Itoa(stats.Laps),
			strconv.FormatBool(stats.Finished),
			strconv.FormatFloat(stats.Epsilon, 'f', 4, 64),
			strconv.FormatFloat(stats.LearningRate, 'e', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("flush: could not write record: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %v", err)
	}

	c.window = c.window[:0]
	return nil
}

// Close flushes nothing; unflushed episodes of a partial window are
// discarded, matching the milestone file layout.
func (c *CSV) Close() error { return nil }
