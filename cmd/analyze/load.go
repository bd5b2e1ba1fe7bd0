package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"

	"raceline/experiment/tracker"
)

// loadSQLite reads the episodes of one run from a trainer database.
// An empty runID selects the most recently started run.
func loadSQLite(path, runID string) ([]tracker.EpisodeStats, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %v", path, err)
	}
	defer db.Close()

	if runID == "" {
		row := db.QueryRow(
			"SELECT run_id FROM runs ORDER BY started DESC LIMIT 1")
		if err := row.Scan(&runID); err != nil {
			return nil, fmt.Errorf("could not find a run: %v", err)
		}
	}

	rows, err := db.Query(`
		SELECT episode, reward, steps, mean_loss, laps, finished,
			epsilon, learning_rate
		FROM episodes WHERE run_id = ? ORDER BY episode`, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query run %v: %v", runID, err)
	}
	defer rows.Close()

	var episodes []tracker.EpisodeStats
	for rows.Next() {
		var stats tracker.EpisodeStats
		var finished int
		if err := rows.Scan(&stats.Episode, &stats.Reward, &stats.Steps,
			&stats.MeanLoss, &stats.Laps, &finished, &stats.Epsilon,
			&stats.LearningRate); err != nil {
			return nil, fmt.Errorf("could not scan episode: %v", err)
		}
		stats.Finished = finished != 0
		episodes = append(episodes, stats)
	}
	return episodes, rows.Err()
}

var statsFilePattern = regexp.MustCompile(`^training_stats_(\d+)\.csv$`)

// loadCSVDir reads every training_stats_*.csv window file in dir, in
// episode order
func loadCSVDir(dir string) ([]tracker.EpisodeStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read %v: %v", dir, err)
	}

	type window struct {
		milestone int
		name      string
	}
	var windows []window
	for _, entry := range entries {
		m := statsFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		milestone, _ := strconv.Atoi(m[1])
		windows = append(windows, window{milestone, entry.Name()})
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].milestone < windows[j].milestone
	})

	var episodes []tracker.EpisodeStats
	for _, w := range windows {
		stats, err := loadCSVFile(filepath.Join(dir, w.name))
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, stats...)
	}
	return episodes, nil
}

func loadCSVFile(path string) ([]tracker.EpisodeStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %v", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse %v: %v", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	var episodes []tracker.EpisodeStats
	for _, record := range records[1:] { // skip header
		if len(record) < 8 {
			return nil, fmt.Errorf("%v: short record %v", path, record)
		}
		var stats tracker.EpisodeStats
		stats.Episode, err = strconv.Atoi(record[0])
		if err == nil {
			stats.Reward, err = strconv.ParseFloat(record[1], 64)
		}
		if err == nil {
			stats.Steps, err = strconv.Atoi(record[2])
		}
		if err == nil {
			stats.MeanLoss, err = strconv.ParseFloat(record[3], 64)
		}
		if err == nil {
			stats.Laps, err = strconv.Atoi(record[4])
		}
		if err == nil {
			stats.Finished, err = strconv.ParseBool(record[5])
		}
		if err == nil {
			stats.Epsilon, err = strconv.ParseFloat(record[6], 64)
		}
		if err == nil {
			stats.LearningRate, err = strconv.ParseFloat(record[7], 64)
		}
		if err != nil {
			return nil, fmt.Errorf("%v: bad record %v: %v", path,
				record, err)
		}
		episodes = append(episodes, stats)
	}
	return episodes, nil
}
