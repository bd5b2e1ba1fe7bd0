package tracker

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite persists every episode of a training run to a sqlite
// database, keyed by a run identifier, so runs can be compared after
// the fact.
type SQLite struct {
	db    *sql.DB
	runID string
}

// NewSQLite opens (creating if needed) the database at path and
// registers a new run
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("newsqlite: could not open %v: %v", path,
			err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT,
			episode INTEGER,
			reward DOUBLE,
			steps INTEGER,
			mean_loss DOUBLE,
			laps INTEGER,
			finished INTEGER,
			epsilon DOUBLE,
			learning_rate DOUBLE,
			PRIMARY KEY (run_id, episode),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("newsqlite: could not create schema: %v",
			err)
	}

	runID := uuid.NewString()
	_, err = db.Exec("INSERT INTO runs (run_id, started) VALUES (?, ?)",
		runID, time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("newsqlite: could not register run: %v",
			err)
	}

	return &SQLite{db: db, runID: runID}, nil
}

// RunID returns the identifier of the run this tracker records under
func (s *SQLite) RunID() string { return s.runID }

// Track inserts one episode row
func (s *SQLite) Track(stats EpisodeStats) error {
	finished := 0
	if stats.Finished {
		finished = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (run_id, episode, reward, steps, mean_loss,
			laps, finished, epsilon, learning_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, stats.Episode, stats.Reward, stats.Steps,
		stats.MeanLoss, stats.Laps, finished, stats.Epsilon,
		stats.LearningRate)
	if err != nil {
		return fmt.Errorf("track: could not insert episode %d: %v",
			stats.Episode, err)
	}
	return nil
}

// Flush is a no-op; rows are written as they arrive
func (s *SQLite) Flush(episode int) error { return nil }

// Close closes the underlying database
func (s *SQLite) Close() error { return s.db.Close() }
