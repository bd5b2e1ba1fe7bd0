// Package tracker implements trackers, which record per-episode
// training statistics as they are generated.
package tracker

// EpisodeStats holds the statistics of a single training episode
type EpisodeStats struct {
	Episode      int     `json:"episode"`
	Reward       float64 `json:"reward"`
	Steps        int     `json:"steps"`
	MeanLoss     float64 `json:"meanLoss"`
	Laps         int     `json:"laps"`
	Finished     bool    `json:"finished"`
	Epsilon      float64 `json:"epsilon"`
	LearningRate float64 `json:"learningRate"`
}

// Tracker records episode statistics during training. Track is called
// once per episode, Flush at every milestone with the milestone's
// episode number, and Close once when training ends.
type Tracker interface {
	Track(stats EpisodeStats) error
	Flush(episode int) error
	Close() error
}
