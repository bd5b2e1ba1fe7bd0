package main

import (
	"gonum.org/v1/gonum/stat"

	"raceline/experiment/tracker"
)

// windowSummary aggregates one window of consecutive episodes
type windowSummary struct {
	FirstEpisode int
	LastEpisode  int
	MeanReward   float64
	MeanSteps    float64
	MeanLoss     float64
	MeanLaps     float64
	FinishRate   float64
}

// summarize splits the episodes into consecutive windows of the given
// size (the last window may be shorter) and aggregates each
func summarize(episodes []tracker.EpisodeStats, size int) []windowSummary {
	var windows []windowSummary
	for start := 0; start < len(episodes); start += size {
		end := start + size
		if end > len(episodes) {
			end = len(episodes)
		}
		windows = append(windows, aggregate(episodes[start:end]))
	}
	return windows
}

// trend reports how the last window compares to the first. With a
// single window there is no trend and ok is false.
func trend(windows []windowSummary) (first, last windowSummary, ok bool) {
	if len(windows) < 2 {
		return windowSummary{}, windowSummary{}, false
	}
	return windows[0], windows[len(windows)-1], true
}

func aggregate(episodes []tracker.EpisodeStats) windowSummary {
	rewards := make([]float64, len(episodes))
	steps := make([]float64, len(episodes))
	losses := make([]float64, len(episodes))
	laps := make([]float64, len(episodes))
	finishes := 0
	for i, e := range episodes {
		rewards[i] = e.Reward
		steps[i] = float64(e.Steps)
		losses[i] = e.MeanLoss
		laps[i] = float64(e.Laps)
		if e.Finished {
			finishes++
		}
	}

	return windowSummary{
		FirstEpisode: episodes[0].Episode,
		LastEpisode:  episodes[len(episodes)-1].Episode,
		MeanReward:   stat.Mean(rewards, nil),
		MeanSteps:    stat.Mean(steps, nil),
		MeanLoss:     stat.Mean(losses, nil),
		MeanLaps:     stat.Mean(laps, nil),
		FinishRate:   float64(finishes) / float64(len(episodes)),
	}
}
