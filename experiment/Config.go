package experiment

import (
	"fmt"

	"raceline/experiment/eval"
)

// EpsilonSchedule decays the exploration rate once per episode until
// it reaches its floor
type EpsilonSchedule struct {
	Start float64
	Decay float64 // Multiplied in after every episode
	Min   float64
}

// LRSchedule drops the learning rate in one-way stages as training
// stabilizes: once on the first finished episode, and once more when
// the finish rate over the trailing window reaches StableRate.
type LRSchedule struct {
	Initial       float64
	OnFirstFinish float64
	OnStable      float64
	StableWindow  int
	StableRate    float64
}

// StallConfig detects a car that has stopped making progress. Every
// CheckInterval steps the car must have moved at least MinDistance
// from its position at the previous check; MaxStrikes consecutive
// failures end the episode with Penalty added to the final reward.
type StallConfig struct {
	CheckInterval int
	MinDistance   float64
	MaxStrikes    int
	Penalty       float64
}

// ReplayConfig sizes the experience replay buffer
type ReplayConfig struct {
	MinCapacity int
	MaxCapacity int
	BatchSize   int
}

// Config represents a configuration of a training run
type Config struct {
	MaxEpisodes       int // 0 trains until cancelled
	MaxSteps          int // Step budget per episode
	WarmupEpisodes    int // First episode on which gradient updates run
	TrainInterval     int // Environment steps between gradient updates
	MilestoneInterval int // Episodes between milestones

	Epsilon      EpsilonSchedule
	LearningRate LRSchedule
	Stall        StallConfig
	Replay       ReplayConfig

	Eval     eval.Config
	Selector eval.SelectorConfig

	ModelDir string
	StatsDir string
	Seed     uint64
}

// DefaultConfig returns the default training configuration
func DefaultConfig() Config {
	return Config{
		MaxSteps:          7500,
		WarmupEpisodes:    5,
		TrainInterval:     3,
		MilestoneInterval: 50,
		Epsilon: EpsilonSchedule{
			Start: 1.0,
			Decay: 0.995,
			Min:   0.005,
		},
		LearningRate: LRSchedule{
			Initial:       1e-3,
			OnFirstFinish: 3e-4,
			OnStable:      1e-4,
			StableWindow:  20,
			StableRate:    0.5,
		},
		Stall: StallConfig{
			CheckInterval: 75,
			MinDistance:   30,
			MaxStrikes:    3,
			Penalty:       -50,
		},
		Replay: ReplayConfig{
			MinCapacity: 32,
			MaxCapacity: 50000,
			BatchSize:   32,
		},
		Eval:     eval.DefaultConfig(),
		Selector: eval.DefaultSelectorConfig(),
		ModelDir: "models",
		StatsDir: "stats",
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// training run
func (c Config) Validate() error {
	if c.MaxEpisodes < 0 {
		return fmt.Errorf("config: max episodes cannot be negative "+
			"\n\thave(%v)", c.MaxEpisodes)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max steps must be positive "+
			"\n\thave(%v)", c.MaxSteps)
	}
	if c.TrainInterval <= 0 {
		return fmt.Errorf("config: train interval must be positive "+
			"\n\thave(%v)", c.TrainInterval)
	}
	if c.MilestoneInterval <= 0 {
		return fmt.Errorf("config: milestone interval must be positive "+
			"\n\thave(%v)", c.MilestoneInterval)
	}

	if c.Epsilon.Start < 0 || c.Epsilon.Start > 1 {
		return fmt.Errorf("config: epsilon start must be in [0, 1] "+
			"\n\thave(%v)", c.Epsilon.Start)
	}
	if c.Epsilon.Decay <= 0 || c.Epsilon.Decay > 1 {
		return fmt.Errorf("config: epsilon decay must be in (0, 1] "+
			"\n\thave(%v)", c.Epsilon.Decay)
	}
	if c.Epsilon.Min < 0 || c.Epsilon.Min > c.Epsilon.Start {
		return fmt.Errorf("config: epsilon floor must be in [0, start] "+
			"\n\thave(%v)", c.Epsilon.Min)
	}

	if c.LearningRate.Initial <= 0 || c.LearningRate.OnFirstFinish <= 0 ||
		c.LearningRate.OnStable <= 0 {
		return fmt.Errorf("config: learning rates must be positive")
	}
	if c.LearningRate.StableWindow <= 0 {
		return fmt.Errorf("config: stable window must be positive "+
			"\n\thave(%v)", c.LearningRate.StableWindow)
	}

	if c.Stall.CheckInterval < 0 {
		return fmt.Errorf("config: stall check interval cannot be "+
			"negative \n\thave(%v)", c.Stall.CheckInterval)
	}
	if c.Stall.CheckInterval > 0 && c.Stall.MaxStrikes <= 0 {
		return fmt.Errorf("config: stall strikes must be positive "+
			"\n\thave(%v)", c.Stall.MaxStrikes)
	}

	if c.Replay.BatchSize <= 0 || c.Replay.MaxCapacity < c.Replay.BatchSize {
		return fmt.Errorf("config: replay must hold at least one batch")
	}

	return c.Eval.Validate()
}
