package deepq

import (
	"fmt"

	"raceline/initwfn"
	"raceline/solver"
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	Hidden    []int   // Hidden layer sizes in the Q network
	Epsilon   float64 // Initial behaviour policy epsilon
	Tau       float64 // Polyak averaging constant
	BatchSize int     // Gradient update batch size

	// Weight initialization; nil falls back to Glorot Normal
	Init *initwfn.InitWFn

	Solver solver.AdamConfig // Optimizer for learning weights
}

// DefaultConfig returns a Config with the default hyperparameters
func DefaultConfig() Config {
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}

	return Config{
		Hidden:    []int{64, 64},
		Epsilon:   1.0,
		Tau:       0.005,
		BatchSize: 32,
		Init:      init,
		Solver: solver.AdamConfig{
			StepSize: 1e-3,
			Epsilon:  1e-8,
			Beta1:    0.9,
			Beta2:    0.999,
			Batch:    32,
			Clip:     1.0,
		},
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if len(c.Hidden) == 0 {
		return fmt.Errorf("config: at least one hidden layer required")
	}
	for i, size := range c.Hidden {
		if size <= 0 {
			return fmt.Errorf("config: hidden layer %d must have "+
				"positive size \n\twant(>0) \n\thave(%v)", i, size)
		}
	}

	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("config: epsilon must be in [0, 1] "+
			"\n\thave(%v)", c.Epsilon)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: tau must be in (0, 1] "+
			"\n\thave(%v)", c.Tau)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BatchSize)
	}

	if c.Solver.Batch != c.BatchSize {
		return fmt.Errorf("config: solver batch size must match agent "+
			"batch size \n\twant(%v) \n\thave(%v)", c.BatchSize,
			c.Solver.Batch)
	}

	return nil
}
