// Package solver wraps Gorgonia Solvers so that they can be JSON
// serialized into configuration files and so that their step size can
// be adjusted between training steps.
package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Batch    int
	Clip     float64 // Global L2 gradient norm bound, <= 0 disables
}

// Adam is an Adam solver with a mutable step size. Gorgonia solvers fix
// their learning rate at construction, so changing the step size
// rebuilds the underlying solver from the stored configuration. The
// first and second moment estimates restart from zero when that
// happens.
type Adam struct {
	G.Solver
	config AdamConfig
}

// NewDefaultAdam returns a new Adam solver with default hyperparameters
func NewDefaultAdam(stepSize float64, batchSize int) (*Adam, error) {
	return NewAdam(AdamConfig{
		StepSize: stepSize,
		Epsilon:  1e-8,
		Beta1:    0.9,
		Beta2:    0.999,
		Batch:    batchSize,
	})
}

// NewAdam returns a new Adam solver as described by the given
// configuration
func NewAdam(config AdamConfig) (*Adam, error) {
	if config.StepSize <= 0 {
		return nil, fmt.Errorf("newAdam: step size must be positive, "+
			"got %v", config.StepSize)
	}
	if config.Batch <= 0 {
		return nil, fmt.Errorf("newAdam: batch size must be positive, "+
			"got %v", config.Batch)
	}

	return &Adam{Solver: config.Create(), config: config}, nil
}

// Create returns a new Gorgonia Adam solver as described by the
// AdamConfig. Gradient clipping is not delegated to Gorgonia, whose
// clip option clamps each element separately; the Adam wrapper
// rescales by the global norm instead.
func (a AdamConfig) Create() G.Solver {
	return G.NewAdamSolver(
		G.WithLearnRate(a.StepSize),
		G.WithEps(a.Epsilon),
		G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2),
		G.WithBatchSize(float64(a.Batch)),
	)
}

// Step adapts the weights of model using their gradients. When Clip
// is positive the gradients are first rescaled so their joint L2 norm
// does not exceed it.
func (a *Adam) Step(model []G.ValueGrad) error {
	if a.config.Clip > 0 {
		if err := clipGradNorm(model, a.config.Clip); err != nil {
			return fmt.Errorf("step: %v", err)
		}
	}
	return a.Solver.Step(model)
}

// clipGradNorm rescales the gradients of model in place so that their
// L2 norm over all parameters is at most clip.
func clipGradNorm(model []G.ValueGrad, clip float64) error {
	grads := make([][]float64, len(model))
	sumSq := 0.0
	for i, vg := range model {
		grad, err := vg.Grad()
		if err != nil {
			return fmt.Errorf("could not get gradient: %v", err)
		}
		data, ok := grad.Data().([]float64)
		if !ok {
			return fmt.Errorf("gradients must be float64 tensors "+
				"\n\thave(%T)", grad.Data())
		}
		grads[i] = data
		for _, g := range data {
			sumSq += g * g
		}
	}

	norm := math.Sqrt(sumSq)
	if norm <= clip {
		return nil
	}

	scale := clip / norm
	for _, data := range grads {
		for j := range data {
			data[j] *= scale
		}
	}
	return nil
}

// StepSize returns the current step size
func (a *Adam) StepSize() float64 {
	return a.config.StepSize
}

// SetStepSize changes the solver's step size, rebuilding the underlying
// Gorgonia solver
func (a *Adam) SetStepSize(stepSize float64) error {
	if stepSize <= 0 {
		return fmt.Errorf("setStepSize: step size must be positive, "+
			"got %v", stepSize)
	}

	a.config.StepSize = stepSize
	a.Solver = a.config.Create()
	return nil
}

// Config returns the solver's current configuration
func (a *Adam) Config() AdamConfig {
	return a.config
}
