// Package agent defines an agent interface
package agent

import (
	"raceline/expreplay"
	"raceline/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy and Learner share the
// same weights, so any update the Learner makes is reflected in the
// actions the Policy chooses.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single gradient update on a sampled batch and
	// returns the loss of that update
	Step(batch *expreplay.Batch) (float64, error)

	// SetLearningRate changes the optimizer's step size
	SetLearningRate(lr float64) error

	// LearningRate returns the optimizer's current step size
	LearningRate() float64
}

// Policy represents a policy that an agent can have.
//
// In training mode the policy may explore. In evaluation mode action
// selection is greedy with respect to the learned action values.
type Policy interface {
	// SelectAction returns the action to take at the given timestep
	SelectAction(t timestep.TimeStep) (int, error)

	// Predict returns the action values for a single observation
	Predict(obs []float64) ([]float64, error)

	// SetEpsilon sets the exploration rate used in training mode
	SetEpsilon(epsilon float64)

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// A Saver is an agent whose learned weights can be persisted and
// restored.
type Saver interface {
	Save(path string) error
	Load(path string) error
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}
