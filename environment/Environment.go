// Package environment outlines the interfaces needed to implement
// concrete environments
package environment

import (
	"raceline/timestep"
)

// Environment implements a simulated environment with a discrete
// action set. An Environment starts ready to use; Reset restores it to
// a start state between episodes.
type Environment interface {
	Reset() timestep.TimeStep
	Step(action int) (timestep.TimeStep, bool)
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Ender determines when an episode ends for reasons external to the
// environment dynamics, such as a step budget.
type Ender interface {
	// End determines whether or not the current episode should be
	// ended, returning a boolean to indicate episode termination. If
	// the episode should be ended, End will mark the timestep as the
	// last in its episode.
	End(t *timestep.TimeStep) bool
}

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End implements the Ender interface
func (s StepLimit) End(t *timestep.TimeStep) bool {
	if t.Number >= s.episodeSteps {
		t.SetEnd()
		return true
	}
	return false
}
