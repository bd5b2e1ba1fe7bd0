// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either the first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment. The
// Discount field already accounts for episode termination: it equals
// the environment's discount on a Mid step and 0.0 on a Last step, so
// that bootstrapped targets computed as R + Discount*Q never look past
// the end of an episode.
type TimeStep struct {
	stepType    StepType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	Number      int
}

func New(t StepType, r, d float64, o mat.Vector, n int) TimeStep {
	return TimeStep{t, r, d, o, n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

// SetEnd marks a TimeStep as the last in its episode and zeroes its
// discount so no value is bootstrapped past it.
func (t *TimeStep) SetEnd() {
	t.stepType = Last
	t.Discount = 0.0
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Discount, t.Number)
}

// Transition packages together a single environmental transition
// (S, A, R, S') together with the discount applied to values of the
// next state. A Discount of 0.0 denotes a terminal transition.
// Transitions are immutable once created and are owned by whatever
// store they are added to.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	Discount  float64
	NextState mat.Vector
}

// NewTransition packages the step that was acted in, the action taken,
// and the step that resulted into a Transition.
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
	}
}

// Terminal returns whether the transition ends its episode.
func (t Transition) Terminal() bool {
	return t.Discount == 0.0
}
