package racing

// Action is one of the discrete control symbols of the racing
// environment. The mapping from Action to (acceleration, steering)
// inputs is a fixed table shared between training and any execution of
// a trained policy. A policy trained against one mapping is silently
// corrupted by any other, so this table must never be reordered.
type Action int

const (
	Accelerate Action = iota
	Reverse
	SteerLeft
	SteerRight
	AccelerateLeft
	AccelerateRight
	Coast

	// NumActions is the size of the action set
	NumActions int = 7
)

// reverseForce is the fraction of full acceleration available when
// reversing.
const reverseForce = 0.4

func (a Action) String() string {
	switch a {
	case Accelerate:
		return "Accelerate"
	case Reverse:
		return "Reverse"
	case SteerLeft:
		return "SteerLeft"
	case SteerRight:
		return "SteerRight"
	case AccelerateLeft:
		return "AccelerateLeft"
	case AccelerateRight:
		return "AccelerateRight"
	case Coast:
		return "Coast"
	}
	return "Invalid"
}

// Inputs returns the acceleration and steering inputs of an action.
// Acceleration is in [-reverseForce, 1] and steering in {-1, 0, 1},
// where negative steering turns left (screen coordinates).
func (a Action) Inputs() (acceleration, steering float64) {
	switch a {
	case Accelerate:
		return 1.0, 0.0
	case Reverse:
		return -reverseForce, 0.0
	case SteerLeft:
		return 0.0, -1.0
	case SteerRight:
		return 0.0, 1.0
	case AccelerateLeft:
		return 1.0, -1.0
	case AccelerateRight:
		return 1.0, 1.0
	case Coast:
		return 0.0, 0.0
	}
	panic("inputs: invalid action")
}
