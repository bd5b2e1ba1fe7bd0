package racing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// parallelEps bounds the intersection denominator below which two
// segments are treated as parallel and therefore not crossing.
const parallelEps = 1e-3

// Checkpoint is an ordered line segment on the track with a crossed
// flag. Index 0 of a Ring is the lap boundary.
type Checkpoint struct {
	Start   r2.Vec
	End     r2.Vec
	crossed bool
}

// Mid returns the midpoint of the checkpoint segment.
func (c Checkpoint) Mid() r2.Vec {
	return c.Start.Add(c.End).Scale(0.5)
}

// Crossing reports whether the movement segment prev->cur intersects
// the checkpoint segment. The test is the standard parametric
// line-intersection: a crossing is valid only when both interpolation
// parameters lie in [0, 1].
func (c Checkpoint) Crossing(prev, cur r2.Vec) bool {
	x1, y1 := prev.X, prev.Y
	x2, y2 := cur.X, cur.Y
	x3, y3 := c.Start.X, c.Start.Y
	x4, y4 := c.End.X, c.End.Y

	denom := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(denom) < parallelEps {
		return false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / denom
	u := -((x1-x2)*(y1-y3) - (y1-y2)*(x1-x3)) / denom

	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// Crossings are the checkpoint events produced by one step of
// movement.
type Crossings struct {
	// Checkpoint is true when the expected checkpoint was crossed
	Checkpoint bool

	// Lap is true when the crossing completed a lap
	Lap bool

	// Finished is true when the completed lap was the last one
	Finished bool

	// WrongWay is true when the lap boundary was crossed while it was
	// not the expected checkpoint
	WrongWay bool
}

// Ring is an ordered sequence of checkpoints with index 0 as the lap
// boundary, together with the lap progress state machine. Exactly one
// checkpoint index is expected at a time; lap completion requires that
// every non-boundary checkpoint was crossed since the last boundary
// crossing, which guards against cutting corners.
type Ring struct {
	checkpoints []Checkpoint
	next        int
	lap         int
	totalLaps   int
	finished    bool
}

// NewRing returns a Ring over the given checkpoints requiring
// totalLaps boundary-to-boundary circuits.
func NewRing(checkpoints []Checkpoint, totalLaps int) (*Ring, error) {
	if len(checkpoints) < 2 {
		return nil, fmt.Errorf("newring: need at least 2 checkpoints, "+
			"have %v", len(checkpoints))
	}
	if totalLaps < 1 {
		return nil, fmt.Errorf("newring: need at least 1 lap, have %v",
			totalLaps)
	}

	r := &Ring{
		checkpoints: make([]Checkpoint, len(checkpoints)),
		totalLaps:   totalLaps,
	}
	copy(r.checkpoints, checkpoints)
	r.Reset()
	return r, nil
}

// Reset restores the ring to its not-started state.
func (r *Ring) Reset() {
	for i := range r.checkpoints {
		r.checkpoints[i].crossed = false
	}
	r.next = 0
	r.lap = -1
	r.finished = false
}

// Len returns the number of checkpoints in the ring
func (r *Ring) Len() int { return len(r.checkpoints) }

// Lap returns the current lap counter: -1 before the boundary is first
// crossed, then k while lap k is in progress.
func (r *Ring) Lap() int { return r.lap }

// Finished returns whether all laps have been completed
func (r *Ring) Finished() bool { return r.finished }

// NextIndex returns the index of the expected checkpoint
func (r *Ring) NextIndex() int { return r.next }

// Checkpoints returns a copy of the ring's checkpoint segments.
func (r *Ring) Checkpoints() []Checkpoint {
	out := make([]Checkpoint, len(r.checkpoints))
	copy(out, r.checkpoints)
	return out
}

// DistanceToNext returns the distance from p to the midpoint of the
// expected checkpoint.
func (r *Ring) DistanceToNext(p r2.Vec) float64 {
	mid := r.checkpoints[r.next].Mid()
	return math.Hypot(mid.X-p.X, mid.Y-p.Y)
}

// Advance updates the ring for one step of movement from prev to cur
// and reports the resulting crossing events.
//
// The boundary checkpoint is special: the first crossing while not
// started begins lap 1 without requiring prior checkpoints. Subsequent
// boundary crossings only complete a lap when every other checkpoint
// was crossed since the last boundary crossing; otherwise the crossing
// is ignored and the ring does not advance.
func (r *Ring) Advance(prev, cur r2.Vec) Crossings {
	var ev Crossings
	if r.finished {
		return ev
	}

	expectedBoundary := r.next == 0

	if r.checkpoints[r.next].Crossing(prev, cur) {
		if expectedBoundary {
			switch {
			case r.lap <= 0:
				// First boundary crossing begins lap 1
				r.lap = 1
				r.next = 1
			case r.allOthersCrossed():
				r.lap++
				ev.Checkpoint = true
				ev.Lap = true
				r.resetCrossed()
				r.next = 1
				if r.lap >= r.totalLaps {
					r.finished = true
					ev.Finished = true
				}
			default:
				// Corner cut: ignore the crossing entirely
			}
		} else if r.lap > 0 {
			r.checkpoints[r.next].crossed = true
			ev.Checkpoint = true
			r.next = (r.next + 1) % len(r.checkpoints)
		}
	} else if !expectedBoundary && r.checkpoints[0].Crossing(prev, cur) {
		ev.WrongWay = true
	}

	return ev
}

func (r *Ring) allOthersCrossed() bool {
	for i := 1; i < len(r.checkpoints); i++ {
		if !r.checkpoints[i].crossed {
			return false
		}
	}
	return true
}

func (r *Ring) resetCrossed() {
	for i := range r.checkpoints {
		r.checkpoints[i].crossed = false
	}
}
