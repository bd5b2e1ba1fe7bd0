package racing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"raceline/environment/track"
	"raceline/utils/floatutils"
)

// ObservationSize is the fixed length of the environment's state
// vector: normalized speed, sin/cos heading, normalized position, 13
// danger readings, and 5 anticipation readings.
const ObservationSize = 5 + 13 + 5

// Short-range danger sensing. A danger reading saturates at 1.0 when
// an obstacle is at or inside the reference distance.
const (
	dangerRange   = 200.0
	dangerRefDist = 50.0
)

// Long-range anticipation sensing, normalized clear distance in
// [0, 1] where 1 means far/clear.
const anticipationRange = 900.0

// dangerOffsets are the short-range ray headings relative to the
// vehicle, spanning -90° to +90° in 15° increments.
var dangerOffsets = [13]float64{
	-math.Pi / 2,
	-5 * math.Pi / 12,
	-math.Pi / 3,
	-math.Pi / 4,
	-math.Pi / 6,
	-math.Pi / 12,
	0.0,
	math.Pi / 12,
	math.Pi / 6,
	math.Pi / 4,
	math.Pi / 3,
	5 * math.Pi / 12,
	math.Pi / 2,
}

// anticipationOffsets are the long-range ray headings, spanning -30°
// to +30°.
var anticipationOffsets = [5]float64{
	-math.Pi / 6,
	-math.Pi / 12,
	0.0,
	math.Pi / 12,
	math.Pi / 6,
}

// Observation builds the state vector for a vehicle pose on a surface
// map. The returned vector always has length ObservationSize.
func Observation(m *track.Map, pos r2.Vec, angle, speed,
	maxSpeed float64) *mat.VecDense {
	state := make([]float64, 0, ObservationSize)

	state = append(state, speed/maxSpeed)
	state = append(state, math.Sin(angle), math.Cos(angle))
	state = append(state, pos.X/float64(m.Width()), pos.Y/float64(m.Height()))

	for _, offset := range dangerOffsets {
		d := m.Raycast(pos.X, pos.Y, angle+offset, dangerRange)

		// Inverse normalization: close walls read high
		danger := 1.0 / (d/dangerRefDist + 0.1)
		state = append(state, math.Min(1.0, danger))
	}

	for _, offset := range anticipationOffsets {
		d := m.Raycast(pos.X, pos.Y, angle+offset, anticipationRange)
		state = append(state, floatutils.Clip(d/anticipationRange, 0.0, 1.0))
	}

	return mat.NewVecDense(ObservationSize, state)
}
