package racing

import "gonum.org/v1/gonum/spatial/r2"

// Start pose on the bundled track. The vehicle starts just before the
// lap boundary, facing along the track.
var DefaultStart = r2.Vec{X: 430, Y: 92}

const (
	DefaultStartAngle = 0.0
	DefaultTotalLaps  = 3
)

// DefaultCheckpoints returns the checkpoint ring of the bundled track,
// in race order. Index 0 is the lap boundary.
func DefaultCheckpoints() []Checkpoint {
	return []Checkpoint{
		{Start: r2.Vec{X: 450, Y: 35}, End: r2.Vec{X: 450, Y: 150}},
		{Start: r2.Vec{X: 719, Y: 260}, End: r2.Vec{X: 850, Y: 260}},
		{Start: r2.Vec{X: 850, Y: 665}, End: r2.Vec{X: 723, Y: 665}},
		{Start: r2.Vec{X: 523, Y: 482}, End: r2.Vec{X: 625, Y: 517}},
		{Start: r2.Vec{X: 409, Y: 438}, End: r2.Vec{X: 295, Y: 413}},
		{Start: r2.Vec{X: 160, Y: 730}, End: r2.Vec{X: 220, Y: 815}},
		{Start: r2.Vec{X: 138, Y: 600}, End: r2.Vec{X: 49, Y: 600}},
		{Start: r2.Vec{X: 138, Y: 205}, End: r2.Vec{X: 49, Y: 205}},
	}
}
