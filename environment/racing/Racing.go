// Package racing implements a top-down racing environment over a
// color-coded surface map. The vehicle integrates simple kinematics
// with surface-dependent friction, senses the track through ray casts,
// and completes laps through an ordered checkpoint ring.
package racing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	env "raceline/environment"
	"raceline/environment/track"
	ts "raceline/timestep"
	"raceline/utils/floatutils"
)

// Physics holds the vehicle integration constants. Units are pixels,
// seconds, and radians.
type Physics struct {
	MaxSpeed        float64 // top speed on regular track
	Acceleration    float64 // full-throttle acceleration
	Friction        float64 // base coasting deceleration
	TurnSpeedBase   float64 // turn rate at standstill, rad/s
	TurnSpeedFactor float64 // turn damping growth with speed
	DT              float64 // integration timestep
}

// DefaultPhysics returns the constants the environment was built
// around.
func DefaultPhysics() Physics {
	return Physics{
		MaxSpeed:        300.0,
		Acceleration:    150.0,
		Friction:        50.0,
		TurnSpeedBase:   3.0,
		TurnSpeedFactor: 0.3,
		DT:              1.0 / 60.0,
	}
}

// Bounce attenuation applied to speed when a collision rolls the
// vehicle back.
const bounceFactor = -0.3

// Minimum |speed| below which steering has no authority.
const steerSpeedThreshold = 1.0

// Grass halves the attainable top speed.
const grassSpeedFactor = 0.5

// Reversing is limited to half the surface top speed.
const reverseSpeedFactor = 0.5

// Racing implements environment.Environment for the multi-lap race.
// All mutation happens through Reset and Step; the environment is the
// sole owner of the vehicle state during a step.
type Racing struct {
	track   *track.Map
	physics Physics
	ring    *Ring
	task    *Task
	enders  []env.Ender

	start      r2.Vec
	startAngle float64

	position r2.Vec
	angle    float64
	speed    float64

	discount float64
	lastStep ts.TimeStep

	// Per-episode counters consumed by evaluation scoring
	wallHits    int
	grassFrames int
}

// New returns a Racing environment on the given surface map. The
// discount is attached to every non-terminal timestep the environment
// produces. Enders end episodes for reasons outside the race itself,
// such as a step budget.
func New(m *track.Map, ring *Ring, task *Task, physics Physics,
	start r2.Vec, startAngle, discount float64,
	enders ...env.Ender) (*Racing, error) {
	if m == nil {
		return nil, fmt.Errorf("new: no surface map")
	}
	if ring == nil {
		return nil, fmt.Errorf("new: no checkpoint ring")
	}
	if task == nil {
		return nil, fmt.Errorf("new: no task")
	}
	if m.At(start.X, start.Y) == track.Wall {
		return nil, fmt.Errorf("new: start position (%v, %v) is not "+
			"drivable", start.X, start.Y)
	}

	r := &Racing{
		track:      m,
		physics:    physics,
		ring:       ring,
		task:       task,
		enders:     enders,
		start:      start,
		startAngle: startAngle,
		discount:   discount,
	}
	r.Reset()
	return r, nil
}

// Reset restores the environment to the start pose and returns the
// first timestep of a new episode.
func (r *Racing) Reset() ts.TimeStep {
	r.position = r.start
	r.angle = r.startAngle
	r.speed = 0.0
	r.wallHits = 0
	r.grassFrames = 0
	r.ring.Reset()
	r.task.Reset()

	obs := Observation(r.track, r.position, r.angle, r.speed,
		r.physics.MaxSpeed)
	r.lastStep = ts.New(ts.First, 0.0, r.discount, obs, 0)
	return r.lastStep
}

// Step advances the simulation by one timestep under the given action
// and returns the resulting timestep and whether the episode ended.
func (r *Racing) Step(action int) (ts.TimeStep, bool) {
	if action < 0 || action >= NumActions {
		panic(fmt.Sprintf("step: invalid action %v", action))
	}
	if r.lastStep.Last() {
		return r.lastStep, true
	}

	p := r.physics
	prev := r.position
	accel, steer := Action(action).Inputs()

	// Surface is sampled at the pre-move position
	surfaceFriction := r.track.Friction(r.position.X, r.position.Y)
	onGrass := surfaceFriction > 2.0
	if onGrass {
		r.grassFrames++
	}

	// Speed integrates acceleration minus friction. Coasting lets the
	// surface multiplier bite; under power only base friction applies.
	r.speed += accel * p.Acceleration * p.DT

	frictionToApply := p.Friction
	if accel == 0.0 {
		frictionToApply *= surfaceFriction
	}
	if r.speed > 0 {
		r.speed = floatutils.Max(0, r.speed-frictionToApply*p.DT)
	} else if r.speed < 0 {
		r.speed = floatutils.Min(0, r.speed+frictionToApply*p.DT)
	}

	maxSurfaceSpeed := p.MaxSpeed
	if onGrass {
		maxSurfaceSpeed *= grassSpeedFactor
	}
	r.speed = floatutils.Clip(r.speed, -maxSurfaceSpeed*reverseSpeedFactor,
		maxSurfaceSpeed)

	// Turning authority decreases with speed; reversing inverts the
	// steering direction. No steering while nearly stationary.
	if math.Abs(r.speed) > steerSpeedThreshold {
		speedFactor := 1.0 / (1.0 + math.Abs(r.speed)/p.MaxSpeed*
			p.TurnSpeedFactor)
		turnRate := p.TurnSpeedBase * speedFactor
		r.angle += steer * turnRate * p.DT * sign(r.speed)
	}

	r.position = r.position.Add(r2.Vec{
		X: math.Cos(r.angle) * r.speed,
		Y: math.Sin(r.angle) * r.speed,
	}.Scale(p.DT))

	// Collision: roll back and bounce with energy loss. Leaving the
	// map counts as hitting a wall.
	hitWall := r.track.At(r.position.X, r.position.Y) == track.Wall
	if hitWall {
		r.wallHits++
		r.position = prev
		r.speed *= bounceFactor
	}

	// Progress is measured against the checkpoint that was expected
	// when the step began
	progress := r.ring.DistanceToNext(prev) - r.ring.DistanceToNext(r.position)

	crossings := r.ring.Advance(prev, r.position)

	reward := r.task.Reward(StepInfo{
		Progress:  progress,
		Speed:     r.speed,
		DT:        p.DT,
		HitWall:   hitWall,
		OnGrass:   onGrass,
		Crossings: crossings,
	})

	obs := Observation(r.track, r.position, r.angle, r.speed, p.MaxSpeed)
	step := ts.New(ts.Mid, reward, r.discount, obs, r.lastStep.Number+1)

	if crossings.Finished {
		step.SetEnd()
	}
	for _, ender := range r.enders {
		ender.End(&step)
	}

	r.lastStep = step
	return step, step.Last()
}

// Position returns the vehicle's position in pixel space
func (r *Racing) Position() r2.Vec { return r.position }

// Speed returns the vehicle's scalar speed
func (r *Racing) Speed() float64 { return r.speed }

// Angle returns the vehicle's heading
func (r *Racing) Angle() float64 { return r.angle }

// Lap returns the checkpoint ring's lap counter
func (r *Racing) Lap() int { return r.ring.Lap() }

// Finished returns whether the race has been completed
func (r *Racing) Finished() bool { return r.ring.Finished() }

// WallHits returns the number of collisions this episode
func (r *Racing) WallHits() int { return r.wallHits }

// GrassFrames returns the number of steps spent on grass this episode
func (r *Racing) GrassFrames() int { return r.grassFrames }

// Track returns the surface map the environment drives on
func (r *Racing) Track() *track.Map { return r.track }

// ObservationSpec returns the observation specification of the
// environment
func (r *Racing) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationSize, nil)

	lower := make([]float64, ObservationSize)
	upper := make([]float64, ObservationSize)
	for i := range lower {
		lower[i] = -1.0
		upper[i] = 1.0
	}

	return env.NewSpec(shape, env.Observation, mat.NewVecDense(
		ObservationSize, lower), mat.NewVecDense(ObservationSize, upper),
		env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (r *Racing) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{0})
	upperBound := mat.NewVecDense(1, []float64{float64(NumActions - 1)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1.0
	}
	return 1.0
}
