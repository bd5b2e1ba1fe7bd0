// Package eval implements greedy policy evaluation and best-model
// selection at training milestones.
package eval

import (
	"context"
	"fmt"

	"raceline/agent"
	"raceline/environment"
)

// Environment is the surface the evaluator needs from a racing
// environment beyond stepping: episode outcome and the counters the
// composite score is built from.
type Environment interface {
	environment.Environment
	Lap() int
	Finished() bool
	WallHits() int
	GrassFrames() int
}

// Config configures an evaluation run
type Config struct {
	Episodes int // Greedy episodes per evaluation
	MaxSteps int // Step budget per episode

	// Composite score weights
	FinishedWeight   float64
	StepWeight       float64
	WallHitWeight    float64
	GrassFrameWeight float64
}

// DefaultConfig returns the default evaluation configuration
func DefaultConfig() Config {
	return Config{
		Episodes:         20,
		MaxSteps:         7500,
		FinishedWeight:   100000,
		StepWeight:       1,
		WallHitWeight:    200,
		GrassFrameWeight: 50,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("config: episodes must be positive "+
			"\n\thave(%v)", c.Episodes)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max steps must be positive "+
			"\n\thave(%v)", c.MaxSteps)
	}
	return nil
}

// Result summarizes an evaluation run
type Result struct {
	Episodes int
	Finishes int

	FinishRate float64
	MeanLaps   float64
	MeanSteps  float64

	// MeanStepsToFinish averages only over finished episodes and is
	// zero when no episode finished; check Finishes before comparing.
	MeanStepsToFinish float64

	MeanWallHits    float64
	MeanGrassFrames float64

	// Score is the mean per-episode composite score: a finish weighted
	// up, steps, wall hits and grass frames weighted down
	Score float64
}

// Evaluator runs greedy evaluation episodes of an agent
type Evaluator struct {
	env    Environment
	agent  agent.Agent
	config Config
}

// New returns a new Evaluator
func New(env Environment, a agent.Agent, config Config) (*Evaluator,
	error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("eval: %v", err)
	}
	return &Evaluator{env: env, agent: a, config: config}, nil
}

// Run evaluates the agent's greedy policy. The agent is put into
// evaluation mode for the duration of the run and back into training
// mode afterward.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	e.agent.Eval()
	defer e.agent.Train()

	var result Result
	result.Episodes = e.config.Episodes

	var totalLaps, totalSteps, finishSteps int
	var totalWallHits, totalGrassFrames int

	for episode := 0; episode < e.config.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("run: %v", err)
		}

		step := e.env.Reset()
		steps := 0
		for !step.Last() && steps < e.config.MaxSteps {
			action, err := e.agent.SelectAction(step)
			if err != nil {
				return Result{}, fmt.Errorf("run: %v", err)
			}
			step, _ = e.env.Step(action)
			steps++
		}

		totalSteps += steps
		totalLaps += e.env.Lap()
		totalWallHits += e.env.WallHits()
		totalGrassFrames += e.env.GrassFrames()
		if e.env.Finished() {
			result.Finishes++
			finishSteps += steps
		}

		result.Score += -e.config.StepWeight*float64(steps) -
			e.config.WallHitWeight*float64(e.env.WallHits()) -
			e.config.GrassFrameWeight*float64(e.env.GrassFrames())
		if e.env.Finished() {
			result.Score += e.config.FinishedWeight
		}
	}

	n := float64(e.config.Episodes)
	result.Score /= n
	result.FinishRate = float64(result.Finishes) / n
	result.MeanLaps = float64(totalLaps) / n
	result.MeanSteps = float64(totalSteps) / n
	result.MeanWallHits = float64(totalWallHits) / n
	result.MeanGrassFrames = float64(totalGrassFrames) / n
	if result.Finishes > 0 {
		result.MeanStepsToFinish = float64(finishSteps) /
			float64(result.Finishes)
	}

	return result, nil
}
