// Package experiment implements functionality for running a training
// experiment: the episode loop, exploration and learning-rate
// schedules, stall detection, and milestone checkpointing.
package experiment

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r2"

	"raceline/agent"
	"raceline/experiment/eval"
	"raceline/experiment/tracker"
	"raceline/expreplay"
	ts "raceline/timestep"
)

// FinalModelFile is the checkpoint written when training ends or is
// cancelled
const FinalModelFile = "model_final.gob"

// Agent is the surface the trainer needs from a learning agent
type Agent interface {
	agent.Agent
	agent.Saver
}

// Environment is the surface the trainer needs from a racing
// environment: stepping, the car's position for stall detection, and
// the episode outcome.
type Environment interface {
	eval.Environment
	Position() r2.Vec
}

// Trainer runs the training loop. It owns the experience replay
// buffer; the agent only ever sees the batches sampled from it.
type Trainer struct {
	env      Environment
	agent    Agent
	replay   *expreplay.Buffer
	eval     *eval.Evaluator
	selector *eval.Selector
	trackers []tracker.Tracker
	config   Config
	logger   *log.Logger

	epsilon         float64
	firstFinishDrop bool
	stableDrop      bool
	recentFinishes  []bool
}

// New creates and returns a new Trainer. The trackers record episode
// statistics; the trainer flushes them at every milestone but does not
// close them.
func New(env Environment, a Agent, config Config,
	trackers ...tracker.Tracker) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.ModelDir, 0o755); err != nil {
		return nil, fmt.Errorf("new: could not create model "+
			"directory: %v", err)
	}

	features := env.ObservationSpec().Shape.Len()
	replay, err := expreplay.New(config.Replay.MinCapacity,
		config.Replay.MaxCapacity, features, config.Replay.BatchSize,
		config.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay "+
			"buffer: %v", err)
	}

	evaluator, err := eval.New(env, a, config.Eval)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	selector, err := eval.NewSelector(config.ModelDir, config.Selector)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if err := a.SetLearningRate(config.LearningRate.Initial); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Trainer{
		env:      env,
		agent:    a,
		replay:   replay,
		eval:     evaluator,
		selector: selector,
		trackers: trackers,
		config:   config,
		logger:   log.New(os.Stdout, "", log.LstdFlags),
		epsilon:  config.Epsilon.Start,
	}, nil
}

// Run trains until the episode budget is exhausted or the context is
// cancelled. On cancellation the current weights are saved to
// model_final.gob before returning.
func (t *Trainer) Run(ctx context.Context) error {
	t.agent.Train()

	episode := 0
	for t.config.MaxEpisodes == 0 || episode < t.config.MaxEpisodes {
		episode++

		if ctx.Err() != nil {
			t.logger.Printf("training cancelled at episode %d", episode)
			return t.saveFinal()
		}

		stats, err := t.runEpisode(ctx, episode)
		if err != nil {
			return fmt.Errorf("run: episode %d: %v", episode, err)
		}

		for _, tr := range t.trackers {
			if err := tr.Track(stats); err != nil {
				return fmt.Errorf("run: could not track episode "+
					"%d: %v", episode, err)
			}
		}

		t.decayEpsilon()
		t.updateLearningRate(stats.Finished)

		if episode%10 == 0 {
			t.logger.Printf("episode %4d  reward %8.2f  steps %4d  "+
				"loss %.4f  laps %d  ε %.3f  lr %.1e",
				episode, stats.Reward, stats.Steps, stats.MeanLoss,
				stats.Laps, t.epsilon, t.agent.LearningRate())
		}

		if episode%t.config.MilestoneInterval == 0 {
			if err := t.milestone(ctx, episode); err != nil {
				if ctx.Err() != nil {
					t.logger.Printf("training cancelled during "+
						"milestone %d", episode)
					return t.saveFinal()
				}
				return fmt.Errorf("run: milestone %d: %v", episode, err)
			}
		}
	}

	return t.saveFinal()
}

// runEpisode runs one training episode and returns its statistics
func (t *Trainer) runEpisode(ctx context.Context,
	episode int) (tracker.EpisodeStats, error) {
	step := t.env.Reset()
	t.agent.SetEpsilon(t.epsilon)

	lastPos := t.env.Position()
	strikes := 0

	var reward, lossSum float64
	var steps, updates int

	for !step.Last() && steps < t.config.MaxSteps {
		if ctx.Err() != nil {
			break
		}
		steps++

		// A car that keeps failing to move between checks is stuck;
		// end the episode with a penalty rather than burn the budget
		stalled := false
		if t.config.Stall.CheckInterval > 0 &&
			steps%t.config.Stall.CheckInterval == 0 {
			pos := t.env.Position()
			moved := math.Hypot(pos.X-lastPos.X, pos.Y-lastPos.Y)
			if moved < t.config.Stall.MinDistance {
				strikes++
				stalled = strikes >= t.config.Stall.MaxStrikes
			} else {
				strikes = 0
			}
			lastPos = pos
		}

		action, err := t.agent.SelectAction(step)
		if err != nil {
			return tracker.EpisodeStats{}, err
		}

		next, _ := t.env.Step(action)
		if stalled {
			next.Reward += t.config.Stall.Penalty
			next.SetEnd()
		}

		// The step budget ends the episode; the stored transition must
		// be terminal so the update target does not bootstrap past it
		if steps >= t.config.MaxSteps {
			next.SetEnd()
		}

		if err := t.replay.Add(ts.NewTransition(step, action,
			next)); err != nil {
			return tracker.EpisodeStats{}, err
		}
		reward += next.Reward

		if episode >= t.config.WarmupEpisodes &&
			steps%t.config.TrainInterval == 0 && t.replay.CanSample() {
			batch, err := t.replay.Sample()
			if err != nil {
				return tracker.EpisodeStats{}, err
			}
			loss, err := t.agent.Step(batch)
			if err != nil {
				return tracker.EpisodeStats{}, err
			}
			lossSum += loss
			updates++
		}

		step = next
	}

	meanLoss := 0.0
	if updates > 0 {
		meanLoss = lossSum / float64(updates)
	}

	return tracker.EpisodeStats{
		Episode:      episode,
		Reward:       reward,
		Steps:        steps,
		MeanLoss:     meanLoss,
		Laps:         t.env.Lap(),
		Finished:     t.env.Finished(),
		Epsilon:      t.epsilon,
		LearningRate: t.agent.LearningRate(),
	}, nil
}

// milestone saves a checkpoint, flushes the trackers, evaluates the
// greedy policy, and offers the result to the best-model selector
func (t *Trainer) milestone(ctx context.Context, episode int) error {
	path := filepath.Join(t.config.ModelDir,
		fmt.Sprintf("model_episode_%d.gob", episode))
	if err := t.agent.Save(path); err != nil {
		return err
	}

	for _, tr := range t.trackers {
		if err := tr.Flush(episode); err != nil {
			return err
		}
	}

	result, err := t.eval.Run(ctx)
	if err != nil {
		return err
	}

	replaced, err := t.selector.Consider(result, path)
	if err != nil {
		return err
	}

	t.logger.Printf("milestone %d: finishes %d/%d  mean steps %.0f  "+
		"score %.0f  new best %v", episode, result.Finishes,
		result.Episodes, result.MeanSteps, result.Score, replaced)

	return nil
}

func (t *Trainer) decayEpsilon() {
	t.epsilon *= t.config.Epsilon.Decay
	if t.epsilon < t.config.Epsilon.Min {
		t.epsilon = t.config.Epsilon.Min
	}
}

// updateLearningRate applies the one-way schedule: a drop on the first
// finished episode, and a final drop once the trailing-window finish
// rate reaches the stable threshold
func (t *Trainer) updateLearningRate(finished bool) {
	t.recentFinishes = append(t.recentFinishes, finished)
	if len(t.recentFinishes) > t.config.LearningRate.StableWindow {
		t.recentFinishes = t.recentFinishes[1:]
	}

	if !t.firstFinishDrop && finished {
		t.firstFinishDrop = true
		t.dropLearningRate(t.config.LearningRate.OnFirstFinish,
			"first finish")
	}

	if t.firstFinishDrop && !t.stableDrop &&
		len(t.recentFinishes) >= t.config.LearningRate.StableWindow {
		finishes := 0
		for _, f := range t.recentFinishes {
			if f {
				finishes++
			}
		}
		rate := float64(finishes) / float64(len(t.recentFinishes))
		if rate >= t.config.LearningRate.StableRate {
			t.stableDrop = true
			t.dropLearningRate(t.config.LearningRate.OnStable,
				fmt.Sprintf("stable finish rate %.2f", rate))
		}
	}
}

// dropLearningRate lowers the agent's learning rate to lr. The
// schedule only moves downward, so a rate at or below lr stays put.
func (t *Trainer) dropLearningRate(lr float64, reason string) {
	if t.agent.LearningRate() <= lr {
		return
	}
	if err := t.agent.SetLearningRate(lr); err == nil {
		t.logger.Printf("%s: learning rate -> %.1e", reason, lr)
	}
}

// saveFinal writes the current weights to model_final.gob
func (t *Trainer) saveFinal() error {
	path := filepath.Join(t.config.ModelDir, FinalModelFile)
	if err := t.agent.Save(path); err != nil {
		return fmt.Errorf("run: could not save final model: %v", err)
	}
	t.logger.Printf("saved final model to %v", path)
	return nil
}
